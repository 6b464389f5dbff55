package store

import (
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

type ActionType string

const (
	ActionSetAll   ActionType = "SET_ALL"
	ActionAdd      ActionType = "ADD"
	ActionUpdate   ActionType = "UPDATE"
	ActionRemove   ActionType = "REMOVE"
	ActionClear    ActionType = "CLEAR"
	ActionReinsert ActionType = "REINSERT"
)

// Action is a delta applied by Reduce. Only the fields relevant to Type are read.
type Action struct {
	Type    ActionType
	Records []*booking.Booking
	Record  *booking.Booking
	ID      string
	Index   int
}

func SetAll(records []*booking.Booking) Action {
	return Action{Type: ActionSetAll, Records: records}
}

func Add(record *booking.Booking) Action {
	return Action{Type: ActionAdd, Record: record}
}

func Update(record *booking.Booking) Action {
	return Action{Type: ActionUpdate, Record: record}
}

func Remove(id string) Action {
	return Action{Type: ActionRemove, ID: id}
}

func Clear() Action {
	return Action{Type: ActionClear}
}

// Reinsert puts a removed record back at its former position.
func Reinsert(record *booking.Booking, index int) Action {
	return Action{Type: ActionReinsert, Record: record, Index: index}
}

// State is an ordered, id-unique collection of bookings. A State value is
// never modified after Reduce returns it.
type State struct {
	Records []*booking.Booking
	Epoch   uint64
}

// Find returns the record with id and its position, or nil and -1.
func (s State) Find(id string) (*booking.Booking, int) {
	for i, r := range s.Records {
		if r.ID == id {
			return r, i
		}
	}
	return nil, -1
}

func (s State) Len() int {
	return len(s.Records)
}

// Reduce applies action to state and returns the next state. It never
// mutates its input, and records entering the state are cloned.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionSetAll:
		return State{Records: dedupe(action.Records), Epoch: state.Epoch}

	case ActionAdd:
		if action.Record == nil || action.Record.ID == "" {
			return state
		}
		if _, i := state.Find(action.Record.ID); i >= 0 {
			return replaceAt(state, i, action.Record)
		}
		records := make([]*booking.Booking, 0, len(state.Records)+1)
		records = append(records, action.Record.Clone())
		records = append(records, state.Records...)
		return State{Records: records, Epoch: state.Epoch}

	case ActionUpdate:
		if action.Record == nil {
			return state
		}
		if _, i := state.Find(action.Record.ID); i >= 0 {
			return replaceAt(state, i, action.Record)
		}
		return state

	case ActionRemove:
		_, i := state.Find(action.ID)
		if i < 0 {
			return state
		}
		records := make([]*booking.Booking, 0, len(state.Records)-1)
		records = append(records, state.Records[:i]...)
		records = append(records, state.Records[i+1:]...)
		return State{Records: records, Epoch: state.Epoch}

	case ActionReinsert:
		if action.Record == nil || action.Record.ID == "" {
			return state
		}
		if _, i := state.Find(action.Record.ID); i >= 0 {
			return replaceAt(state, i, action.Record)
		}
		idx := action.Index
		if idx < 0 {
			idx = 0
		}
		if idx > len(state.Records) {
			idx = len(state.Records)
		}
		records := make([]*booking.Booking, 0, len(state.Records)+1)
		records = append(records, state.Records[:idx]...)
		records = append(records, action.Record.Clone())
		records = append(records, state.Records[idx:]...)
		return State{Records: records, Epoch: state.Epoch}

	case ActionClear:
		return State{Epoch: state.Epoch + 1}
	}

	return state
}

func replaceAt(state State, i int, record *booking.Booking) State {
	records := make([]*booking.Booking, len(state.Records))
	copy(records, state.Records)
	records[i] = record.Clone()
	return State{Records: records, Epoch: state.Epoch}
}

// dedupe keeps the first position of each id and the last value seen for it.
func dedupe(in []*booking.Booking) []*booking.Booking {
	out := make([]*booking.Booking, 0, len(in))
	pos := make(map[string]int, len(in))
	for _, r := range in {
		if r == nil || r.ID == "" {
			continue
		}
		if i, ok := pos[r.ID]; ok {
			out[i] = r.Clone()
			continue
		}
		pos[r.ID] = len(out)
		out = append(out, r.Clone())
	}
	return out
}
