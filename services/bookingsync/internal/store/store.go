package store

import (
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

// Listener observes every dispatched action together with the resulting state.
type Listener func(state State, action Action)

// Store owns the canonical client-side booking collection. All writes go
// through Dispatch; reads return copies.
type Store struct {
	mu    sync.RWMutex
	state State

	lmu       sync.RWMutex
	listeners map[string]Listener
	order     []string

	logger aqm.Logger
}

func New(logger aqm.Logger) *Store {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Store{
		listeners: make(map[string]Listener),
		logger:    logger,
	}
}

// State returns the current state. Records must be treated as read-only.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (*booking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, _ := s.state.Find(id)
	if r == nil {
		return nil, false
	}
	return r.Clone(), true
}

// All returns copies of every record in store order.
func (s *Store) All() []*booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*booking.Booking, 0, len(s.state.Records))
	for _, r := range s.state.Records {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Epoch
}

// Dispatch reduces action into the store and notifies listeners.
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	next := Reduce(s.state, action)
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("store action applied", "action", string(action.Type), "records", next.Len())
	s.notify(next, action)
	return next
}

// Subscribe registers listener and returns a function removing it.
func (s *Store) Subscribe(listener Listener) func() {
	id := uuid.NewString()

	s.lmu.Lock()
	s.listeners[id] = listener
	s.order = append(s.order, id)
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
		for i, lid := range s.order {
			if lid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) notify(state State, action Action) {
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(state, action)
	}
}
