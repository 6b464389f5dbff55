package engine

import (
	"context"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/store"
)

// PatchFunc applies the expected effect of a command to a copy of the record.
type PatchFunc func(b *booking.Booking)

// CommandFunc issues the command and returns the canonical record.
type CommandFunc func(ctx context.Context) (*booking.Booking, error)

// RemoveFunc issues a command whose success removes the record.
type RemoveFunc func(ctx context.Context) error

// tentative is one uncommitted mutation. base is the store record it
// replaced, restored on failure. parent is the in-flight mutation whose
// tentative state base was taken from, zero when base is confirmed.
type tentative struct {
	id     string
	token  uint64
	parent uint64
	base   *booking.Booking
	index  int
	epoch  uint64
}

// OptimisticController applies mutations locally before the authority
// confirms them. Mutations on one booking form a chain; the newest one owns
// the displayed state (last writer wins) and each keeps the state it
// replaced so any resolution order converges on the authority.
type OptimisticController struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[uint64]*tentative
	top      map[string]uint64

	store  *store.Store
	logger aqm.Logger
}

func NewOptimisticController(st *store.Store, logger aqm.Logger) *OptimisticController {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &OptimisticController{
		inflight: make(map[uint64]*tentative),
		top:      make(map[string]uint64),
		store:    st,
		logger:   logger,
	}
}

// Mutate snapshots id, applies patch to the store, runs command and then
// either commits the canonical response or restores the snapshot.
func (c *OptimisticController) Mutate(ctx context.Context, op, id string, patch PatchFunc, command CommandFunc) (*booking.Booking, error) {
	token, err := c.apply(op, id, func(current *booking.Booking) store.Action {
		next := current.Clone()
		patch(next)
		return store.Update(next)
	})
	if err != nil {
		return nil, err
	}

	record, cmdErr := command(ctx)
	if cmdErr == nil && record == nil {
		cmdErr = booking.NewTransportFailure(op, id, "authority returned no record", nil)
	}
	if cmdErr == nil && record.ID != id {
		cmdErr = booking.NewTransportFailure(op, id, "authority returned booking "+record.ID, nil)
	}

	return c.resolve(op, id, token, record, cmdErr, false)
}

// MutateRemove removes id from the store immediately and reinserts it at its
// former position if the command fails.
func (c *OptimisticController) MutateRemove(ctx context.Context, op, id string, command RemoveFunc) error {
	token, err := c.apply(op, id, func(*booking.Booking) store.Action {
		return store.Remove(id)
	})
	if err != nil {
		return err
	}

	cmdErr := command(ctx)
	_, err = c.resolve(op, id, token, nil, cmdErr, true)
	return err
}

func (c *OptimisticController) apply(op, id string, action func(current *booking.Booking) store.Action) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, index := c.store.State().Find(id)
	if current == nil {
		return 0, booking.NewValidationFailure(op, id, "booking not found")
	}

	c.seq++
	t := &tentative{
		id:    id,
		token: c.seq,
		base:  current.Clone(),
		index: index,
		epoch: c.store.Epoch(),
	}
	if prev := c.inflight[c.top[id]]; prev != nil && prev.epoch == t.epoch {
		c.logger.Debug("superseding tentative mutation", "booking_id", id, "op", op)
		t.parent = prev.token
	}
	c.inflight[t.token] = t
	c.top[id] = t.token

	c.store.Dispatch(action(current))
	return t.token, nil
}

func (c *OptimisticController) resolve(op, id string, token uint64, record *booking.Booking, cmdErr error, removal bool) (*booking.Booking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failure *booking.Failure
	if cmdErr != nil {
		failure = booking.AsFailure(op, id, cmdErr)
	}

	t := c.inflight[token]
	delete(c.inflight, token)

	// Discarded, removed by the authority, or the scope was cleared.
	if t == nil || t.epoch != c.store.Epoch() {
		if failure != nil {
			return nil, failure
		}
		return record, nil
	}

	if c.top[id] == token {
		if failure != nil {
			c.restoreTop(id, t.parent)
			c.rollback(t, removal)
			c.logger.Error("mutation rolled back", "op", op, "booking_id", id, "reason", failure.Reason)
			return nil, failure
		}
		delete(c.top, id)
		if !removal {
			c.store.Dispatch(store.Update(record))
		}
		c.logger.Info("mutation committed", "op", op, "booking_id", id)
		return record, nil
	}

	// Superseded: hand the outcome to the mutation that replaced this one.
	// Without one, a newer mutation already committed and this outcome is stale.
	if child := c.childOf(token); child != nil {
		if failure != nil {
			child.base = t.base
			child.parent = t.parent
		} else if !removal {
			child.base = record.Clone()
			child.parent = 0
		}
	}

	if failure != nil {
		return nil, failure
	}
	return record, nil
}

// restoreTop hands the displayed state back to parent when it is still in
// flight.
func (c *OptimisticController) restoreTop(id string, parent uint64) {
	if parent != 0 && c.inflight[parent] != nil {
		c.top[id] = parent
		return
	}
	delete(c.top, id)
}

func (c *OptimisticController) childOf(token uint64) *tentative {
	for _, t := range c.inflight {
		if t.parent == token {
			return t
		}
	}
	return nil
}

func (c *OptimisticController) rollback(t *tentative, removal bool) {
	if removal {
		c.store.Dispatch(store.Reinsert(t.base, t.index))
		return
	}
	c.store.Dispatch(store.Update(t.base))
}

// Rebase replaces the confirmed snapshot at the root of id's mutation chain
// with a record pushed by the authority. It reports false when nothing is
// pending for id.
func (c *OptimisticController) Rebase(record *booking.Booking) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.inflight[c.top[record.ID]]
	if t == nil {
		return false
	}
	for t.parent != 0 && c.inflight[t.parent] != nil {
		t = c.inflight[t.parent]
	}
	t.base = record.Clone()
	t.parent = 0
	return true
}

// Forget drops every pending mutation for id so that no later resolution
// touches the store. Used when the authority removed the booking.
func (c *OptimisticController) Forget(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for token, t := range c.inflight {
		if t.id == id {
			delete(c.inflight, token)
			found = true
		}
	}
	delete(c.top, id)
	return found
}

// Pending reports whether a tentative state exists for id.
func (c *OptimisticController) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[c.top[id]] != nil
}

// Discard drops every pending mutation without touching the store.
func (c *OptimisticController) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = make(map[uint64]*tentative)
	c.top = make(map[string]uint64)
}
