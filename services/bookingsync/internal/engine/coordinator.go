package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/store"
)

type QueryKind string

const (
	QueryAll  QueryKind = "list"
	QueryMine QueryKind = "list_mine"
)

// FetchFunc performs one list round trip under the supplied cancellation token.
type FetchFunc func(ctx context.Context) ([]*booking.Booking, error)

type inflight struct {
	token  uint64
	cancel context.CancelFunc
}

// RequestCoordinator serialises list queries: a new query cancels any
// pending query of the same kind, and only the newest completion reaches
// the store.
type RequestCoordinator struct {
	mu       sync.Mutex
	seq      uint64
	pending  map[QueryKind]*inflight
	lastKind QueryKind
	last     FetchFunc

	store  *store.Store
	logger aqm.Logger
}

func NewRequestCoordinator(st *store.Store, logger aqm.Logger) *RequestCoordinator {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &RequestCoordinator{
		pending: make(map[QueryKind]*inflight),
		store:   st,
		logger:  logger,
	}
}

// Fetch runs fn and replaces the store contents with its result. applied is
// false when the request was superseded or cancelled; that outcome is never
// reported as an error.
func (c *RequestCoordinator) Fetch(ctx context.Context, kind QueryKind, fn FetchFunc) (applied bool, err error) {
	reqCtx, token, epoch := c.begin(ctx, kind, fn)

	records, err := fn(reqCtx)

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.pending[kind]
	if current == nil || current.token != token {
		c.logger.Debug("discarding superseded fetch", "kind", string(kind), "token", token)
		return false, nil
	}
	delete(c.pending, kind)
	current.cancel()

	if c.store.Epoch() != epoch {
		c.logger.Debug("discarding fetch from a cleared scope", "kind", string(kind))
		return false, nil
	}

	if err != nil {
		if booking.IsCancelled(err) || errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, booking.AsFailure(string(kind), "", err)
	}

	c.store.Dispatch(store.SetAll(records))
	return true, nil
}

func (c *RequestCoordinator) begin(ctx context.Context, kind QueryKind, fn FetchFunc) (context.Context, uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.pending[kind]; prev != nil {
		c.logger.Debug("cancelling in-flight fetch", "kind", string(kind), "token", prev.token)
		prev.cancel()
	}

	// Switching scope must not leak one actor's view into the other.
	if c.lastKind != "" && c.lastKind != kind {
		for k, p := range c.pending {
			p.cancel()
			delete(c.pending, k)
		}
		c.store.Dispatch(store.Clear())
	}

	c.seq++
	reqCtx, cancel := context.WithCancel(ctx)
	c.pending[kind] = &inflight{token: c.seq, cancel: cancel}
	c.lastKind = kind
	c.last = fn

	return reqCtx, c.seq, c.store.Epoch()
}

// Refresh re-issues the most recent query.
func (c *RequestCoordinator) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	kind, fn := c.lastKind, c.last
	c.mu.Unlock()

	if fn == nil {
		return false, booking.NewValidationFailure("refresh", "", "nothing to refresh yet")
	}
	return c.Fetch(ctx, kind, fn)
}

// HasLast reports whether a query has been issued since the last Reset.
func (c *RequestCoordinator) HasLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last != nil
}

// CancelAll aborts every pending query; their results are discarded.
func (c *RequestCoordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for kind, p := range c.pending {
		p.cancel()
		delete(c.pending, kind)
	}
}

// Reset forgets the last query so a new actor starts without a refresh target.
func (c *RequestCoordinator) Reset() {
	c.CancelAll()

	c.mu.Lock()
	c.lastKind = ""
	c.last = nil
	c.mu.Unlock()
}

// InFlight reports whether a query of kind is pending.
func (c *RequestCoordinator) InFlight(kind QueryKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[kind] != nil
}
