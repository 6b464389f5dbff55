package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/pkg/enums/bookingstatus"
	"github.com/appetiteclub/tourbook/pkg/event"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/store"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/view"
)

// Engine keeps the local booking store consistent with the authority for
// the current actor.
type Engine struct {
	authority   Authority
	store       *store.Store
	coordinator *RequestCoordinator
	optimistic  *OptimisticController
	notifier    *Notifier
	logger      aqm.Logger
	now         func() time.Time

	mu      sync.RWMutex
	actor   booking.Actor
	filters view.Filters
}

type Option func(*Engine)

// WithClock overrides the time source used for validation and tentative timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(authority Authority, st *store.Store, notifier *Notifier, logger aqm.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if st == nil {
		st = store.New(logger)
	}
	if notifier == nil {
		notifier = NewNotifier(nil, logger)
	}

	e := &Engine{
		authority:   authority,
		store:       st,
		coordinator: NewRequestCoordinator(st, logger),
		optimistic:  NewOptimisticController(st, logger),
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

func (e *Engine) Actor() booking.Actor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actor
}

// SignIn switches the current actor. A different actor starts from an empty store.
func (e *Engine) SignIn(actor booking.Actor) {
	e.mu.Lock()
	changed := !e.actor.Same(actor)
	e.actor = actor
	e.mu.Unlock()

	if changed {
		e.reset()
	}
	e.logger.Info("actor signed in", "actor_id", actor.ID, "role", string(actor.Role))
}

// SignOut drops the actor, cancels pending fetches and clears the store.
func (e *Engine) SignOut() {
	e.mu.Lock()
	e.actor = booking.Anonymous()
	e.filters = view.Filters{}
	e.mu.Unlock()

	e.reset()
	e.logger.Info("actor signed out")
}

func (e *Engine) reset() {
	e.coordinator.Reset()
	e.optimistic.Discard()
	e.store.Dispatch(store.Clear())
}

// Load fetches the actor's scope: every booking for administrators, owned
// bookings for clients.
func (e *Engine) Load(ctx context.Context) error {
	_, err := e.load(ctx)
	return err
}

func (e *Engine) load(ctx context.Context) (bool, error) {
	actor := e.Actor()
	switch {
	case actor.IsAdmin():
		return e.List(ctx, e.Filters())
	case actor.IsAuthenticated():
		return e.ListMine(ctx)
	}
	return false, booking.NewValidationFailure(booking.OpList, "", "sign in required")
}

// List replaces the store with the authority's view of filters. Only
// administrators may list every booking.
func (e *Engine) List(ctx context.Context, filters view.Filters) (bool, error) {
	if !e.Actor().IsAdmin() {
		return false, booking.NewValidationFailure(booking.OpList, "", "administrator role required")
	}
	if errs := filters.Validate(); len(errs) > 0 {
		return false, booking.NewValidationFailure(booking.OpList, "", strings.Join(errs, "; "))
	}

	params := filters.Params()
	return e.coordinator.Fetch(ctx, QueryAll, func(ctx context.Context) ([]*booking.Booking, error) {
		return e.authority.List(ctx, params)
	})
}

func (e *Engine) ListMine(ctx context.Context) (bool, error) {
	if !e.Actor().IsAuthenticated() {
		return false, booking.NewValidationFailure(booking.OpListMine, "", "sign in required")
	}
	return e.coordinator.Fetch(ctx, QueryMine, e.authority.ListMine)
}

// Refresh re-runs the last list query. Before any query has run it performs
// the actor's initial load instead.
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	if !e.coordinator.HasLast() {
		return e.load(ctx)
	}
	return e.coordinator.Refresh(ctx)
}

// Get fetches one booking and reconciles it into the store.
func (e *Engine) Get(ctx context.Context, id string) (*booking.Booking, error) {
	actor := e.Actor()
	if !actor.IsAuthenticated() {
		return nil, booking.NewValidationFailure(booking.OpGet, id, "sign in required")
	}

	record, err := e.authority.Get(ctx, id)
	if err != nil {
		return nil, booking.AsFailure(booking.OpGet, id, err)
	}
	if !actor.IsAdmin() && !actor.Owns(record) {
		return nil, booking.NewValidationFailure(booking.OpGet, id, "booking belongs to another client")
	}

	e.reconcile(record)
	return record.Clone(), nil
}

// Create submits a new booking. It is not optimistic: the authority assigns
// the id, so the record enters the store only after confirmation.
func (e *Engine) Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	actor := e.Actor()
	if !actor.IsAuthenticated() {
		return nil, booking.NewValidationFailure(booking.OpCreate, "", "sign in required")
	}
	if req.OwnerID == "" && !actor.IsAdmin() {
		req.OwnerID = actor.ID
	}
	if errs := booking.ValidateCreate(req, e.now()); len(errs) > 0 {
		return nil, booking.NewValidationFailure(booking.OpCreate, "", strings.Join(errs, "; "))
	}
	req.TotalAmount = req.QuotedTotal()

	record, err := e.authority.Create(ctx, req)
	if err != nil {
		failure := booking.AsFailure(booking.OpCreate, "", err)
		e.emitFailure(ctx, event.EventBookingCreated, "", failure)
		return nil, failure
	}

	e.store.Dispatch(store.Add(record))
	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingCreated,
		BookingID: record.ID,
		Status:    record.Status,
		Success:   true,
	})
	return record.Clone(), nil
}

// SetStatus moves a booking to status through the lifecycle rules.
func (e *Engine) SetStatus(ctx context.Context, id, status string) (*booking.Booking, error) {
	current, _ := e.store.Get(id)
	if err := booking.CanSetStatus(e.Actor(), current, status); err != nil {
		return nil, err
	}

	previous := current.Status
	record, err := e.optimistic.Mutate(ctx, booking.OpSetStatus, id,
		func(b *booking.Booking) {
			now := e.now().UTC()
			b.Status = status
			b.StatusUpdatedAt = &now
		},
		func(ctx context.Context) (*booking.Booking, error) {
			return e.authority.SetStatus(ctx, id, status)
		})
	if err != nil {
		e.emitFailure(ctx, event.EventBookingStatusChanged, id, err)
		return nil, err
	}

	e.emit(ctx, event.BookingEvent{
		EventType:      event.EventBookingStatusChanged,
		BookingID:      id,
		Status:         record.Status,
		PreviousStatus: previous,
		Success:        true,
	})
	return record.Clone(), nil
}

// RequestCancellation is the client-side cancel: pending → requested.
func (e *Engine) RequestCancellation(ctx context.Context, id string) (*booking.Booking, error) {
	return e.SetStatus(ctx, id, bookingstatus.Statuses.Requested.Code())
}

func (e *Engine) Archive(ctx context.Context, id, reason string) (*booking.Booking, error) {
	current, _ := e.store.Get(id)
	if err := booking.CanArchive(e.Actor(), current); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	record, err := e.optimistic.Mutate(ctx, booking.OpArchive, id,
		func(b *booking.Booking) {
			b.Archived = true
			b.ArchiveReason = reason
		},
		func(ctx context.Context) (*booking.Booking, error) {
			return e.authority.Archive(ctx, id, reason)
		})
	if err != nil {
		e.emitFailure(ctx, event.EventBookingArchived, id, err)
		return nil, err
	}

	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingArchived,
		BookingID: id,
		Status:    record.Status,
		Archived:  true,
		Success:   true,
		Message:   reason,
	})
	return record.Clone(), nil
}

func (e *Engine) Restore(ctx context.Context, id string) (*booking.Booking, error) {
	current, _ := e.store.Get(id)
	if err := booking.CanRestore(e.Actor(), current); err != nil {
		return nil, err
	}

	record, err := e.optimistic.Mutate(ctx, booking.OpRestore, id,
		func(b *booking.Booking) {
			b.Archived = false
			b.ArchiveReason = ""
		},
		func(ctx context.Context) (*booking.Booking, error) {
			return e.authority.Restore(ctx, id)
		})
	if err != nil {
		e.emitFailure(ctx, event.EventBookingRestored, id, err)
		return nil, err
	}

	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingRestored,
		BookingID: id,
		Status:    record.Status,
		Success:   true,
	})
	return record.Clone(), nil
}

func (e *Engine) SaveNotes(ctx context.Context, id, text string) (*booking.Booking, error) {
	current, _ := e.store.Get(id)
	if err := booking.CanSaveNotes(e.Actor(), current, text); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	record, err := e.optimistic.Mutate(ctx, booking.OpSaveNotes, id,
		func(b *booking.Booking) {
			b.AdminNotes = text
		},
		func(ctx context.Context) (*booking.Booking, error) {
			return e.authority.SaveNotes(ctx, id, text)
		})
	if err != nil {
		e.emitFailure(ctx, event.EventBookingNotesSaved, id, err)
		return nil, err
	}

	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingNotesSaved,
		BookingID: id,
		Status:    record.Status,
		Success:   true,
	})
	return record.Clone(), nil
}

// ResendConfirmation has no local effect; only its outcome is reported.
func (e *Engine) ResendConfirmation(ctx context.Context, id string) error {
	current, _ := e.store.Get(id)
	if err := booking.CanResendConfirmation(e.Actor(), current); err != nil {
		return err
	}

	if err := e.authority.ResendConfirmation(ctx, id); err != nil {
		failure := booking.AsFailure(booking.OpResendConfirmation, id, err)
		e.emitFailure(ctx, event.EventBookingConfirmationResent, id, failure)
		return failure
	}

	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingConfirmationResent,
		BookingID: id,
		Status:    current.Status,
		Success:   true,
	})
	return nil
}

// Delete removes an unconfirmed booking owned by the current client.
func (e *Engine) Delete(ctx context.Context, id string) error {
	current, _ := e.store.Get(id)
	if err := booking.CanDelete(e.Actor(), current); err != nil {
		return err
	}
	return e.remove(ctx, booking.OpDelete, current, e.authority.Delete)
}

// DestroyPermanent irreversibly deletes a booking. confirmed must carry the
// caller's explicit confirmation.
func (e *Engine) DestroyPermanent(ctx context.Context, id string, confirmed bool) error {
	current, _ := e.store.Get(id)
	if err := booking.CanDestroy(e.Actor(), current, confirmed); err != nil {
		return err
	}
	return e.remove(ctx, booking.OpDestroy, current, e.authority.DestroyPermanent)
}

func (e *Engine) remove(ctx context.Context, op string, current *booking.Booking, fn func(ctx context.Context, id string) error) error {
	id := current.ID
	err := e.optimistic.MutateRemove(ctx, op, id, func(ctx context.Context) error {
		return fn(ctx, id)
	})
	if err != nil {
		e.emitFailure(ctx, event.EventBookingDeleted, id, err)
		return err
	}

	e.emit(ctx, event.BookingEvent{
		EventType: event.EventBookingDeleted,
		BookingID: id,
		Status:    current.Status,
		Archived:  current.Archived,
		Success:   true,
		Message:   op,
	})
	return nil
}

// SetFilters replaces the filter set used by View.
func (e *Engine) SetFilters(filters view.Filters) error {
	if errs := filters.Validate(); len(errs) > 0 {
		return booking.NewValidationFailure("filter", "", strings.Join(errs, "; "))
	}
	e.mu.Lock()
	e.filters = filters
	e.mu.Unlock()
	return nil
}

func (e *Engine) Filters() view.Filters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filters
}

// View projects the store through the current filter set.
func (e *Engine) View() []*booking.Booking {
	return e.ViewWith(e.Filters())
}

// ViewWith projects the store through filters and returns copies.
func (e *Engine) ViewWith(filters view.Filters) []*booking.Booking {
	projected := view.Project(e.store.State().Records, filters)
	out := make([]*booking.Booking, 0, len(projected))
	for _, r := range projected {
		out = append(out, r.Clone())
	}
	return out
}

// Counts returns per-status counts within the current filter scope.
func (e *Engine) Counts() map[string]int {
	return view.StatusCounts(e.store.State().Records, e.Filters().Scope)
}

// ApplyRemote reconciles a change pushed by the authority.
func (e *Engine) ApplyRemote(change event.AuthorityChangeEvent) error {
	switch change.EventType {
	case event.EventAuthorityRemoved:
		if change.BookingID == "" {
			return booking.NewTransportFailure("feed", "", "removal without booking id", nil)
		}
		if e.optimistic.Forget(change.BookingID) {
			e.logger.Debug("dropped pending mutation for removed booking", "booking_id", change.BookingID)
		}
		e.store.Dispatch(store.Remove(change.BookingID))
		return nil

	case event.EventAuthorityUpserted:
		record, err := decodeChange(change)
		if err != nil {
			return err
		}
		e.reconcile(record)
		return nil
	}

	e.logger.Debug("ignoring authority change", "event_type", change.EventType)
	return nil
}

// reconcile takes a canonical record from the authority. While a mutation is
// pending the tentative state stays displayed and the record becomes its
// rollback target.
func (e *Engine) reconcile(record *booking.Booking) {
	if e.optimistic.Rebase(record) {
		e.logger.Debug("rebased pending mutation", "booking_id", record.ID)
		return
	}
	e.upsert(record)
}

// upsert updates a known record or adds one that belongs to the actor's scope.
func (e *Engine) upsert(record *booking.Booking) {
	if _, ok := e.store.Get(record.ID); ok {
		e.store.Dispatch(store.Update(record))
		return
	}

	actor := e.Actor()
	if actor.IsAdmin() || actor.Owns(record) {
		e.store.Dispatch(store.Add(record))
	}
}

// Start implements the micro lifecycle.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("booking engine started")
	return nil
}

// Stop cancels outstanding fetches. Writes already issued are not cancellable.
func (e *Engine) Stop(ctx context.Context) error {
	e.coordinator.CancelAll()
	e.logger.Info("booking engine stopped")
	return nil
}

func (e *Engine) emit(ctx context.Context, evt event.BookingEvent) {
	actor := e.Actor()
	evt.ActorID = actor.ID
	evt.ActorRole = string(actor.Role)
	e.notifier.Emit(ctx, evt)
}

func (e *Engine) emitFailure(ctx context.Context, eventType, id string, err error) {
	failure := booking.AsFailure(eventType, id, err)
	if failure.Kind == booking.KindCancelled || failure.Kind == booking.KindValidation {
		return
	}
	e.emit(ctx, event.BookingEvent{
		EventType: eventType,
		BookingID: id,
		Success:   false,
		Reason:    string(failure.Kind),
		Message:   failure.Reason,
	})
}
