package engine

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/store"
)

// MockAuthority is a test mock for Authority. Unset funcs fail as transport errors.
type MockAuthority struct {
	mu    sync.Mutex
	calls map[string]int

	ListFunc               func(ctx context.Context, params url.Values) ([]*booking.Booking, error)
	ListMineFunc           func(ctx context.Context) ([]*booking.Booking, error)
	GetFunc                func(ctx context.Context, id string) (*booking.Booking, error)
	CreateFunc             func(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	SetStatusFunc          func(ctx context.Context, id, status string) (*booking.Booking, error)
	ArchiveFunc            func(ctx context.Context, id, reason string) (*booking.Booking, error)
	RestoreFunc            func(ctx context.Context, id string) (*booking.Booking, error)
	SaveNotesFunc          func(ctx context.Context, id, text string) (*booking.Booking, error)
	ResendConfirmationFunc func(ctx context.Context, id string) error
	DeleteFunc             func(ctx context.Context, id string) error
	DestroyPermanentFunc   func(ctx context.Context, id string) error
}

func NewMockAuthority() *MockAuthority {
	return &MockAuthority{calls: make(map[string]int)}
}

func (m *MockAuthority) record(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

// Calls returns how many times method name was invoked.
func (m *MockAuthority) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls counts every invocation across methods.
func (m *MockAuthority) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func unset(op string) error {
	return booking.NewTransportFailure(op, "", "mock not configured", nil)
}

func (m *MockAuthority) List(ctx context.Context, params url.Values) ([]*booking.Booking, error) {
	m.record("List")
	if m.ListFunc != nil {
		return m.ListFunc(ctx, params)
	}
	return nil, unset("list")
}

func (m *MockAuthority) ListMine(ctx context.Context) ([]*booking.Booking, error) {
	m.record("ListMine")
	if m.ListMineFunc != nil {
		return m.ListMineFunc(ctx)
	}
	return nil, unset("list_mine")
}

func (m *MockAuthority) Get(ctx context.Context, id string) (*booking.Booking, error) {
	m.record("Get")
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, unset("get")
}

func (m *MockAuthority) Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	m.record("Create")
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, unset("create")
}

func (m *MockAuthority) SetStatus(ctx context.Context, id, status string) (*booking.Booking, error) {
	m.record("SetStatus")
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, id, status)
	}
	return nil, unset("set_status")
}

func (m *MockAuthority) Archive(ctx context.Context, id, reason string) (*booking.Booking, error) {
	m.record("Archive")
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, id, reason)
	}
	return nil, unset("archive")
}

func (m *MockAuthority) Restore(ctx context.Context, id string) (*booking.Booking, error) {
	m.record("Restore")
	if m.RestoreFunc != nil {
		return m.RestoreFunc(ctx, id)
	}
	return nil, unset("restore")
}

func (m *MockAuthority) SaveNotes(ctx context.Context, id, text string) (*booking.Booking, error) {
	m.record("SaveNotes")
	if m.SaveNotesFunc != nil {
		return m.SaveNotesFunc(ctx, id, text)
	}
	return nil, unset("save_notes")
}

func (m *MockAuthority) ResendConfirmation(ctx context.Context, id string) error {
	m.record("ResendConfirmation")
	if m.ResendConfirmationFunc != nil {
		return m.ResendConfirmationFunc(ctx, id)
	}
	return unset("resend_confirmation")
}

func (m *MockAuthority) Delete(ctx context.Context, id string) error {
	m.record("Delete")
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return unset("delete")
}

func (m *MockAuthority) DestroyPermanent(ctx context.Context, id string) error {
	m.record("DestroyPermanent")
	if m.DestroyPermanentFunc != nil {
		return m.DestroyPermanentFunc(ctx, id)
	}
	return unset("destroy_permanent")
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	m.mu.Unlock()
	return nil
}

// MockSubscriber implements events.Subscriber and keeps the registered handler.
type MockSubscriber struct {
	Topic         string
	Handler       events.HandlerFunc
	SubscribeFunc func(ctx context.Context, topic string, handler events.HandlerFunc) error
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, topic, handler)
	}
	m.Topic = topic
	m.Handler = handler
	return nil
}

var (
	testNow  = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tourDate = time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	admin  = booking.Actor{ID: "admin-1", Role: booking.RoleAdmin, Name: "Ada", Email: "ada@tours.test"}
	client = booking.Actor{ID: "user-1", Role: booking.RoleUser, Name: "Lin", Email: "lin@example.com"}
)

func fixture(id, status string) *booking.Booking {
	return &booking.Booking{
		ID:          id,
		OwnerID:     client.ID,
		Status:      status,
		Client:      booking.ClientIdentity{Name: client.Name, Email: client.Email},
		Packages:    []booking.PackageSelection{{PackageID: "pkg-1", Title: "Old Town Walk", Price: 40}},
		Guests:      2,
		BookingDate: tourDate,
		TotalAmount: 80,
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	}
}

// newTestEngine builds an engine signed in as actor with records preloaded.
func newTestEngine(auth Authority, actor booking.Actor, records ...*booking.Booking) *Engine {
	e := New(auth, nil, nil, nil, WithClock(func() time.Time { return testNow }))
	e.SignIn(actor)
	if len(records) > 0 {
		e.Store().Dispatch(store.SetAll(records))
	}
	return e
}
