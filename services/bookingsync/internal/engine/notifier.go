package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"

	"github.com/appetiteclub/tourbook/pkg/event"
)

// Notifier fans booking outcomes out to in-process listeners and, when a
// publisher is configured, to the bookings topic.
type Notifier struct {
	publisher events.Publisher
	topic     string
	logger    aqm.Logger

	mu        sync.RWMutex
	listeners map[string]func(event.BookingEvent)
	now       func() time.Time
}

func NewNotifier(publisher events.Publisher, logger aqm.Logger) *Notifier {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Notifier{
		publisher: publisher,
		topic:     event.BookingsTopic,
		logger:    logger,
		listeners: make(map[string]func(event.BookingEvent)),
		now:       time.Now,
	}
}

// Subscribe registers fn and returns a function removing it.
func (n *Notifier) Subscribe(fn func(event.BookingEvent)) func() {
	id := uuid.NewString()

	n.mu.Lock()
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// Emit stamps evt and delivers it. Publish failures are logged, never returned.
func (n *Notifier) Emit(ctx context.Context, evt event.BookingEvent) {
	if n == nil {
		return
	}
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = n.now().UTC()
	}

	n.mu.RLock()
	listeners := make([]func(event.BookingEvent), 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.RUnlock()

	for _, fn := range listeners {
		fn(evt)
	}

	if n.publisher == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		n.logger.Error("cannot encode booking event", "event_type", evt.EventType, "error", err)
		return
	}
	if err := n.publisher.Publish(context.WithoutCancel(ctx), n.topic, data); err != nil {
		n.logger.Error("cannot publish booking event", "event_type", evt.EventType, "booking_id", evt.BookingID, "error", err)
	}
}
