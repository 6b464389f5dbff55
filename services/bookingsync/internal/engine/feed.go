package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"

	"github.com/appetiteclub/tourbook/pkg/event"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

// AuthorityFeed applies changes pushed by the booking authority to the engine.
type AuthorityFeed struct {
	subscriber events.Subscriber
	engine     *Engine
	topic      string
	logger     aqm.Logger
}

func NewAuthorityFeed(subscriber events.Subscriber, engine *Engine, logger aqm.Logger) *AuthorityFeed {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &AuthorityFeed{
		subscriber: subscriber,
		engine:     engine,
		topic:      event.AuthorityTopic,
		logger:     logger,
	}
}

func (f *AuthorityFeed) Start(ctx context.Context) error {
	if f.subscriber == nil {
		f.logger.Info("authority feed disabled, no subscriber configured")
		return nil
	}

	if err := f.subscriber.Subscribe(ctx, f.topic, f.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.topic, err)
	}

	f.logger.Infof("authority feed listening on %s", f.topic)
	return nil
}

func (f *AuthorityFeed) Stop(ctx context.Context) error {
	f.logger.Info("authority feed stopped")
	return nil
}

func (f *AuthorityFeed) handleEvent(ctx context.Context, msg []byte) error {
	var change event.AuthorityChangeEvent
	if err := json.Unmarshal(msg, &change); err != nil {
		f.logger.Errorf("failed to unmarshal authority change: %v", err)
		return nil
	}

	if err := f.engine.ApplyRemote(change); err != nil {
		f.logger.Error("authority change rejected", "event_type", change.EventType, "booking_id", change.BookingID, "error", err)
	}
	return nil
}

func decodeChange(change event.AuthorityChangeEvent) (*booking.Booking, error) {
	if len(change.Record) == 0 {
		return nil, booking.NewTransportFailure("feed", change.BookingID, "change without record", nil)
	}

	var record booking.Booking
	if err := json.Unmarshal(change.Record, &record); err != nil {
		return nil, booking.NewTransportFailure("feed", change.BookingID, "malformed record", err)
	}
	if problems := record.Check(); len(problems) > 0 {
		return nil, booking.NewTransportFailure("feed", change.BookingID, strings.Join(problems, "; "), nil)
	}
	if change.BookingID != "" && change.BookingID != record.ID {
		return nil, booking.NewTransportFailure("feed", change.BookingID, "record id does not match event", nil)
	}
	return &record, nil
}
