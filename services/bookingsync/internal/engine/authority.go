package engine

import (
	"context"
	"net/url"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

// Authority is the command surface of the remote system of record. Every
// method honours ctx cancellation; errors are *booking.Failure values.
type Authority interface {
	List(ctx context.Context, params url.Values) ([]*booking.Booking, error)
	ListMine(ctx context.Context) ([]*booking.Booking, error)
	Get(ctx context.Context, id string) (*booking.Booking, error)
	Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	SetStatus(ctx context.Context, id, status string) (*booking.Booking, error)
	Archive(ctx context.Context, id, reason string) (*booking.Booking, error)
	Restore(ctx context.Context, id string) (*booking.Booking, error)
	SaveNotes(ctx context.Context, id, text string) (*booking.Booking, error)
	ResendConfirmation(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DestroyPermanent(ctx context.Context, id string) error
}
