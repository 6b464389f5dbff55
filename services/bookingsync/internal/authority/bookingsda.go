package authority

import (
	"context"
	"net/http"
	"net/url"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

const resource = "bookings"

type statusRequest struct {
	Status string `json:"status"`
}

type archiveRequest struct {
	Reason string `json:"reason,omitempty"`
}

type notesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

// BookingsDataAccess issues booking commands to the authority. It holds no
// state beyond the client; every error it returns is a *booking.Failure.
type BookingsDataAccess struct {
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewBookingsDataAccess(client *aqm.ServiceClient, logger aqm.Logger) *BookingsDataAccess {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &BookingsDataAccess{client: client, logger: logger}
}

func (da *BookingsDataAccess) ready(op, id string) error {
	if da == nil || da.client == nil {
		return booking.NewTransportFailure(op, id, "bookings client not configured", nil)
	}
	return nil
}

func (da *BookingsDataAccess) List(ctx context.Context, params url.Values) ([]*booking.Booking, error) {
	if err := da.ready(booking.OpList, ""); err != nil {
		return nil, err
	}

	path := "/" + resource
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := da.client.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, classify(booking.OpList, "", err)
	}
	return decodeCollection(booking.OpList, resp)
}

func (da *BookingsDataAccess) ListMine(ctx context.Context) ([]*booking.Booking, error) {
	if err := da.ready(booking.OpListMine, ""); err != nil {
		return nil, err
	}

	resp, err := da.client.Request(ctx, http.MethodGet, "/"+resource+"/mine", nil)
	if err != nil {
		return nil, classify(booking.OpListMine, "", err)
	}
	return decodeCollection(booking.OpListMine, resp)
}

func (da *BookingsDataAccess) Get(ctx context.Context, id string) (*booking.Booking, error) {
	if err := da.requireID(booking.OpGet, id); err != nil {
		return nil, err
	}

	resp, err := da.client.Get(ctx, resource, id)
	if err != nil {
		return nil, classify(booking.OpGet, id, err)
	}
	return decodeRecord(booking.OpGet, id, resp)
}

func (da *BookingsDataAccess) Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	if err := da.ready(booking.OpCreate, ""); err != nil {
		return nil, err
	}

	resp, err := da.client.Create(ctx, resource, req)
	if err != nil {
		return nil, classify(booking.OpCreate, "", err)
	}
	return decodeRecord(booking.OpCreate, "", resp)
}

func (da *BookingsDataAccess) SetStatus(ctx context.Context, id, status string) (*booking.Booking, error) {
	return da.patch(ctx, booking.OpSetStatus, id, "status", statusRequest{Status: status})
}

func (da *BookingsDataAccess) Archive(ctx context.Context, id, reason string) (*booking.Booking, error) {
	return da.patch(ctx, booking.OpArchive, id, "archive", archiveRequest{Reason: reason})
}

func (da *BookingsDataAccess) Restore(ctx context.Context, id string) (*booking.Booking, error) {
	return da.patch(ctx, booking.OpRestore, id, "restore", nil)
}

func (da *BookingsDataAccess) SaveNotes(ctx context.Context, id, text string) (*booking.Booking, error) {
	return da.patch(ctx, booking.OpSaveNotes, id, "notes", notesRequest{AdminNotes: text})
}

func (da *BookingsDataAccess) ResendConfirmation(ctx context.Context, id string) error {
	if err := da.requireID(booking.OpResendConfirmation, id); err != nil {
		return err
	}

	path := "/" + resource + "/" + url.PathEscape(id) + "/resend-confirmation"
	if _, err := da.client.Request(ctx, http.MethodPost, path, nil); err != nil {
		return classify(booking.OpResendConfirmation, id, err)
	}
	return nil
}

// Delete is the client-owned removal of an unconfirmed booking.
func (da *BookingsDataAccess) Delete(ctx context.Context, id string) error {
	if err := da.requireID(booking.OpDelete, id); err != nil {
		return err
	}

	if err := da.client.Delete(ctx, resource, id); err != nil {
		return classify(booking.OpDelete, id, err)
	}
	return nil
}

// DestroyPermanent irreversibly removes a booking. Callers gate it behind an
// explicit confirmation.
func (da *BookingsDataAccess) DestroyPermanent(ctx context.Context, id string) error {
	if err := da.requireID(booking.OpDestroy, id); err != nil {
		return err
	}

	path := "/" + resource + "/" + url.PathEscape(id) + "/permanent"
	if _, err := da.client.Request(ctx, http.MethodDelete, path, nil); err != nil {
		return classify(booking.OpDestroy, id, err)
	}
	da.logger.Info("booking permanently deleted", "booking_id", id)
	return nil
}

func (da *BookingsDataAccess) patch(ctx context.Context, op, id, action string, body interface{}) (*booking.Booking, error) {
	if err := da.requireID(op, id); err != nil {
		return nil, err
	}

	path := "/" + resource + "/" + url.PathEscape(id) + "/" + action
	resp, err := da.client.Request(ctx, http.MethodPatch, path, body)
	if err != nil {
		return nil, classify(op, id, err)
	}
	return decodeRecord(op, id, resp)
}

func (da *BookingsDataAccess) requireID(op, id string) error {
	if err := da.ready(op, id); err != nil {
		return err
	}
	if id == "" {
		return booking.NewValidationFailure(op, id, "missing booking id")
	}
	return nil
}
