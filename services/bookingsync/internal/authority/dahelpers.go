package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

// decodeSuccessResponse copies the dynamic response payload into dest.
func decodeSuccessResponse(resp *aqm.SuccessResponse, dest interface{}) error {
	if resp == nil {
		return errors.New("nil success response")
	}
	if resp.Data == nil {
		return errors.New("response carries no data")
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dest)
}

// decodeRecord enforces the single-record contract: a decodable booking that
// satisfies the record invariants.
func decodeRecord(op, id string, resp *aqm.SuccessResponse) (*booking.Booking, error) {
	var record booking.Booking
	if err := decodeSuccessResponse(resp, &record); err != nil {
		return nil, booking.NewTransportFailure(op, id, "malformed response", err)
	}
	if problems := record.Check(); len(problems) > 0 {
		return nil, booking.NewTransportFailure(op, id, "malformed record: "+strings.Join(problems, "; "), nil)
	}
	if id != "" && record.ID != id {
		return nil, booking.NewTransportFailure(op, id, fmt.Sprintf("response for booking %s", record.ID), nil)
	}
	return &record, nil
}

// decodeCollection enforces the collection contract. A single malformed
// record rejects the whole response.
func decodeCollection(op string, resp *aqm.SuccessResponse) ([]*booking.Booking, error) {
	var records []*booking.Booking
	if err := decodeSuccessResponse(resp, &records); err != nil {
		return nil, booking.NewTransportFailure(op, "", "malformed response", err)
	}
	for i, r := range records {
		if r == nil {
			return nil, booking.NewTransportFailure(op, "", fmt.Sprintf("null record at %d", i), nil)
		}
		if problems := r.Check(); len(problems) > 0 {
			return nil, booking.NewTransportFailure(op, r.ID, "malformed record: "+strings.Join(problems, "; "), nil)
		}
	}
	return records, nil
}

// classify maps a ServiceClient error onto the failure taxonomy.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var f *booking.Failure
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.Canceled) {
		c := booking.NewCancelledFailure(op)
		c.BookingID = id
		c.RawMessage = err.Error()
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return booking.NewTransportFailure(op, id, "authority did not respond in time", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "409") || strings.Contains(msg, "conflict") {
		return booking.NewConflictFailure(op, id, err)
	}
	return booking.NewTransportFailure(op, id, "authority rejected the request", err)
}
