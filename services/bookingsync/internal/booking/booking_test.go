package booking

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBookingClone(t *testing.T) {
	ts := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	original := &Booking{
		ID:              "b-1",
		Status:          "pending",
		Packages:        []PackageSelection{{PackageID: "pkg-1", Title: "Reef Dive", Price: 90}},
		Guests:          3,
		StatusUpdatedAt: &ts,
	}

	clone := original.Clone()
	if !reflect.DeepEqual(original, clone) {
		t.Fatalf("Clone() = %+v, want %+v", clone, original)
	}

	clone.Packages[0].Title = "changed"
	*clone.StatusUpdatedAt = ts.Add(time.Hour)

	if original.Packages[0].Title != "Reef Dive" {
		t.Error("Clone() shares the packages slice")
	}
	if !original.StatusUpdatedAt.Equal(ts) {
		t.Error("Clone() shares the status timestamp")
	}

	var nilBooking *Booking
	if nilBooking.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestBookingCheck(t *testing.T) {
	tests := []struct {
		name      string
		booking   *Booking
		wantCount int
	}{
		{name: "valid", booking: &Booking{ID: "b-1", Status: "confirmed", Guests: 1}, wantCount: 0},
		{name: "missingID", booking: &Booking{Status: "confirmed", Guests: 1}, wantCount: 1},
		{name: "badStatus", booking: &Booking{ID: "b-1", Status: "done", Guests: 1}, wantCount: 1},
		{name: "noGuests", booking: &Booking{ID: "b-1", Status: "pending"}, wantCount: 1},
		{name: "negativeTotal", booking: &Booking{ID: "b-1", Status: "pending", Guests: 1, TotalAmount: -5}, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.booking.Check(); len(got) != tt.wantCount {
				t.Errorf("Check() = %v, want %d errors", got, tt.wantCount)
			}
		})
	}
}

func TestActorOwns(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		booking *Booking
		want    bool
	}{
		{name: "ownerID", actor: Actor{ID: "u1", Role: RoleUser}, booking: &Booking{OwnerID: "u1"}, want: true},
		{name: "otherOwnerID", actor: Actor{ID: "u2", Role: RoleUser, Email: "a@x.io"}, booking: &Booking{OwnerID: "u1", Client: ClientIdentity{Email: "a@x.io"}}, want: false},
		{name: "emailFallback", actor: Actor{ID: "u1", Role: RoleUser, Email: "A@X.io"}, booking: &Booking{Client: ClientIdentity{Email: "a@x.io"}}, want: true},
		{name: "anonymous", actor: Anonymous(), booking: &Booking{}, want: false},
		{name: "nilBooking", actor: Actor{ID: "u1", Role: RoleUser}, booking: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.Owns(tt.booking); got != tt.want {
				t.Errorf("Owns() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureKinds(t *testing.T) {
	cause := errors.New("status 502")

	tests := []struct {
		name    string
		err     error
		want    error
		refresh bool
	}{
		{name: "validation", err: NewValidationFailure(OpArchive, "b-1", "no"), want: ErrValidation},
		{name: "transport", err: NewTransportFailure(OpList, "", "boom", cause), want: ErrTransport},
		{name: "conflict", err: NewConflictFailure(OpSetStatus, "b-1", cause), want: ErrConflict, refresh: true},
		{name: "cancelled", err: NewCancelledFailure(OpList), want: ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
			if NeedsRefresh(tt.err) != tt.refresh {
				t.Errorf("NeedsRefresh() = %v, want %v", !tt.refresh, tt.refresh)
			}
		})
	}

	wrapped := AsFailure(OpGet, "b-1", cause)
	if !IsTransport(wrapped) || !errors.Is(wrapped, cause) {
		t.Errorf("AsFailure() = %v, want transport wrapping cause", wrapped)
	}
	if wrapped.RawMessage != "status 502" {
		t.Errorf("RawMessage = %q, want %q", wrapped.RawMessage, "status 502")
	}
	if AsFailure(OpGet, "", nil) != nil {
		t.Error("AsFailure(nil) should be nil")
	}
}
