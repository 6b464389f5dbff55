package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

type recordedRequest struct {
	method string
	path   string
	query  url.Values
	body   map[string]interface{}
}

func wireRecord(id, status string) map[string]interface{} {
	return map[string]interface{}{
		"id":           id,
		"status":       status,
		"guests":       2,
		"total_amount": 3000,
		"client":       map[string]interface{}{"name": "Lin", "email": "lin@example.com"},
	}
}

// newAuthorityServer answers every request with the {"data": ...} envelope
// built by respond, or with status when it is not 200.
func newAuthorityServer(t *testing.T, status int, respond func(r *http.Request) interface{}) (*BookingsDataAccess, *recordedRequest) {
	t.Helper()
	seen := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.method = r.Method
		seen.path = r.URL.Path
		seen.query = r.URL.Query()
		seen.body = nil
		json.NewDecoder(r.Body).Decode(&seen.body)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": http.StatusText(status), "message": "rejected"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": respond(r)})
	}))
	t.Cleanup(server.Close)
	return NewBookingsDataAccess(aqm.NewServiceClient(server.URL), nil), seen
}

func TestNewBookingsDataAccess(t *testing.T) {
	da := NewBookingsDataAccess(nil, nil)
	if da == nil {
		t.Fatal("NewBookingsDataAccess() returned nil")
	}
	if da.logger == nil {
		t.Error("logger should default to noop logger")
	}
}

func TestBookingsDataAccessNilClient(t *testing.T) {
	ctx := context.Background()
	da := &BookingsDataAccess{client: nil}

	calls := map[string]func() error{
		"List":     func() error { _, err := da.List(ctx, url.Values{}); return err },
		"ListMine": func() error { _, err := da.ListMine(ctx); return err },
		"Get":      func() error { _, err := da.Get(ctx, "b-1"); return err },
		"Create":   func() error { _, err := da.Create(ctx, booking.CreateRequest{}); return err },
		"SetStatus": func() error {
			_, err := da.SetStatus(ctx, "b-1", "confirmed")
			return err
		},
		"Archive":            func() error { _, err := da.Archive(ctx, "b-1", "duplicate"); return err },
		"Restore":            func() error { _, err := da.Restore(ctx, "b-1"); return err },
		"SaveNotes":          func() error { _, err := da.SaveNotes(ctx, "b-1", "x"); return err },
		"ResendConfirmation": func() error { return da.ResendConfirmation(ctx, "b-1") },
		"Delete":             func() error { return da.Delete(ctx, "b-1") },
		"DestroyPermanent":   func() error { return da.DestroyPermanent(ctx, "b-1") },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			if err == nil {
				t.Fatalf("%s() with nil client should return error", name)
			}
			if !booking.IsTransport(err) {
				t.Errorf("%s() error = %v, want transport failure", name, err)
			}
		})
	}
}

func TestBookingsDataAccessNilDA(t *testing.T) {
	var da *BookingsDataAccess

	if _, err := da.Get(context.Background(), "b-1"); err == nil {
		t.Error("Get() with nil DA should return error")
	}
}

func TestBookingsDataAccessRoundTrip(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		method     string
		pathSuffix string
		respond    func(r *http.Request) interface{}
		call       func(da *BookingsDataAccess) (*booking.Booking, error)
		check      func(t *testing.T, seen *recordedRequest)
	}{
		{
			name:       "get",
			method:     http.MethodGet,
			pathSuffix: "/bookings/b-1",
			respond:    func(r *http.Request) interface{} { return wireRecord("b-1", "pending") },
			call:       func(da *BookingsDataAccess) (*booking.Booking, error) { return da.Get(ctx, "b-1") },
		},
		{
			name:       "create",
			method:     http.MethodPost,
			pathSuffix: "/bookings",
			respond:    func(r *http.Request) interface{} { return wireRecord("b-new", "pending") },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return da.Create(ctx, booking.CreateRequest{Guests: 2})
			},
			check: func(t *testing.T, seen *recordedRequest) {
				if seen.body["guests"] != float64(2) {
					t.Errorf("body guests = %v, want 2", seen.body["guests"])
				}
			},
		},
		{
			name:       "setStatus",
			method:     http.MethodPatch,
			pathSuffix: "/bookings/b-1/status",
			respond:    func(r *http.Request) interface{} { return wireRecord("b-1", "confirmed") },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return da.SetStatus(ctx, "b-1", "confirmed")
			},
			check: func(t *testing.T, seen *recordedRequest) {
				if seen.body["status"] != "confirmed" {
					t.Errorf("body status = %v, want confirmed", seen.body["status"])
				}
			},
		},
		{
			name:       "archive",
			method:     http.MethodPatch,
			pathSuffix: "/bookings/b-1/archive",
			respond: func(r *http.Request) interface{} {
				rec := wireRecord("b-1", "cancelled")
				rec["archived"] = true
				return rec
			},
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return da.Archive(ctx, "b-1", "duplicate")
			},
			check: func(t *testing.T, seen *recordedRequest) {
				if seen.body["reason"] != "duplicate" {
					t.Errorf("body reason = %v, want duplicate", seen.body["reason"])
				}
			},
		},
		{
			name:       "restore",
			method:     http.MethodPatch,
			pathSuffix: "/bookings/b-1/restore",
			respond:    func(r *http.Request) interface{} { return wireRecord("b-1", "cancelled") },
			call:       func(da *BookingsDataAccess) (*booking.Booking, error) { return da.Restore(ctx, "b-1") },
		},
		{
			name:       "saveNotes",
			method:     http.MethodPatch,
			pathSuffix: "/bookings/b-1/notes",
			respond:    func(r *http.Request) interface{} { return wireRecord("b-1", "pending") },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return da.SaveNotes(ctx, "b-1", "vegetarian")
			},
			check: func(t *testing.T, seen *recordedRequest) {
				if seen.body["admin_notes"] != "vegetarian" {
					t.Errorf("body admin_notes = %v, want vegetarian", seen.body["admin_notes"])
				}
			},
		},
		{
			name:       "resendConfirmation",
			method:     http.MethodPost,
			pathSuffix: "/bookings/b-1/resend-confirmation",
			respond:    func(r *http.Request) interface{} { return map[string]string{"id": "b-1"} },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return nil, da.ResendConfirmation(ctx, "b-1")
			},
		},
		{
			name:       "delete",
			method:     http.MethodDelete,
			pathSuffix: "/bookings/b-1",
			respond:    func(r *http.Request) interface{} { return map[string]string{"id": "b-1"} },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return nil, da.Delete(ctx, "b-1")
			},
		},
		{
			name:       "destroyPermanent",
			method:     http.MethodDelete,
			pathSuffix: "/bookings/b-1/permanent",
			respond:    func(r *http.Request) interface{} { return map[string]string{"id": "b-1"} },
			call: func(da *BookingsDataAccess) (*booking.Booking, error) {
				return nil, da.DestroyPermanent(ctx, "b-1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			da, seen := newAuthorityServer(t, http.StatusOK, tt.respond)

			record, err := tt.call(da)
			if err != nil {
				t.Fatalf("%s() error = %v", tt.name, err)
			}
			if seen.method != tt.method {
				t.Errorf("Method = %s, want %s", seen.method, tt.method)
			}
			if !strings.HasSuffix(seen.path, tt.pathSuffix) {
				t.Errorf("Path = %s, want suffix %s", seen.path, tt.pathSuffix)
			}
			if record != nil && record.Guests != 2 {
				t.Errorf("Guests = %d, want 2", record.Guests)
			}
			if tt.check != nil {
				tt.check(t, seen)
			}
		})
	}
}

func TestBookingsDataAccessList(t *testing.T) {
	da, seen := newAuthorityServer(t, http.StatusOK, func(r *http.Request) interface{} {
		return []interface{}{wireRecord("a", "pending"), wireRecord("b", "confirmed")}
	})

	records, err := da.List(context.Background(), url.Values{"status": {"pending"}})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() len = %d, want 2", len(records))
	}
	if seen.method != http.MethodGet || !strings.HasSuffix(seen.path, "/bookings") {
		t.Errorf("request = %s %s, want GET /bookings", seen.method, seen.path)
	}
	if seen.query.Get("status") != "pending" {
		t.Errorf("status param = %q, want pending", seen.query.Get("status"))
	}

	if _, err := da.ListMine(context.Background()); err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if !strings.HasSuffix(seen.path, "/bookings/mine") {
		t.Errorf("Path = %s, want suffix /bookings/mine", seen.path)
	}
}

func TestBookingsDataAccessRejectedResponses(t *testing.T) {
	ctx := context.Background()

	calls := map[string]func(da *BookingsDataAccess) error{
		"List":               func(da *BookingsDataAccess) error { _, err := da.List(ctx, nil); return err },
		"ListMine":           func(da *BookingsDataAccess) error { _, err := da.ListMine(ctx); return err },
		"Get":                func(da *BookingsDataAccess) error { _, err := da.Get(ctx, "b-1"); return err },
		"Create":             func(da *BookingsDataAccess) error { _, err := da.Create(ctx, booking.CreateRequest{}); return err },
		"SetStatus":          func(da *BookingsDataAccess) error { _, err := da.SetStatus(ctx, "b-1", "confirmed"); return err },
		"Archive":            func(da *BookingsDataAccess) error { _, err := da.Archive(ctx, "b-1", ""); return err },
		"Restore":            func(da *BookingsDataAccess) error { _, err := da.Restore(ctx, "b-1"); return err },
		"SaveNotes":          func(da *BookingsDataAccess) error { _, err := da.SaveNotes(ctx, "b-1", "x"); return err },
		"ResendConfirmation": func(da *BookingsDataAccess) error { return da.ResendConfirmation(ctx, "b-1") },
		"Delete":             func(da *BookingsDataAccess) error { return da.Delete(ctx, "b-1") },
		"DestroyPermanent":   func(da *BookingsDataAccess) error { return da.DestroyPermanent(ctx, "b-1") },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			da, _ := newAuthorityServer(t, http.StatusInternalServerError, nil)

			err := call(da)
			var f *booking.Failure
			if !errors.As(err, &f) {
				t.Fatalf("%s() error = %v, want *booking.Failure", name, err)
			}
			if f.Kind != booking.KindTransport {
				t.Errorf("%s() kind = %s, want transport", name, f.Kind)
			}
		})
	}
}

func TestBookingsDataAccessConflict(t *testing.T) {
	da, _ := newAuthorityServer(t, http.StatusConflict, nil)

	_, err := da.SetStatus(context.Background(), "b-1", "confirmed")
	if !booking.IsConflict(err) {
		t.Errorf("SetStatus() error = %v, want conflict failure", err)
	}
}

func TestBookingsDataAccessUnsuccessfulEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "booking is archived",
		})
	}))
	t.Cleanup(server.Close)
	da := NewBookingsDataAccess(aqm.NewServiceClient(server.URL), nil)

	if _, err := da.SaveNotes(context.Background(), "b-1", "x"); !booking.IsTransport(err) {
		t.Errorf("SaveNotes() error = %v, want transport failure", err)
	}
	if _, err := da.List(context.Background(), nil); !booking.IsTransport(err) {
		t.Errorf("List() error = %v, want transport failure", err)
	}
}

func TestBookingsDataAccessMalformedRecord(t *testing.T) {
	da, _ := newAuthorityServer(t, http.StatusOK, func(r *http.Request) interface{} {
		return wireRecord("b-2", "pending")
	})

	_, err := da.SetStatus(context.Background(), "b-1", "confirmed")
	if !booking.IsTransport(err) {
		t.Errorf("SetStatus() error = %v, want transport failure for mismatched id", err)
	}
}
