package booking

import (
	"strings"
	"time"
)

// CreateRequest is the payload a client submits to reserve a tour.
type CreateRequest struct {
	OwnerID         string             `json:"owner_id,omitempty"`
	Client          ClientIdentity     `json:"client"`
	Packages        []PackageSelection `json:"packages"`
	Guests          int                `json:"guests"`
	BookingDate     time.Time          `json:"booking_date"`
	SpecialRequests string             `json:"special_requests,omitempty"`
	TotalAmount     float64            `json:"total_amount"`
}

// QuotedTotal is Σ(price × guests). The authority records the final amount.
func (r CreateRequest) QuotedTotal() float64 {
	var total float64
	for _, p := range r.Packages {
		total += p.Price * float64(r.Guests)
	}
	return total
}

func ValidateCreate(req CreateRequest, now time.Time) []string {
	var errors []string

	if strings.TrimSpace(req.Client.Name) == "" {
		errors = append(errors, "client name is required")
	}

	if strings.TrimSpace(req.Client.Email) == "" || !strings.Contains(req.Client.Email, "@") {
		errors = append(errors, "a valid client email is required")
	}

	if len(req.Packages) == 0 {
		errors = append(errors, "at least one package is required")
	}

	for _, p := range req.Packages {
		if strings.TrimSpace(p.PackageID) == "" {
			errors = append(errors, "package_id is required")
		}
		if p.Price < 0 {
			errors = append(errors, "package price cannot be negative")
		}
	}

	if req.Guests < 1 {
		errors = append(errors, "guests must be at least 1")
	}

	if req.BookingDate.IsZero() {
		errors = append(errors, "booking_date is required")
	} else if req.BookingDate.Before(startOfDay(now)) {
		errors = append(errors, "booking_date cannot be in the past")
	}

	return errors
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
