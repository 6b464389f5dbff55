package booking

import (
	"time"

	"github.com/appetiteclub/tourbook/pkg/enums/bookingstatus"
)

// Booking mirrors the canonical record returned by the authority.
type Booking struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id,omitempty"`
	Status          string             `json:"status"`
	Archived        bool               `json:"archived"`
	ArchiveReason   string             `json:"archive_reason,omitempty"`
	Client          ClientIdentity     `json:"client"`
	Packages        []PackageSelection `json:"packages"`
	Guests          int                `json:"guests"`
	BookingDate     time.Time          `json:"booking_date"`
	TotalAmount     float64            `json:"total_amount"`
	AdminNotes      string             `json:"admin_notes,omitempty"`
	SpecialRequests string             `json:"special_requests,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	StatusUpdatedAt *time.Time         `json:"status_updated_at,omitempty"`
}

// ClientIdentity is denormalized at creation and may diverge from the live profile.
type ClientIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type PackageSelection struct {
	PackageID string  `json:"package_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Duration  string  `json:"duration,omitempty"`
}

// Clone returns a deep copy; records held by the store are never mutated in place.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Packages != nil {
		c.Packages = make([]PackageSelection, len(b.Packages))
		copy(c.Packages, b.Packages)
	}
	if b.StatusUpdatedAt != nil {
		t := *b.StatusUpdatedAt
		c.StatusUpdatedAt = &t
	}
	return &c
}

// Mutable reports whether ordinary moderation actions may touch the record.
func (b *Booking) Mutable() bool {
	return b != nil && !b.Archived
}

// Check verifies the record invariants the store relies on.
func (b *Booking) Check() []string {
	var errs []string
	if b == nil {
		return []string{"nil booking"}
	}
	if b.ID == "" {
		errs = append(errs, "id is required")
	}
	if !bookingstatus.IsValid(b.Status) {
		errs = append(errs, "unknown status "+b.Status)
	}
	if b.Guests < 1 {
		errs = append(errs, "guests must be at least 1")
	}
	if b.TotalAmount < 0 {
		errs = append(errs, "total_amount cannot be negative")
	}
	return errs
}

// PackageTitles lists the titles of the selected packages.
func (b *Booking) PackageTitles() []string {
	titles := make([]string, 0, len(b.Packages))
	for _, p := range b.Packages {
		titles = append(titles, p.Title)
	}
	return titles
}
