package view

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/tourbook/pkg/enums/bookingstatus"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
)

type Scope string

const (
	ScopeActive   Scope = "active"
	ScopeArchived Scope = "archived"
	ScopeAll      Scope = "all"
)

const (
	SortCreatedAt   = "created_at"
	SortBookingDate = "booking_date"
	SortTotalAmount = "total_amount"
	SortClientName  = "client_name"
)

const dateLayout = "2006-01-02"

// Filters is the Filter Set. Zero-valued fields do not filter.
type Filters struct {
	Search    string
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
	MinGuests int
	MinAmount *float64
	MaxAmount *float64
	Scope     Scope
	SortBy    string
	SortAsc   bool
}

// Project returns the records matching every non-empty filter, sorted.
// records is neither reordered nor modified.
func Project(records []*booking.Booking, f Filters) []*booking.Booking {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var dateTo time.Time
	if f.DateTo != nil {
		dateTo = endOfDay(*f.DateTo)
	}

	out := make([]*booking.Booking, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if !inScope(r, f.Scope) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		if f.DateFrom != nil && r.BookingDate.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && r.BookingDate.After(dateTo) {
			continue
		}
		if f.MinGuests > 0 && r.Guests < f.MinGuests {
			continue
		}
		if f.MinAmount != nil && r.TotalAmount < *f.MinAmount {
			continue
		}
		if f.MaxAmount != nil && r.TotalAmount > *f.MaxAmount {
			continue
		}
		out = append(out, r)
	}

	sortRecords(out, f.SortBy, f.SortAsc)
	return out
}

// StatusCounts counts records per status within the filter scope.
func StatusCounts(records []*booking.Booking, scope Scope) map[string]int {
	counts := make(map[string]int, len(bookingstatus.All))
	for _, s := range bookingstatus.All {
		counts[s.Code()] = 0
	}
	for _, r := range records {
		if r != nil && inScope(r, scope) {
			counts[r.Status]++
		}
	}
	return counts
}

// Validate reports inconsistent filter values.
func (f Filters) Validate() []string {
	var errs []string
	if f.Status != "" && !bookingstatus.IsValid(f.Status) {
		errs = append(errs, "unknown status "+f.Status)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(endOfDay(*f.DateTo)) {
		errs = append(errs, "date_from is after date_to")
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		errs = append(errs, "min_amount is greater than max_amount")
	}
	if f.MinGuests < 0 {
		errs = append(errs, "min_guests cannot be negative")
	}
	switch f.Scope {
	case "", ScopeActive, ScopeArchived, ScopeAll:
	default:
		errs = append(errs, "unknown scope "+string(f.Scope))
	}
	return errs
}

// Params encodes the filter set as list query parameters for the authority.
func (f Filters) Params() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		v.Set("search", s)
	}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.DateFrom != nil {
		v.Set("date_from", f.DateFrom.Format(dateLayout))
	}
	if f.DateTo != nil {
		v.Set("date_to", f.DateTo.Format(dateLayout))
	}
	if f.MinGuests > 0 {
		v.Set("min_guests", strconv.Itoa(f.MinGuests))
	}
	if f.MinAmount != nil {
		v.Set("min_amount", strconv.FormatFloat(*f.MinAmount, 'f', -1, 64))
	}
	if f.MaxAmount != nil {
		v.Set("max_amount", strconv.FormatFloat(*f.MaxAmount, 'f', -1, 64))
	}
	if f.Scope != "" && f.Scope != ScopeActive {
		v.Set("scope", string(f.Scope))
	}
	return v
}

// ParseFilters reads a filter set from query parameters, the inverse of Params
// plus sort options.
func ParseFilters(q url.Values) (Filters, []string) {
	var f Filters
	var errs []string

	f.Search = strings.TrimSpace(q.Get("search"))
	f.Status = q.Get("status")
	f.Scope = Scope(q.Get("scope"))
	f.SortBy = q.Get("sort")
	f.SortAsc = q.Get("order") == "asc"

	if s := q.Get("date_from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			errs = append(errs, "invalid date_from")
		} else {
			f.DateFrom = &t
		}
	}
	if s := q.Get("date_to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			errs = append(errs, "invalid date_to")
		} else {
			f.DateTo = &t
		}
	}
	if s := q.Get("min_guests"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, "invalid min_guests")
		} else {
			f.MinGuests = n
		}
	}
	if s := q.Get("min_amount"); s != "" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, "invalid min_amount")
		} else {
			f.MinAmount = &n
		}
	}
	if s := q.Get("max_amount"); s != "" {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, "invalid max_amount")
		} else {
			f.MaxAmount = &n
		}
	}

	errs = append(errs, f.Validate()...)
	return f, errs
}

func inScope(r *booking.Booking, scope Scope) bool {
	switch scope {
	case ScopeArchived:
		return r.Archived
	case ScopeAll:
		return true
	default:
		return !r.Archived
	}
}

func matchesSearch(r *booking.Booking, needle string) bool {
	if strings.Contains(strings.ToLower(r.Client.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Client.Email), needle) {
		return true
	}
	for _, title := range r.PackageTitles() {
		if strings.Contains(strings.ToLower(title), needle) {
			return true
		}
	}
	return false
}

func sortRecords(records []*booking.Booking, by string, asc bool) {
	var less func(a, b *booking.Booking) bool
	switch by {
	case SortBookingDate:
		less = func(a, b *booking.Booking) bool { return a.BookingDate.Before(b.BookingDate) }
	case SortTotalAmount:
		less = func(a, b *booking.Booking) bool { return a.TotalAmount < b.TotalAmount }
	case SortClientName:
		less = func(a, b *booking.Booking) bool {
			return strings.ToLower(a.Client.Name) < strings.ToLower(b.Client.Name)
		}
	default:
		less = func(a, b *booking.Booking) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}

	sort.SliceStable(records, func(i, j int) bool {
		if asc {
			return less(records[i], records[j])
		}
		return less(records[j], records[i])
	})
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
