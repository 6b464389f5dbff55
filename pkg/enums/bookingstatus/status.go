package bookingstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if s.Name == "" {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Pending   Status
	Confirmed Status
	Cancelled Status
	// Requested marks a client cancellation request awaiting an administrator.
	Requested Status
}

var Statuses = Enum{
	Pending:   Status{Name: "pending"},
	Confirmed: Status{Name: "confirmed"},
	Cancelled: Status{Name: "cancelled"},
	Requested: Status{Name: "requested"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Confirmed,
	Statuses.Cancelled,
	Statuses.Requested,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

func IsValid(name string) bool {
	return ByName(name) != nil
}
