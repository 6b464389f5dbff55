package booking

import (
	"fmt"
	"strings"

	"github.com/appetiteclub/tourbook/pkg/enums/bookingstatus"
)

const (
	OpSetStatus          = "set_status"
	OpArchive            = "archive"
	OpRestore            = "restore"
	OpDestroy            = "destroy_permanent"
	OpDelete             = "delete"
	OpSaveNotes          = "save_notes"
	OpResendConfirmation = "resend_confirmation"
	OpCreate             = "create"
	OpGet                = "get"
	OpList               = "list"
	OpListMine           = "list_mine"
)

var (
	pending   = bookingstatus.Statuses.Pending.Code()
	confirmed = bookingstatus.Statuses.Confirmed.Code()
	cancelled = bookingstatus.Statuses.Cancelled.Code()
	requested = bookingstatus.Statuses.Requested.Code()
)

// adminTransitions lists the status changes an administrator may trigger on
// an active booking.
var adminTransitions = map[string][]string{
	pending:   {confirmed, cancelled},
	confirmed: {cancelled},
	cancelled: {pending},
	requested: {cancelled, pending},
}

// clientTransitions lists the only status changes an owning client may request.
var clientTransitions = map[string][]string{
	pending: {requested},
}

// CanSetStatus checks a status change before any network call is issued.
func CanSetStatus(actor Actor, b *Booking, target string) error {
	if err := checkTarget(actor, b, OpSetStatus); err != nil {
		return err
	}
	if !bookingstatus.IsValid(target) {
		return NewValidationFailure(OpSetStatus, b.ID, fmt.Sprintf("unknown status %q", target))
	}
	if !b.Mutable() {
		return NewValidationFailure(OpSetStatus, b.ID, "booking is archived, restore it first")
	}
	if b.Status == target {
		return NewValidationFailure(OpSetStatus, b.ID, fmt.Sprintf("booking is already %s", target))
	}

	table := adminTransitions
	if !actor.IsAdmin() {
		if !actor.Owns(b) {
			return NewValidationFailure(OpSetStatus, b.ID, "only the owner may change this booking")
		}
		table = clientTransitions
	}

	if !allowed(table, b.Status, target) {
		return NewValidationFailure(OpSetStatus, b.ID,
			fmt.Sprintf("%s cannot move a booking from %s to %s", roleName(actor), b.Status, target))
	}
	return nil
}

func CanArchive(actor Actor, b *Booking) error {
	if err := checkAdminTarget(actor, b, OpArchive); err != nil {
		return err
	}
	if b.Archived {
		return NewValidationFailure(OpArchive, b.ID, "booking is already archived")
	}
	return nil
}

func CanRestore(actor Actor, b *Booking) error {
	if err := checkAdminTarget(actor, b, OpRestore); err != nil {
		return err
	}
	if !b.Archived {
		return NewValidationFailure(OpRestore, b.ID, "booking is not archived")
	}
	return nil
}

func CanSaveNotes(actor Actor, b *Booking, text string) error {
	if err := checkAdminTarget(actor, b, OpSaveNotes); err != nil {
		return err
	}
	if !b.Mutable() {
		return NewValidationFailure(OpSaveNotes, b.ID, "booking is archived, restore it first")
	}
	if strings.TrimSpace(text) == strings.TrimSpace(b.AdminNotes) {
		return NewValidationFailure(OpSaveNotes, b.ID, "notes are unchanged")
	}
	return nil
}

func CanResendConfirmation(actor Actor, b *Booking) error {
	if err := checkAdminTarget(actor, b, OpResendConfirmation); err != nil {
		return err
	}
	if !b.Mutable() {
		return NewValidationFailure(OpResendConfirmation, b.ID, "booking is archived, restore it first")
	}
	if b.Status != confirmed {
		return NewValidationFailure(OpResendConfirmation, b.ID, "only confirmed bookings have a confirmation to resend")
	}
	return nil
}

// CanDelete gates the client-owned hard delete: only before confirmation.
func CanDelete(actor Actor, b *Booking) error {
	if err := checkTarget(actor, b, OpDelete); err != nil {
		return err
	}
	if !actor.Owns(b) {
		return NewValidationFailure(OpDelete, b.ID, "only the owner may delete this booking")
	}
	if !b.Mutable() {
		return NewValidationFailure(OpDelete, b.ID, "booking is archived")
	}
	if b.Status == confirmed {
		return NewValidationFailure(OpDelete, b.ID, "confirmed bookings cannot be deleted, request a cancellation instead")
	}
	return nil
}

// CanDestroy gates the irreversible administrator delete. It applies to any
// state, archived included, but needs an explicit confirmation.
func CanDestroy(actor Actor, b *Booking, confirmed bool) error {
	if err := checkAdminTarget(actor, b, OpDestroy); err != nil {
		return err
	}
	if !confirmed {
		return NewValidationFailure(OpDestroy, b.ID, "permanent deletion requires explicit confirmation")
	}
	return nil
}

func checkTarget(actor Actor, b *Booking, op string) error {
	if !actor.IsAuthenticated() {
		id := ""
		if b != nil {
			id = b.ID
		}
		return NewValidationFailure(op, id, "sign in required")
	}
	if b == nil {
		return NewValidationFailure(op, "", "booking not found")
	}
	return nil
}

func checkAdminTarget(actor Actor, b *Booking, op string) error {
	if err := checkTarget(actor, b, op); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return NewValidationFailure(op, b.ID, "administrator role required")
	}
	return nil
}

func allowed(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

func roleName(actor Actor) string {
	if actor.IsAdmin() {
		return "administrator"
	}
	return "client"
}
