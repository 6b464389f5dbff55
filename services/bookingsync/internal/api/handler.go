package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/engine"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/view"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the booking engine to presentation clients over HTTP.
type Handler struct {
	engine *engine.Engine
	logger aqm.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(e *engine.Engine, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		engine: e,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Put("/", h.SignIn)
		r.Delete("/", h.SignOut)
	})

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", h.ListBookings)
		r.Post("/", h.CreateBooking)
		r.Get("/counts", h.CountBookings)
		r.Post("/refresh", h.RefreshBookings)
		r.Get("/{id}", h.GetBooking)
		r.Delete("/{id}", h.DeleteBooking)
		r.Patch("/{id}/status", h.SetStatus)
		r.Post("/{id}/request-cancellation", h.RequestCancellation)
		r.Patch("/{id}/archive", h.ArchiveBooking)
		r.Patch("/{id}/restore", h.RestoreBooking)
		r.Patch("/{id}/notes", h.SaveNotes)
		r.Post("/{id}/resend-confirmation", h.ResendConfirmation)
		r.Delete("/{id}/permanent", h.DestroyBooking)
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

type sessionRequest struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type archiveRequest struct {
	Reason string `json:"reason"`
}

type notesRequest struct {
	AdminNotes string `json:"admin_notes"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSession")
	defer finish()

	aqm.Respond(w, http.StatusOK, h.engine.Actor(), nil)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SignIn")
	defer finish()

	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	role, ok := booking.ParseRole(req.Role)
	if !ok || role == booking.RoleNone || req.ID == "" {
		aqm.RespondError(w, http.StatusUnprocessableEntity, "id and a role of user or admin are required")
		return
	}

	actor := booking.Actor{ID: req.ID, Role: role, Name: req.Name, Email: req.Email}
	h.engine.SignIn(actor)
	aqm.Respond(w, http.StatusOK, actor, nil)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SignOut")
	defer finish()

	h.engine.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBookings")
	defer finish()

	filters, errs := view.ParseFilters(r.URL.Query())
	if len(errs) > 0 {
		aqm.RespondError(w, http.StatusUnprocessableEntity, errs[0])
		return
	}

	bookings := h.engine.ViewWith(filters)
	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	}, nil)
}

// RefreshBookings reloads the actor's scope from the authority. Administrators
// may narrow the server query with the same parameters ListBookings accepts.
func (h *Handler) RefreshBookings(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RefreshBookings")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	filters, errs := view.ParseFilters(r.URL.Query())
	if len(errs) > 0 {
		aqm.RespondError(w, http.StatusUnprocessableEntity, errs[0])
		return
	}

	var applied bool
	var err error
	switch {
	case len(r.URL.Query()) == 0:
		filters = h.engine.Filters()
		applied, err = h.engine.Refresh(ctx)
	case h.engine.Actor().IsAdmin():
		if err = h.engine.SetFilters(filters); err == nil {
			applied, err = h.engine.List(ctx, filters)
		}
	default:
		applied, err = h.engine.ListMine(ctx)
	}
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	bookings := h.engine.ViewWith(filters)
	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
		"applied":  applied,
	}, nil)
}

func (h *Handler) CountBookings(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CountBookings")
	defer finish()

	filters, errs := view.ParseFilters(r.URL.Query())
	if len(errs) > 0 {
		aqm.RespondError(w, http.StatusUnprocessableEntity, errs[0])
		return
	}

	aqm.Respond(w, http.StatusOK, view.StatusCounts(h.engine.Store().All(), filters.Scope), nil)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateBooking")
	defer finish()
	log := h.log(r)

	var req booking.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.Create(r.Context(), req)
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusCreated, record, nil)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBooking")
	defer finish()
	log := h.log(r)

	record, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetStatus")
	defer finish()
	log := h.log(r)

	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) RequestCancellation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RequestCancellation")
	defer finish()
	log := h.log(r)

	record, err := h.engine.RequestCancellation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) ArchiveBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ArchiveBooking")
	defer finish()
	log := h.log(r)

	var req archiveRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.Archive(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) RestoreBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RestoreBooking")
	defer finish()
	log := h.log(r)

	record, err := h.engine.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SaveNotes")
	defer finish()
	log := h.log(r)

	var req notesRequest
	if !h.decode(w, r, &req) {
		return
	}

	record, err := h.engine.SaveNotes(r.Context(), chi.URLParam(r, "id"), req.AdminNotes)
	if err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, record, nil)
}

func (h *Handler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ResendConfirmation")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	if err := h.engine.ResendConfirmation(r.Context(), id); err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusAccepted, map[string]interface{}{"id": id, "resent": true}, nil)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteBooking")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	if err := h.engine.Delete(r.Context(), id); err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true}, nil)
}

func (h *Handler) DestroyBooking(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DestroyBooking")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.engine.DestroyPermanent(r.Context(), id, confirmed); err != nil {
		h.respondFailure(w, log, err)
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true}, nil)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondFailure maps engine failures to HTTP statuses.
func (h *Handler) respondFailure(w http.ResponseWriter, log aqm.Logger, err error) {
	failure := booking.AsFailure("", "", err)

	switch failure.Kind {
	case booking.KindValidation:
		aqm.RespondError(w, http.StatusUnprocessableEntity, failure.Reason)
	case booking.KindConflict:
		aqm.RespondError(w, http.StatusConflict, failure.Reason)
	case booking.KindCancelled:
		w.WriteHeader(http.StatusNoContent)
	default:
		log.Error("booking command failed", "op", failure.Op, "booking_id", failure.BookingID, "error", failure.RawMessage)
		aqm.RespondError(w, http.StatusBadGateway, failure.Error())
	}
}
