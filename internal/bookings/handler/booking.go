package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"locafy/internal/bookings/service"
	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	httputil "locafy/pkg/http"
	"locafy/pkg/logger"
	"locafy/pkg/middleware"
	"locafy/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	tokens  middleware.TokenParser
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, tokens middleware.TokenParser, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		tokens:  tokens,
		log:     log,
	}
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "Book")
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Book", err)
		return
	}

	booking, err := h.service.Book(r.Context(), identity, &req)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, "Booking created successfully", booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) UserBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "UserBookings")
	if !ok {
		return
	}

	bookings, err := h.service.UserBookings(r.Context(), identity)
	if err != nil {
		h.writeError(w, "UserBookings", err)
		return
	}

	h.writeSuccess(w, "UserBookings", bookings)
}

func (h *BookingHandler) ProviderBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "ProviderBookings")
	if !ok {
		return
	}

	bookings, err := h.service.ProviderBookings(r.Context(), identity)
	if err != nil {
		h.writeError(w, "ProviderBookings", err)
		return
	}

	h.writeSuccess(w, "ProviderBookings", bookings)
}

func (h *BookingHandler) TodaysBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "TodaysBookings")
	if !ok {
		return
	}

	bookings, err := h.service.TodaysBookings(r.Context(), identity)
	if err != nil {
		h.writeError(w, "TodaysBookings", err)
		return
	}

	h.writeSuccess(w, "TodaysBookings", bookings)
}

func (h *BookingHandler) DashboardStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "DashboardStats")
	if !ok {
		return
	}

	stats, err := h.service.DashboardStats(r.Context(), identity)
	if err != nil {
		h.writeError(w, "DashboardStats", err)
		return
	}

	h.writeSuccess(w, "DashboardStats", stats)
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r, "UpdateStatus")
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), identity, &req)
	if err != nil {
		h.writeError(w, "UpdateStatus", err)
		return
	}

	if err := httputil.WriteMessage(w, "Booking status updated successfully", booking); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(h.tokens)
	provider := middleware.RequireAuth(h.tokens, model.RoleProvider)

	router.POST("/api/booking/book", authed(h.Book))
	router.GET("/api/booking/user/get-booking", authed(h.UserBookings))
	router.GET("/api/booking/provider/get-booking", provider(h.ProviderBookings))
	router.GET("/api/booking/provider/todays-booking", provider(h.TodaysBookings))
	router.GET("/api/booking/provider/dashboard-stats", provider(h.DashboardStats))
	router.PATCH("/api/booking/update-booking-status", authed(h.UpdateStatus))
}

func (h *BookingHandler) identity(w http.ResponseWriter, r *http.Request, handler string) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
	}
	return identity, ok
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}
