package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hulu/internal/bookings/service"
	apperrors "hulu/pkg/errors"
	httputil "hulu/pkg/http"
	"hulu/pkg/logger"
	"hulu/pkg/middleware"
	"hulu/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// bookingRequest carries dates as plain calendar strings.
type bookingRequest struct {
	TicketNumber string              `json:"ticket_number"`
	HotelID      string              `json:"hotel_id"`
	Guest        model.Guest         `json:"guest"`
	AdultCount   int                 `json:"adult_count"`
	ChildCount   int                 `json:"child_count"`
	CheckIn      string              `json:"check_in"`
	CheckOut     string              `json:"check_out"`
	Rooms        []model.BookingRoom `json:"rooms"`
}

func (req *bookingRequest) toDraft(userID string) (*model.BookingDraft, error) {
	if req.CheckIn == "" || req.CheckOut == "" {
		return nil, apperrors.InvalidInput("check_in and check_out are required")
	}
	checkIn, err := httputil.ParseDate(req.CheckIn)
	if err != nil {
		return nil, err
	}
	checkOut, err := httputil.ParseDate(req.CheckOut)
	if err != nil {
		return nil, err
	}

	return &model.BookingDraft{
		TicketNumber: req.TicketNumber,
		UserID:       userID,
		HotelID:      req.HotelID,
		Guest:        req.Guest,
		AdultCount:   req.AdultCount,
		ChildCount:   req.ChildCount,
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		Rooms:        req.Rooms,
	}, nil
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Confirm", apperrors.InvalidInput("Invalid request body"))
		return
	}

	draft, err := req.toDraft(middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	booking, err := h.service.ConfirmBooking(r.Context(), draft)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Confirm", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetBooking(r.Context(), ps.ByName("ticket"), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "GetByTicket", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByTicket", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.CancelBooking(r.Context(), ps.ByName("ticket"), middleware.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	bookings, totalCount, err := h.service.ListMyBookings(r.Context(), middleware.UserID(r.Context()), limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListArrivals(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.listOnDay(w, r, ps, "ListArrivals", h.service.ListArrivals)
}

func (h *BookingHandler) ListDepartures(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.listOnDay(w, r, ps, "ListDepartures", h.service.ListDepartures)
}

func (h *BookingHandler) listOnDay(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	handler string,
	list func(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error),
) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		h.writeError(w, handler, apperrors.InvalidInput("date query parameter is required"))
		return
	}
	day, err := httputil.ParseDate(raw)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	bookings, err := list(r.Context(), ps.ByName("hotel_id"), day)
	if err != nil {
		h.writeError(w, handler, err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", middleware.RequireUser(h.Confirm))
	router.GET("/api/v1/bookings/:ticket", middleware.RequireUser(h.GetByTicket))
	router.POST("/api/v1/bookings/:ticket/cancel", middleware.RequireUser(h.Cancel))
	router.GET("/api/v1/me/bookings", middleware.RequireUser(h.ListMine))
	// Arrivals and departures carry guest contact details.
	staffOnly := middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin)
	router.GET("/api/v1/hotels/:hotel_id/arrivals", staffOnly(h.ListArrivals))
	router.GET("/api/v1/hotels/:hotel_id/departures", staffOnly(h.ListDepartures))
}
