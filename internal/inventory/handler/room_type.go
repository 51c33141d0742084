package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"hulu/internal/inventory/service"
	apperrors "hulu/pkg/errors"
	httputil "hulu/pkg/http"
	"hulu/pkg/logger"
	"hulu/pkg/middleware"
	"hulu/pkg/model"
)

type RoomTypeHandler struct {
	service service.RoomTypeService
	log     *logger.Logger
}

func NewRoomTypeHandler(service service.RoomTypeService, log *logger.Logger) *RoomTypeHandler {
	return &RoomTypeHandler{
		service: service,
		log:     log,
	}
}

type totalRoomCountRequest struct {
	TotalRoomCount *int `json:"total_room_count"`
}

type availabilityResponse struct {
	RoomTypeID string `json:"room_type_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  int    `json:"available"`
}

func (h *RoomTypeHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var rt model.RoomType
	if err := json.NewDecoder(r.Body).Decode(&rt); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), &rt); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, rt); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *RoomTypeHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rt, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, rt); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomTypeHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.RoomTypeUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	rt, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, rt); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomTypeHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *RoomTypeHandler) SetTotalRoomCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req totalRoomCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "SetTotalRoomCount", apperrors.InvalidInput("Invalid request body"))
		return
	}
	if req.TotalRoomCount == nil {
		h.writeError(w, "SetTotalRoomCount", apperrors.InvalidInput("total_room_count is required"))
		return
	}

	rt, err := h.service.SetTotalRoomCount(r.Context(), ps.ByName("id"), *req.TotalRoomCount)
	if err != nil {
		h.writeError(w, "SetTotalRoomCount", err)
		return
	}

	if err := httputil.WriteSuccess(w, rt); err != nil {
		h.log.Error("failed to write success response", "handler", "SetTotalRoomCount", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomTypeHandler) GetAvailability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	checkIn, checkOut, ok, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}
	if !ok {
		h.writeError(w, "GetAvailability", apperrors.InvalidInput("check_in and check_out query parameters are required"))
		return
	}

	id := ps.ByName("id")
	available, err := h.service.GetAvailable(r.Context(), id, checkIn, checkOut)
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availabilityResponse{
		RoomTypeID: id,
		CheckIn:    checkIn.Format(httputil.DateLayout),
		CheckOut:   checkOut.Format(httputil.DateLayout),
		Available:  available,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RoomTypeHandler) ListHotelRooms(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListHotelRooms", err)
		return
	}

	checkIn, checkOut, ok, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "ListHotelRooms", err)
		return
	}
	var in, out *time.Time
	if ok {
		in, out = &checkIn, &checkOut
	}

	rooms, totalCount, err := h.service.ListByHotel(r.Context(), ps.ByName("hotel_id"), in, out, limit, offset)
	if err != nil {
		h.writeError(w, "ListHotelRooms", err)
		return
	}

	if err := httputil.WritePaginated(w, rooms, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListHotelRooms", "operation", "WritePaginated", "error", err)
	}
}

func (h *RoomTypeHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *RoomTypeHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/room-types", middleware.RequireUser(h.Create))
	router.GET("/api/v1/room-types/:id", h.GetByID)
	router.PATCH("/api/v1/room-types/:id", middleware.RequireUser(h.Update))
	router.DELETE("/api/v1/room-types/:id", middleware.RequireUser(h.Delete))
	router.PUT("/api/v1/room-types/:id/total", middleware.RequireUser(h.SetTotalRoomCount))
	router.GET("/api/v1/room-types/:id/availability", h.GetAvailability)
	router.GET("/api/v1/hotels/:hotel_id/rooms", h.ListHotelRooms)
}
