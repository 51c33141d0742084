package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "hulu/pkg/errors"
	"hulu/pkg/logger"
	"hulu/pkg/middleware"
	"hulu/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	confirmFunc  func(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error)
	cancelFunc   func(ctx context.Context, ticket, userID string) (*model.Booking, error)
	receivedDay  time.Time
	receivedUser string
}

func (m *mockBookingService) ConfirmBooking(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, draft)
	}
	return &model.Booking{TicketNumber: "HULU-1", Status: model.BookingConfirmed}, nil
}

func (m *mockBookingService) CancelBooking(ctx context.Context, ticket, userID string) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, ticket, userID)
	}
	return &model.Booking{TicketNumber: ticket, Status: model.BookingCancelled}, nil
}

func (m *mockBookingService) GetBooking(ctx context.Context, ticket, userID string) (*model.Booking, error) {
	if userID != "user-1" {
		return nil, apperrors.NotFoundWithID("Booking", ticket)
	}
	return &model.Booking{TicketNumber: ticket, UserID: userID}, nil
}

func (m *mockBookingService) ListMyBookings(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	m.receivedUser = userID
	return []*model.Booking{{TicketNumber: "HULU-1", UserID: userID}}, 1, nil
}

func (m *mockBookingService) ListArrivals(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	m.receivedDay = day
	return []*model.Booking{}, nil
}

func (m *mockBookingService) ListDepartures(ctx context.Context, hotelID string, day time.Time) ([]*model.Booking, error) {
	m.receivedDay = day
	return []*model.Booking{}, nil
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, logger.NewNop()).RegisterRoutes(router)
	return router
}

func serve(router http.Handler, method, target, body, userID string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validBooking = `{
	"hotel_id": "hotel-addis",
	"guest": {"first_name": "Abebe", "last_name": "Kebede", "email": "abebe@example.com"},
	"adult_count": 2,
	"check_in": "2025-07-01",
	"check_out": "2025-07-04",
	"rooms": [{"room_type_id": "0000000000000000000000a1", "quantity": 2}]
}`

func TestConfirm(t *testing.T) {
	var received *model.BookingDraft
	svc := &mockBookingService{
		confirmFunc: func(_ context.Context, draft *model.BookingDraft) (*model.Booking, error) {
			received = draft
			return &model.Booking{TicketNumber: "HULU-1", Status: model.BookingConfirmed}, nil
		},
	}
	router := newRouter(svc)

	rec := serve(router, http.MethodPost, "/api/v1/bookings", validBooking, "user-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, received)
	assert.Equal(t, "user-1", received.UserID)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), received.CheckIn)
	assert.Equal(t, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), received.CheckOut)
	require.Len(t, received.Rooms, 1)
	assert.Equal(t, 2, received.Rooms[0].Quantity)

	var body struct {
		Data model.Booking `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "HULU-1", body.Data.TicketNumber)
}

func TestConfirm_BadRequests(t *testing.T) {
	router := newRouter(&mockBookingService{})

	tests := []struct {
		name       string
		body       string
		userID     string
		wantStatus int
	}{
		{"anonymous", validBooking, "", http.StatusUnauthorized},
		{"malformed body", `{`, "user-1", http.StatusBadRequest},
		{"missing dates", `{"hotel_id":"h"}`, "user-1", http.StatusBadRequest},
		{"malformed date", `{"check_in":"07/01/2025","check_out":"2025-07-04"}`, "user-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/api/v1/bookings", tt.body, tt.userID)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestConfirm_MapsInventoryErrors(t *testing.T) {
	svc := &mockBookingService{
		confirmFunc: func(context.Context, *model.BookingDraft) (*model.Booking, error) {
			return nil, apperrors.InsufficientInventory(2, 1)
		},
	}
	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/bookings", validBooking, "user-1")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeInsufficientInventory)
}

func TestGetByTicket_HidesOtherUsersBookings(t *testing.T) {
	router := newRouter(&mockBookingService{})

	rec := serve(router, http.MethodGet, "/api/v1/bookings/HULU-1", "", "user-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/api/v1/bookings/HULU-1", "", "user-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancel(t *testing.T) {
	var gotTicket, gotUser string
	svc := &mockBookingService{
		cancelFunc: func(_ context.Context, ticket, userID string) (*model.Booking, error) {
			gotTicket, gotUser = ticket, userID
			return &model.Booking{TicketNumber: ticket, Status: model.BookingCancelled}, nil
		},
	}
	rec := serve(newRouter(svc), http.MethodPost, "/api/v1/bookings/HULU-9/cancel", "", "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HULU-9", gotTicket)
	assert.Equal(t, "user-1", gotUser)
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
}

func TestListMine(t *testing.T) {
	svc := &mockBookingService{}
	rec := serve(newRouter(svc), http.MethodGet, "/api/v1/me/bookings?limit=5", "", "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", svc.receivedUser)
	assert.Contains(t, rec.Body.String(), "HULU-1")
}

func TestListArrivalsAndDepartures(t *testing.T) {
	svc := &mockBookingService{}
	router := newRouter(svc)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"arrivals", "/api/v1/hotels/h1/arrivals?date=2025-07-01", http.StatusOK},
		{"departures", "/api/v1/hotels/h1/departures?date=2025-07-01", http.StatusOK},
		{"missing date", "/api/v1/hotels/h1/arrivals", http.StatusBadRequest},
		{"malformed date", "/api/v1/hotels/h1/departures?date=tomorrow", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			ctx := middleware.WithRole(middleware.WithUserID(req.Context(), "staff-1"), middleware.RoleOwner)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req.WithContext(ctx))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), svc.receivedDay)
}

func TestListArrivalsAndDepartures_StaffOnly(t *testing.T) {
	svc := &mockBookingService{}
	router := newRouter(svc)

	for _, target := range []string{
		"/api/v1/hotels/h1/arrivals?date=2025-07-01",
		"/api/v1/hotels/h1/departures?date=2025-07-01",
	} {
		rec := serve(router, http.MethodGet, target, "", "guest-1")
		assert.Equal(t, http.StatusForbidden, rec.Code, target)

		rec = serve(router, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	assert.True(t, svc.receivedDay.IsZero(), "service must not be reached")
}
