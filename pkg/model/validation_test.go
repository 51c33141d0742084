package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestRoomType_Validation(t *testing.T) {
	v := validator.New()

	tests := []struct {
		name        string
		roomType    *RoomType
		expectValid bool
	}{
		{
			name: "valid room type",
			roomType: &RoomType{
				HotelID:        "hotel-1",
				Name:           "King Suite",
				Capacity:       2,
				PricePerNight:  180,
				TotalRoomCount: 5,
			},
			expectValid: true,
		},
		{
			name: "zero rooms is allowed",
			roomType: &RoomType{
				HotelID:  "hotel-1",
				Name:     "Closed Wing",
				Capacity: 2,
			},
			expectValid: true,
		},
		{
			name: "negative room count",
			roomType: &RoomType{
				HotelID:        "hotel-1",
				Name:           "King Suite",
				Capacity:       2,
				TotalRoomCount: -1,
			},
			expectValid: false,
		},
		{
			name: "missing hotel",
			roomType: &RoomType{
				Name:     "King Suite",
				Capacity: 2,
			},
			expectValid: false,
		},
		{
			name: "bad image url",
			roomType: &RoomType{
				HotelID:  "hotel-1",
				Name:     "King Suite",
				Capacity: 2,
				ImageURL: "not a url",
			},
			expectValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.roomType)
			assert.Equal(t, tt.expectValid, err == nil, "err: %v", err)
		})
	}
}

func TestBookingDraft_Validation(t *testing.T) {
	v := validator.New()
	checkIn := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	valid := func() *BookingDraft {
		return &BookingDraft{
			HotelID:    "hotel-1",
			Guest:      Guest{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
			AdultCount: 2,
			CheckIn:    checkIn,
			CheckOut:   checkIn.AddDate(0, 0, 2),
			Rooms:      []BookingRoom{{RoomTypeID: "507f1f77bcf86cd799439011", Quantity: 1}},
		}
	}

	assert.NoError(t, v.Struct(valid()))

	d := valid()
	d.CheckOut = d.CheckIn
	assert.Error(t, v.Struct(d), "check_out must be after check_in")

	d = valid()
	d.Rooms = nil
	assert.Error(t, v.Struct(d), "rooms are required")

	d = valid()
	d.Rooms[0].Quantity = 0
	assert.Error(t, v.Struct(d), "quantity must be positive")

	d = valid()
	d.Guest.Email = "nope"
	assert.Error(t, v.Struct(d), "email must be valid")
}

func TestReservation_Overlaps(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2030, 1, d, 0, 0, 0, 0, time.UTC) }
	r := &Reservation{CheckIn: day(1), CheckOut: day(3)}

	assert.True(t, r.Overlaps(day(2), day(4)))
	assert.True(t, r.Overlaps(day(1), day(2)))
	assert.False(t, r.Overlaps(day(3), day(5)), "checkout day is free")
	assert.False(t, r.Overlaps(day(0), day(1)))
}

func TestReservationState_Terminal(t *testing.T) {
	assert.False(t, ReservationHeld.Terminal())
	assert.True(t, ReservationReleased.Terminal())
	assert.True(t, ReservationCancelled.Terminal())
}

func TestNights(t *testing.T) {
	in := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, Nights(in, in.AddDate(0, 0, 3)))
	assert.Equal(t, "HULU-1:rt", ReservationID("HULU-1", "rt", 0))
	assert.Equal(t, "HULU-1:rt:2", ReservationID("HULU-1", "rt", 2))
}
