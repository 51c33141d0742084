package model

import (
	"strconv"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingFailed    BookingStatus = "failed"
)

type BookingRoom struct {
	RoomTypeID string `json:"room_type_id" bson:"room_type_id" validate:"required,mongodb"`
	Quantity   int    `json:"quantity" bson:"quantity" validate:"required,min=1,max=100"`
}

type Guest struct {
	FirstName string `json:"first_name" bson:"first_name" validate:"required,min=1,max=100"`
	LastName  string `json:"last_name" bson:"last_name" validate:"required,min=1,max=100"`
	Email     string `json:"email" bson:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
}

// BookingDraft is what a guest submits. TicketNumber is optional; when set it is
// the idempotency key of the confirmation.
type BookingDraft struct {
	TicketNumber string        `json:"ticket_number,omitempty" validate:"omitempty,max=64"`
	UserID       string        `json:"-"`
	HotelID      string        `json:"hotel_id" validate:"required,min=1,max=64"`
	Guest        Guest         `json:"guest" validate:"required"`
	AdultCount   int           `json:"adult_count" validate:"required,min=1,max=100"`
	ChildCount   int           `json:"child_count" validate:"min=0,max=100"`
	CheckIn      time.Time     `json:"check_in" validate:"required"`
	CheckOut     time.Time     `json:"check_out" validate:"required,gtfield=CheckIn"`
	Rooms        []BookingRoom `json:"rooms" validate:"required,min=1,dive"`
}

type Booking struct {
	TicketNumber string        `json:"ticket_number" bson:"_id"`
	UserID       string        `json:"user_id" bson:"user_id"`
	HotelID      string        `json:"hotel_id" bson:"hotel_id"`
	Guest        Guest         `json:"guest" bson:"guest"`
	AdultCount   int           `json:"adult_count" bson:"adult_count"`
	ChildCount   int           `json:"child_count" bson:"child_count"`
	CheckIn      time.Time     `json:"check_in" bson:"check_in"`
	CheckOut     time.Time     `json:"check_out" bson:"check_out"`
	Rooms        []BookingRoom `json:"rooms" bson:"rooms"`
	TotalCost    float64       `json:"total_cost" bson:"total_cost"`
	Status       BookingStatus `json:"status" bson:"status"`
	FailReason   string        `json:"fail_reason,omitempty" bson:"fail_reason,omitempty"`
	// Attempt counts the reservation rounds given up on while the booking stayed pending.
	Attempt      int           `json:"-" bson:"attempt"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at"`
}

// ReservationID derives the reservation backing one room line of a booking. Every
// attempt after the first reserves under its own ids.
func ReservationID(ticketNumber, roomTypeID string, attempt int) string {
	id := ticketNumber + ":" + roomTypeID
	if attempt > 0 {
		id += ":" + strconv.Itoa(attempt)
	}
	return id
}

// Nights counts the whole nights between two calendar dates.
func Nights(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}
