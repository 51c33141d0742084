package model

import "time"

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationReleased  ReservationState = "released"
	ReservationCancelled ReservationState = "cancelled"
)

func (s ReservationState) Terminal() bool {
	return s == ReservationReleased || s == ReservationCancelled
}

type Reservation struct {
	ID         string           `json:"id" bson:"_id"`
	RoomTypeID string           `json:"room_type_id" bson:"room_type_id"`
	Quantity   int              `json:"quantity" bson:"quantity"`
	CheckIn    time.Time        `json:"check_in" bson:"check_in"`
	CheckOut   time.Time        `json:"check_out" bson:"check_out"`
	State      ReservationState `json:"state" bson:"state"`
	CreatedAt  time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" bson:"updated_at"`
}

// Overlaps reports whether the reservation occupies any night of [checkIn, checkOut).
func (r *Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return r.CheckIn.Before(checkOut) && checkIn.Before(r.CheckOut)
}

// ReleaseTask is the durable record that a reservation must be released once its
// stay ends. Its ID equals the reservation ID.
type ReleaseTask struct {
	ID            string     `json:"id" bson:"_id"`
	ReservationID string     `json:"reservation_id" bson:"reservation_id"`
	RoomTypeID    string     `json:"room_type_id" bson:"room_type_id"`
	DueAt         time.Time  `json:"due_at" bson:"due_at"`
	Executed      bool       `json:"executed" bson:"executed"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty" bson:"executed_at,omitempty"`
	// Attempts counts failed releases; NextAttemptAt holds the task back until then.
	Attempts      int        `json:"attempts" bson:"attempts"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty" bson:"next_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
}

// InventoryLock is an advisory lock serialising reservations of one room type
// across processes.
type InventoryLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
