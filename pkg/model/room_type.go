package model

import "time"

type RoomType struct {
	ID                 string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	HotelID            string    `json:"hotel_id" bson:"hotel_id" validate:"required,min=1,max=64"`
	Name               string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity           int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=20"`
	PricePerNight      float64   `json:"price_per_night" bson:"price_per_night" validate:"gte=0"`
	TotalRoomCount     int       `json:"total_room_count" bson:"total_room_count" validate:"gte=0,max=10000"`
	Amenities          []string  `json:"amenities,omitempty" bson:"amenities,omitempty" validate:"omitempty,max=50,dive,required,max=100"`
	ImageURL           string    `json:"image_url,omitempty" bson:"image_url,omitempty" validate:"omitempty,url"`
	CancellationPolicy string    `json:"cancellation_policy,omitempty" bson:"cancellation_policy,omitempty" validate:"omitempty,max=500"`
	Oversold           bool      `json:"oversold" bson:"oversold"`
	Version            int64     `json:"version" bson:"version"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// RoomTypeUpdate carries the descriptive fields an owner may edit. The room count
// goes through SetTotalRoomCount.
type RoomTypeUpdate struct {
	Name               string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity           *int      `json:"capacity,omitempty" validate:"omitempty,min=1,max=20"`
	PricePerNight      *float64  `json:"price_per_night,omitempty" validate:"omitempty,gte=0"`
	Amenities          *[]string `json:"amenities,omitempty" validate:"omitempty,max=50,dive,required,max=100"`
	ImageURL           string    `json:"image_url,omitempty" validate:"omitempty,url"`
	CancellationPolicy string    `json:"cancellation_policy,omitempty" validate:"omitempty,max=500"`
}

type RoomTypeAvailability struct {
	RoomType  `bson:",inline"`
	Available *int `json:"available,omitempty"`
}
