package validator

import (
	"errors"
	"testing"

	"hulu/pkg/logger"
	"hulu/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomTypeValidator_Validate(t *testing.T) {
	v := NewRoomTypeValidator(logger.NewNop())

	valid := &model.RoomType{HotelID: "hotel-1", Name: "King Suite", Capacity: 2, PricePerNight: 120, TotalRoomCount: 5}
	assert.NoError(t, v.Validate(valid))

	invalid := &model.RoomType{HotelID: "hotel-1", Name: "K", Capacity: 0, TotalRoomCount: -2}
	err := v.Validate(invalid)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := map[string]string{}
	for _, e := range verrs {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "Name must be at least 2", fields["Name"])
	assert.Equal(t, "Capacity is required", fields["Capacity"])
	assert.Equal(t, "TotalRoomCount must be greater than or equal to 0", fields["TotalRoomCount"])
}

func TestRoomTypeValidator_ValidateUpdate(t *testing.T) {
	v := NewRoomTypeValidator(logger.NewNop())

	price := -1.0
	err := v.ValidateUpdate(&model.RoomTypeUpdate{PricePerNight: &price})
	assert.Error(t, err)

	assert.NoError(t, v.ValidateUpdate(&model.RoomTypeUpdate{Name: "Twin Room"}))
}
