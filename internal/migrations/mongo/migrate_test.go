package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"hulu/internal/migrations/mongo/validators"
	"hulu/pkg/model"
)

func TestCollections(t *testing.T) {
	collections := Collections()

	for _, name := range []string{"Room_types", "Reservations", "Release_tasks", "Inventory_locks", "Bookings"} {
		t.Run(name, func(t *testing.T) {
			def, ok := collections[name]
			require.True(t, ok)
			assert.NotEmpty(t, def.Indexes)

			schema, ok := def.Validator["$jsonSchema"].(bson.M)
			require.True(t, ok)
			assert.NotEmpty(t, schema["required"])
		})
	}
}

func TestInventoryLocksExpire(t *testing.T) {
	require.Len(t, InventoryLocksIndexes, 1)
	opts := InventoryLocksIndexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.ExpireAfterSeconds)
	assert.EqualValues(t, 0, *opts.ExpireAfterSeconds)
}

func TestReservationStatesMatchModel(t *testing.T) {
	schema := validators.ReservationValidator["$jsonSchema"].(bson.M)
	state := schema["properties"].(bson.M)["state"].(bson.M)

	assert.ElementsMatch(t, []string{
		string(model.ReservationHeld),
		string(model.ReservationReleased),
		string(model.ReservationCancelled),
	}, state["enum"])
}
