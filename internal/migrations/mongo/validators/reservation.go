package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_type_id",
			"quantity",
			"check_in",
			"check_out",
			"state",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"room_type_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"quantity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"check_in":  bson.M{"bsonType": "date"},
			"check_out": bson.M{"bsonType": "date"},

			"state": bson.M{
				"bsonType": "string",
				"enum": []string{
					"held",
					"released",
					"cancelled",
				},
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}

var ReleaseTaskValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"reservation_id", "room_type_id", "due_at", "executed", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":             bson.M{"bsonType": "string"},
			"reservation_id":  bson.M{"bsonType": "string"},
			"room_type_id":    bson.M{"bsonType": "string"},
			"due_at":          bson.M{"bsonType": "date"},
			"executed":        bson.M{"bsonType": "bool"},
			"executed_at":     bson.M{"bsonType": "date"},
			"attempts":        bson.M{"bsonType": []string{"int", "long"}, "minimum": 0},
			"next_attempt_at": bson.M{"bsonType": "date"},
			"last_error":      bson.M{"bsonType": "string"},
			"created_at":      bson.M{"bsonType": "date"},
		},
	},
}

var InventoryLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"owner", "expires_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
