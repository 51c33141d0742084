package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"hotel_id",
			"guest",
			"adult_count",
			"check_in",
			"check_out",
			"rooms",
			"total_cost",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"hotel_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"guest": bson.M{
				"bsonType": "object",
				"required": []string{"first_name", "last_name", "email"},
				"properties": bson.M{
					"first_name": bson.M{"bsonType": "string"},
					"last_name":  bson.M{"bsonType": "string"},
					"email":      bson.M{"bsonType": "string"},
					"phone":      bson.M{"bsonType": "string"},
				},
			},

			"adult_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"child_count": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"check_in":  bson.M{"bsonType": "date"},
			"check_out": bson.M{"bsonType": "date"},

			"rooms": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"room_type_id", "quantity"},
					"properties": bson.M{
						"room_type_id": bson.M{"bsonType": "string"},
						"quantity": bson.M{
							"bsonType": []string{"int", "long"},
							"minimum":  1,
						},
					},
				},
			},

			"total_cost": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
					"failed",
				},
			},

			"fail_reason": bson.M{"bsonType": "string"},
			"attempt": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
