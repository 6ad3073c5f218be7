package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"provider_id",
			"service_id",
			"status",
			"scheduled_date",
			"address",
			"contact_name",
			"contact_mobile",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType": "objectId",
			},

			"provider_id": bson.M{
				"bsonType": "objectId",
			},

			"service_id": bson.M{
				"bsonType": "objectId",
			},

			"status": bson.M{
				"enum": []string{"pending", "confirmed", "completed", "cancelled"},
			},

			"scheduled_date": bson.M{
				"bsonType": "date",
			},

			"address": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 300,
			},

			"contact_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"contact_mobile": bson.M{
				"bsonType": "string",
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
