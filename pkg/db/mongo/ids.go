package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidObjectID = errors.New("invalid object id")

// ObjectIDs converts hex ids, failing on the first malformed one.
func ObjectIDs(ids ...string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, ErrInvalidObjectID
		}
		out = append(out, oid)
	}
	return out, nil
}
