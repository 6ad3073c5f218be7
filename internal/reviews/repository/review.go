package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	reviewserrors "locafy/internal/reviews/errors"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	"locafy/pkg/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	ExistsFor(ctx context.Context, bookingID, userID primitive.ObjectID) (bool, error)
	FindByService(ctx context.Context, serviceID primitive.ObjectID, limit int) ([]*model.ReviewView, error)
	AverageRatingForProvider(ctx context.Context, providerID primitive.ObjectID) (float64, error)
}

type mongoReviewRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoReviewRepository(cfg *config.Config) ReviewRepository {
	return &mongoReviewRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.Database()).Collection(mongodb.CollectionReviews),
	}
}

func (r *mongoReviewRepository) Create(ctx context.Context, review *model.Review) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if review.ReviewImages == nil {
		review.ReviewImages = []string{}
	}

	result, err := r.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return reviewserrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid
	}
	return nil
}

func (r *mongoReviewRepository) ExistsFor(ctx context.Context, bookingID, userID primitive.ObjectID) (bool, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"booking_id": bookingID, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return count > 0, nil
}

// FindByService returns the newest reviews of a service with their authors,
// never exposing password hashes.
func (r *mongoReviewRepository) FindByService(ctx context.Context, serviceID primitive.ObjectID, limit int) ([]*model.ReviewView, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"service_id": serviceID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.CollectionUsers,
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{"user.password_hash": 0}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []*model.ReviewView{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}

// AverageRatingForProvider averages the provider's positive ratings. A
// provider without any returns 0.
func (r *mongoReviewRepository) AverageRatingForProvider(ctx context.Context, providerID primitive.ObjectID) (float64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"provider_id": providerID, "rating": bson.M{"$gt": 0}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "average": bson.M{"$avg": "$rating"}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to average ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Average float64 `bson:"average"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode rating average: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Average, nil
}
