package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	serviceserrors "locafy/internal/services/errors"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	"locafy/pkg/model"
)

const earthRadiusKm = 6378.1

type ServiceRepository interface {
	Create(ctx context.Context, service *model.Service) error
	FindByID(ctx context.Context, id string) (*model.Service, error)
	FindAll(ctx context.Context) ([]*model.Service, error)
	FindByProvider(ctx context.Context, providerID primitive.ObjectID) ([]*model.Service, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status model.ServiceStatus) (*model.Service, error)
	SetRating(ctx context.Context, id primitive.ObjectID, rating float64) error
	FindRecommended(ctx context.Context, category string, exclude primitive.ObjectID, limit int) ([]*model.Service, error)
	FindPopular(ctx context.Context, limit int) ([]*model.PopularService, error)
	FindTopRated(ctx context.Context, limit int) ([]*model.Service, error)
	Search(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error)
}

type mongoServiceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	bookings   *mongo.Collection
}

func NewMongoServiceRepository(cfg *config.Config) ServiceRepository {
	db := cfg.Client.Mongo.Database(cfg.Database())
	return &mongoServiceRepository{
		cfg:        cfg,
		collection: db.Collection(mongodb.CollectionServices),
		bookings:   db.Collection(mongodb.CollectionBookings),
	}
}

func (r *mongoServiceRepository) Create(ctx context.Context, service *model.Service) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	service.CreatedAt = now
	service.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, service)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		service.ID = oid
	}
	return nil
}

func (r *mongoServiceRepository) FindByID(ctx context.Context, id string) (*model.Service, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", serviceserrors.ErrInvalidID, id)
	}

	var service model.Service
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&service); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serviceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find service: %w", err)
	}
	return &service, nil
}

func (r *mongoServiceRepository) FindAll(ctx context.Context) ([]*model.Service, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoServiceRepository) FindByProvider(ctx context.Context, providerID primitive.ObjectID) ([]*model.Service, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"provider_id": providerID}, opts)
}

func (r *mongoServiceRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status model.ServiceStatus) (*model.Service, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var service model.Service
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&service); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serviceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update service status: %w", err)
	}
	return &service, nil
}

func (r *mongoServiceRepository) SetRating(ctx context.Context, id primitive.ObjectID, rating float64) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"rating":     rating,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}})
	if err != nil {
		return fmt.Errorf("failed to set service rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return serviceserrors.ErrNotFound
	}
	return nil
}

func (r *mongoServiceRepository) FindRecommended(ctx context.Context, category string, exclude primitive.ObjectID, limit int) ([]*model.Service, error) {
	filter := bson.M{
		"category": category,
		"status":   model.ServiceActive,
		"_id":      bson.M{"$ne": exclude},
	}
	return r.find(ctx, filter, options.Find().SetLimit(int64(limit)))
}

// FindPopular ranks active services by how many bookings reference them.
func (r *mongoServiceRepository) FindPopular(ctx context.Context, limit int) ([]*model.PopularService, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$service_id", "bookings": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "bookings", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.CollectionServices,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "service",
		}}},
		{{Key: "$unwind", Value: "$service"}},
		{{Key: "$match", Value: bson.M{"service.status": model.ServiceActive}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$replaceRoot", Value: bson.M{
			"newRoot": bson.M{"$mergeObjects": bson.A{"$service", bson.M{"bookings": "$bookings"}}},
		}}},
	}

	cursor, err := r.bookings.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate popular services: %w", err)
	}
	defer cursor.Close(ctx)

	services := []*model.PopularService{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode popular services: %w", err)
	}
	return services, nil
}

func (r *mongoServiceRepository) FindTopRated(ctx context.Context, limit int) ([]*model.Service, error) {
	filter := bson.M{
		"status": model.ServiceActive,
		"rating": bson.M{"$gt": 0},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// Search supports three modes. Location only sorts by distance with $near.
// Text only sorts by text score. Both combine $text with a $geoWithin
// circle, since $near cannot be used together with $text.
func (r *mongoServiceRepository) Search(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error) {
	filter := bson.M{"status": model.ServiceActive}
	if search.Category != "" {
		filter["category"] = search.Category
	}

	opts := options.Find().SetLimit(int64(search.Limit))
	hasText := search.Query != ""

	if hasText {
		filter["$text"] = bson.M{"$search": search.Query}
		score := bson.M{"$meta": "textScore"}
		opts.SetProjection(bson.M{"score": score}).SetSort(bson.M{"score": score})
	}

	if search.HasLocation() {
		point := []float64{*search.Lng, *search.Lat}
		if hasText {
			filter["location"] = bson.M{"$geoWithin": bson.M{
				"$centerSphere": bson.A{point, search.RadiusKm / earthRadiusKm},
			}}
		} else {
			filter["location"] = bson.M{"$near": bson.M{
				"$geometry":    bson.M{"type": "Point", "coordinates": point},
				"$maxDistance": search.RadiusKm * 1000,
			}}
		}
	}

	return r.find(ctx, filter, opts)
}

func (r *mongoServiceRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Service, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find services: %w", err)
	}
	defer cursor.Close(ctx)

	services := []*model.Service{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("failed to decode services: %w", err)
	}
	return services, nil
}
