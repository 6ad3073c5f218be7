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

	bookingserrors "locafy/internal/bookings/errors"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	"locafy/pkg/model"
)

const CollectionName = mongodb.CollectionBookings

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to model.BookingStatus) (*model.Booking, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*model.BookingView, error)
	FindByProvider(ctx context.Context, providerID primitive.ObjectID) ([]*model.BookingView, error)
	FindByProviderCreatedBetween(ctx context.Context, providerID primitive.ObjectID, from, to time.Time) ([]*model.BookingView, error)
	CountByProvider(ctx context.Context, providerID primitive.ObjectID, status model.BookingStatus) (int64, error)
	TopServices(ctx context.Context, providerID primitive.ObjectID, limit int) ([]model.ServiceCount, error)
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.Database())
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// UpdateStatus sets the status only if it still equals from, and returns the
// updated document. A miss yields ErrStatusChanged.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to model.BookingStatus) (*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]*model.BookingView, error) {
	return r.findViews(ctx, bson.M{"user_id": userID}, "provider_id", "provider")
}

func (r *mongoBookingRepository) FindByProvider(ctx context.Context, providerID primitive.ObjectID) ([]*model.BookingView, error) {
	return r.findViews(ctx, bson.M{"provider_id": providerID}, "user_id", "user")
}

func (r *mongoBookingRepository) FindByProviderCreatedBetween(ctx context.Context, providerID primitive.ObjectID, from, to time.Time) ([]*model.BookingView, error) {
	filter := bson.M{
		"provider_id": providerID,
		"created_at":  bson.M{"$gte": from, "$lte": to},
	}
	return r.findViews(ctx, filter, "user_id", "user")
}

// findViews resolves the service and one counterparty, newest first.
func (r *mongoBookingRepository) findViews(ctx context.Context, filter bson.M, partyField, partyAs string) ([]*model.BookingView, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.CollectionServices,
			"localField":   "service_id",
			"foreignField": "_id",
			"as":           "service",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$service", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.CollectionUsers,
			"localField":   partyField,
			"foreignField": "_id",
			"as":           partyAs,
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$" + partyAs, "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{partyAs + ".password_hash": 0}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.BookingView{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

// CountByProvider counts all of a provider's bookings, or only those in
// status when it is set.
func (r *mongoBookingRepository) CountByProvider(ctx context.Context, providerID primitive.ObjectID, status model.BookingStatus) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"provider_id": providerID}
	if status != "" {
		filter["status"] = status
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) TopServices(ctx context.Context, providerID primitive.ObjectID, limit int) ([]model.ServiceCount, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"provider_id": providerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$service_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         mongodb.CollectionServices,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "service",
		}}},
		{{Key: "$unwind", Value: "$service"}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{"count": 1, "name": "$service.name"}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top services: %w", err)
	}
	defer cursor.Close(ctx)

	top := []model.ServiceCount{}
	if err = cursor.All(ctx, &top); err != nil {
		return nil, fmt.Errorf("failed to decode top services: %w", err)
	}
	return top, nil
}
