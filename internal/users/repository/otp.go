package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	userserrors "locafy/internal/users/errors"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	"locafy/pkg/model"
)

// OTPRepository keeps at most one code per email. Expired documents are
// removed by the TTL index on expires_at.
type OTPRepository interface {
	Upsert(ctx context.Context, otp *model.OTP) error
	// ClaimAttempt counts one verification attempt against the code for
	// email and returns it. Once maxAttempts have been used it returns
	// ErrOTPAttemptsExceeded until a new code is issued.
	ClaimAttempt(ctx context.Context, email string, maxAttempts int) (*model.OTP, error)
	Delete(ctx context.Context, email string) error
}

type mongoOTPRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOTPRepository(cfg *config.Config) OTPRepository {
	db := cfg.Client.Mongo.Database(cfg.Database())
	return &mongoOTPRepository{
		cfg:        cfg,
		collection: db.Collection(mongodb.CollectionOTPs),
	}
}

func (r *mongoOTPRepository) Upsert(ctx context.Context, otp *model.OTP) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": otp.Email}, otp, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

func (r *mongoOTPRepository) ClaimAttempt(ctx context.Context, email string, maxAttempts int) (*model.OTP, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": email, "attempts": bson.M{"$lt": maxAttempts}}
	update := bson.M{"$inc": bson.M{"attempts": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var otp model.OTP
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&otp)
	if err == nil {
		return &otp, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to claim otp attempt: %w", err)
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": email})
	if err != nil {
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	if n == 0 {
		return nil, userserrors.ErrOTPNotFound
	}
	return nil, userserrors.ErrOTPAttemptsExceeded
}

func (r *mongoOTPRepository) Delete(ctx context.Context, email string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": email}); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}
