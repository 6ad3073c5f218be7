package service

import (
	"context"
	"errors"
	"io"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "locafy/internal/bookings/errors"
	"locafy/internal/bookings/lifecycle"
	reviewserrors "locafy/internal/reviews/errors"
	"locafy/internal/reviews/repository"
	"locafy/internal/reviews/validator"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/model"
	"locafy/pkg/sanitizer"
	"locafy/pkg/storage"
	"locafy/pkg/validation"
)

type ReviewService interface {
	Submit(ctx context.Context, identity auth.Identity, req *model.ReviewRequest, image io.Reader) (*model.Review, error)
}

type BookingStore interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to model.BookingStatus) (*model.Booking, error)
}

type RatingStore interface {
	SetRating(ctx context.Context, id primitive.ObjectID, rating float64) error
}

type reviewService struct {
	repo      repository.ReviewRepository
	bookings  BookingStore
	ratings   RatingStore
	tx        mongodb.TransactionManager
	images    storage.ImageStore
	validator *validator.ReviewValidator
	cfg       *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	bookings BookingStore,
	ratings RatingStore,
	tx mongodb.TransactionManager,
	images storage.ImageStore,
	validator *validator.ReviewValidator,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		bookings:  bookings,
		ratings:   ratings,
		tx:        tx,
		images:    images,
		validator: validator,
		cfg:       cfg,
	}
}

// Submit stores the review, completes the booking if needed and refreshes the
// service rating in one transaction. An uploaded image is removed again when
// any later step fails.
func (s *reviewService) Submit(ctx context.Context, identity auth.Identity, req *model.ReviewRequest, image io.Reader) (*model.Review, error) {
	req.ReviewText = sanitizer.NormalizeText(req.ReviewText)
	if err := s.validator.Validate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	ids, err := mongodb.ObjectIDs(identity.ID, req.ServiceID, req.ProviderID)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid id format")
	}
	userID, serviceID, providerID := ids[0], ids[1], ids[2]

	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", req.BookingID)
		}
		s.cfg.Log.Error("Failed to get booking for review", "booking_id", req.BookingID, "error", err)
		return nil, apperrors.StorageFailure("Failed to retrieve booking", err)
	}
	if booking.UserID != userID {
		return nil, apperrors.Forbidden("You can only review your own bookings")
	}
	if booking.ServiceID != serviceID || booking.ProviderID != providerID {
		return nil, apperrors.InvalidInput("Review does not match the booking")
	}

	exists, err := s.repo.ExistsFor(ctx, booking.ID, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to check existing review", "booking_id", req.BookingID, "error", err)
		return nil, apperrors.StorageFailure("Failed to check existing review", err)
	}
	if exists {
		return nil, apperrors.Conflict("You have already reviewed this booking")
	}

	next, complete, err := lifecycle.CompleteForReview(booking)
	if err != nil {
		return nil, err
	}

	review := &model.Review{
		BookingID:    booking.ID,
		UserID:       userID,
		ProviderID:   providerID,
		ServiceID:    serviceID,
		Rating:       req.Rating,
		ReviewText:   req.ReviewText,
		ReviewImages: []string{},
	}

	var uploaded *storage.Image
	if image != nil {
		uploaded, err = s.images.Upload(ctx, image, storage.FolderReviews)
		if err != nil {
			if errors.Is(err, storage.ErrStorageDisabled) {
				return nil, apperrors.Unavailable("Image storage")
			}
			s.cfg.Log.Error("Failed to upload review image", "booking_id", req.BookingID, "error", err)
			return nil, apperrors.Internal("Failed to upload image", err)
		}
		review.ReviewImages = append(review.ReviewImages, uploaded.URL)
	}

	err = s.tx.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, review); err != nil {
			if errors.Is(err, reviewserrors.ErrDuplicate) {
				return apperrors.Conflict("You have already reviewed this booking")
			}
			return apperrors.StorageFailure("Failed to save review", err)
		}

		if complete {
			if _, err := s.bookings.UpdateStatus(sessCtx, booking.ID, booking.Status, next); err != nil {
				if errors.Is(err, bookingserrors.ErrStatusChanged) {
					return apperrors.InvalidTransition(string(booking.Status), string(next))
				}
				return apperrors.StorageFailure("Failed to complete booking", err)
			}
		}

		average, err := s.repo.AverageRatingForProvider(sessCtx, providerID)
		if err != nil {
			return apperrors.StorageFailure("Failed to compute rating", err)
		}
		// The rating stays unset until a review with a positive rating exists.
		if rating := roundRating(average); rating > 0 {
			if err := s.ratings.SetRating(sessCtx, serviceID, rating); err != nil {
				return apperrors.StorageFailure("Failed to update service rating", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to submit review", "booking_id", req.BookingID, "error", err)
		if uploaded != nil {
			if delErr := s.images.Delete(context.WithoutCancel(ctx), uploaded.PublicID); delErr != nil {
				s.cfg.Log.Warn("Failed to delete orphaned image", "public_id", uploaded.PublicID, "error", delErr)
			}
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.StorageFailure("Failed to submit review", err)
	}

	s.cfg.Log.Info("Review submitted",
		"review_id", review.ID.Hex(),
		"booking_id", req.BookingID,
		"service_id", req.ServiceID,
		"rating", review.Rating,
		"completed_booking", complete,
	)
	return review, nil
}

func roundRating(r float64) float64 {
	return math.Round(r*10) / 10
}
