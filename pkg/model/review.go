package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating = 0
	MaxRating = 5
)

type Review struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	BookingID    primitive.ObjectID `json:"bookingId" bson:"booking_id"`
	UserID       primitive.ObjectID `json:"userId" bson:"user_id"`
	ProviderID   primitive.ObjectID `json:"providerId" bson:"provider_id"`
	ServiceID    primitive.ObjectID `json:"serviceId" bson:"service_id"`
	Rating       float64            `json:"rating" bson:"rating"`
	ReviewText   string             `json:"reviewText,omitempty" bson:"review_text,omitempty"`
	ReviewImages []string           `json:"reviewImages" bson:"review_images"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
}

type ReviewView struct {
	Review `bson:",inline"`
	User   *UserSummary `json:"user,omitempty" bson:"user,omitempty"`
}

// ReviewRequest is the multipart form for submitting a review.
type ReviewRequest struct {
	BookingID  string  `json:"bookingId" validate:"required,mongodb"`
	ServiceID  string  `json:"serviceId" validate:"required,mongodb"`
	ProviderID string  `json:"providerId" validate:"required,mongodb"`
	Rating     float64 `json:"rating" validate:"gte=0,lte=5"`
	ReviewText string  `json:"reviewText" validate:"max=2000"`
}
