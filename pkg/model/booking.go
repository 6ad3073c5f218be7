package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{
	StatusPending,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
}

// ParseBookingStatus accepts only the exact lowercase status names.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	for _, status := range BookingStatuses {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s BookingStatus) String() string {
	return string(s)
}

type Booking struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"userId" bson:"user_id"`
	ProviderID    primitive.ObjectID `json:"providerId" bson:"provider_id"`
	ServiceID     primitive.ObjectID `json:"serviceId" bson:"service_id"`
	Status        BookingStatus      `json:"status" bson:"status"`
	ScheduledDate time.Time          `json:"scheduledDate" bson:"scheduled_date"`
	Address       string             `json:"address" bson:"address"`
	ContactName   string             `json:"name" bson:"contact_name"`
	ContactMobile string             `json:"mobile" bson:"contact_mobile"`
	Notes         string             `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updated_at"`
}

type BookingRequest struct {
	ServiceID     string    `json:"serviceId" validate:"required,mongodb"`
	ContactName   string    `json:"name" validate:"required,min=2,max=100"`
	ContactMobile string    `json:"mobile" validate:"required,mobile"`
	ScheduledDate time.Time `json:"scheduledDate" validate:"required"`
	Address       string    `json:"address" validate:"required,min=3,max=300"`
	Notes         string    `json:"notes" validate:"max=1000"`
}

// StatusUpdateRequest carries the raw status so that membership in the
// status set is checked by the lifecycle guard, not by decoding.
type StatusUpdateRequest struct {
	ID        string `json:"id" validate:"required,mongodb"`
	NewStatus string `json:"newStatus"`
}

// BookingView is a booking with its counterparties resolved for listing.
type BookingView struct {
	Booking  `bson:",inline"`
	User     *UserSummary    `json:"user,omitempty" bson:"user,omitempty"`
	Provider *UserSummary    `json:"provider,omitempty" bson:"provider,omitempty"`
	Service  *ServiceSummary `json:"service,omitempty" bson:"service,omitempty"`
}

type ServiceCount struct {
	ServiceID primitive.ObjectID `json:"serviceId" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	Count     int64              `json:"count" bson:"count"`
}

type DashboardStats struct {
	TodaySales      float64        `json:"todaySales"`
	TodayBookings   int            `json:"todayBookings"`
	TotalBookings   int64          `json:"totalBookings"`
	PendingRequests int64          `json:"pendingRequests"`
	CompletedJobs   int64          `json:"completedJobs"`
	TopServices     []ServiceCount `json:"topServices"`
}
