package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locafy/pkg/kafka"
	"locafy/pkg/mail"
	"locafy/pkg/model"
)

const (
	EventStatusChanged = "booking.status_changed"
	schemaVersion      = "1"
)

// StatusChange describes a persisted transition and who should hear of it.
type StatusChange struct {
	Booking        *model.Booking
	PreviousStatus model.BookingStatus
	ActorID        string
	RecipientEmail string
	RecipientName  string
	ServiceName    string
	CorrelationID  string
}

type Notifier interface {
	NotifyStatusChange(ctx context.Context, change StatusChange) error
}

// Multi calls every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyStatusChange(ctx context.Context, change StatusChange) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyStatusChange(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type EmailNotifier struct {
	mailer mail.Mailer
}

func NewEmailNotifier(mailer mail.Mailer) *EmailNotifier {
	return &EmailNotifier{mailer: mailer}
}

func (n *EmailNotifier) NotifyStatusChange(ctx context.Context, change StatusChange) error {
	if change.RecipientEmail == "" {
		return fmt.Errorf("booking %s has no recipient email", change.Booking.ID.Hex())
	}

	msg, err := mail.BookingStatusEmail(change.RecipientEmail, mail.BookingStatusData{
		BookingID:     change.Booking.ID.Hex(),
		Name:          change.RecipientName,
		ServiceName:   change.ServiceName,
		Status:        string(change.Booking.Status),
		ScheduledDate: change.Booking.ScheduledDate,
	})
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to email status change: %w", err)
	}
	return nil
}

// StatusChangedEvent is the payload of booking.status_changed.
type StatusChangedEvent struct {
	BookingID      string    `json:"booking_id"`
	UserID         string    `json:"user_id"`
	ProviderID     string    `json:"provider_id"`
	ServiceID      string    `json:"service_id"`
	PreviousStatus string    `json:"previous_status"`
	Status         string    `json:"status"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

type EventNotifier struct {
	publisher kafka.Publisher
	source    string
}

func NewEventNotifier(publisher kafka.Publisher, source string) *EventNotifier {
	return &EventNotifier{publisher: publisher, source: source}
}

func (n *EventNotifier) NotifyStatusChange(ctx context.Context, change StatusChange) error {
	b := change.Booking
	msg, err := kafka.NewMessage().
		WithKey(b.ID.Hex()).
		WithValue(StatusChangedEvent{
			BookingID:      b.ID.Hex(),
			UserID:         b.UserID.Hex(),
			ProviderID:     b.ProviderID.Hex(),
			ServiceID:      b.ServiceID.Hex(),
			PreviousStatus: string(change.PreviousStatus),
			Status:         string(b.Status),
			ChangedBy:      change.ActorID,
			ChangedAt:      b.UpdatedAt,
		}).
		WithEventType(EventStatusChanged).
		WithSchemaVersion(schemaVersion).
		WithSource(n.source).
		WithCorrelationID(change.CorrelationID).
		Build()
	if err != nil {
		return err
	}

	if err := n.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", EventStatusChanged, err)
	}
	return nil
}
