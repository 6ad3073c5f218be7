package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	bookingserrors "locafy/internal/bookings/errors"
	"locafy/internal/bookings/lifecycle"
	"locafy/internal/bookings/notifier"
	"locafy/internal/bookings/repository"
	"locafy/internal/bookings/validator"
	serviceserrors "locafy/internal/services/errors"
	userserrors "locafy/internal/users/errors"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/middleware"
	"locafy/pkg/model"
	"locafy/pkg/sanitizer"
	"locafy/pkg/validation"
)

const topServicesLimit = 5

type BookingService interface {
	Book(ctx context.Context, identity auth.Identity, req *model.BookingRequest) (*model.Booking, error)
	UserBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error)
	ProviderBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error)
	TodaysBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error)
	DashboardStats(ctx context.Context, identity auth.Identity) (*model.DashboardStats, error)
	UpdateStatus(ctx context.Context, identity auth.Identity, req *model.StatusUpdateRequest) (*model.Booking, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type ServiceFinder interface {
	FindByID(ctx context.Context, id string) (*model.Service, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	users     UserFinder
	services  ServiceFinder
	notifier  notifier.Notifier
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

// NewBookingService wires the booking flows. A nil notifier disables
// status change notifications.
func NewBookingService(
	repo repository.BookingRepository,
	users UserFinder,
	services ServiceFinder,
	n notifier.Notifier,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		users:     users,
		services:  services,
		notifier:  n,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Book(ctx context.Context, identity auth.Identity, req *model.BookingRequest) (*model.Booking, error) {
	req.ContactName = sanitizer.NormalizeName(req.ContactName)
	req.Address = sanitizer.TrimAndNormalize(req.Address)
	req.Notes = sanitizer.NormalizeText(req.Notes)

	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "user_id", identity.ID, "error", err)
		return nil, validation.ToAppError(err)
	}

	svc, err := s.services.FindByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, serviceserrors.ErrNotFound) || errors.Is(err, serviceserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Service", req.ServiceID)
		}
		s.cfg.Log.Error("Failed to load service for booking", "service_id", req.ServiceID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve service", err)
	}
	if svc.Status != model.ServiceActive {
		return nil, apperrors.InvalidInput("Service is not currently available")
	}

	user, err := s.users.FindByID(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	if !user.IsVerified {
		return nil, apperrors.Forbidden("Email not verified. Please verify your email before booking")
	}

	booking := &model.Booking{
		UserID:        user.ID,
		ProviderID:    svc.ProviderID,
		ServiceID:     svc.ID,
		Status:        model.StatusPending,
		ScheduledDate: req.ScheduledDate.UTC(),
		Address:       req.Address,
		ContactName:   req.ContactName,
		ContactMobile: sanitizer.NormalizePhone(req.ContactMobile),
		Notes:         req.Notes,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"user_id", identity.ID,
			"service_id", req.ServiceID,
			"error", err,
		)
		return nil, apperrors.StorageFailure("Failed to create booking", err)
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID.Hex(),
		"user_id", identity.ID,
		"provider_id", booking.ProviderID.Hex(),
		"service_id", booking.ServiceID.Hex(),
	)
	return booking, nil
}

func (s *bookingService) UserBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	userID, err := objectID(identity.ID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to get user bookings", "user_id", identity.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) ProviderBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	providerID, err := objectID(identity.ID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.repo.FindByProvider(ctx, providerID)
	if err != nil {
		s.cfg.Log.Error("Failed to get provider bookings", "provider_id", identity.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) TodaysBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	providerID, err := objectID(identity.ID)
	if err != nil {
		return nil, err
	}

	from, to := dayBounds(s.now())
	bookings, err := s.repo.FindByProviderCreatedBetween(ctx, providerID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to get today's bookings", "provider_id", identity.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) DashboardStats(ctx context.Context, identity auth.Identity) (*model.DashboardStats, error) {
	providerID, err := objectID(identity.ID)
	if err != nil {
		return nil, err
	}

	var (
		stats model.DashboardStats
		today []*model.BookingView
		mu    sync.Mutex
		errs  []error
		wg    sync.WaitGroup
	)

	run := func(op string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				s.cfg.Log.Error("Failed to compute dashboard stats",
					"provider_id", identity.ID,
					"operation", op,
					"error", err,
				)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	from, to := dayBounds(s.now())
	run("today", func(ctx context.Context) (err error) {
		today, err = s.repo.FindByProviderCreatedBetween(ctx, providerID, from, to)
		return err
	})
	run("total", func(ctx context.Context) (err error) {
		stats.TotalBookings, err = s.repo.CountByProvider(ctx, providerID, "")
		return err
	})
	run("pending", func(ctx context.Context) (err error) {
		stats.PendingRequests, err = s.repo.CountByProvider(ctx, providerID, model.StatusPending)
		return err
	})
	run("completed", func(ctx context.Context) (err error) {
		stats.CompletedJobs, err = s.repo.CountByProvider(ctx, providerID, model.StatusCompleted)
		return err
	})
	run("top_services", func(ctx context.Context) (err error) {
		stats.TopServices, err = s.repo.TopServices(ctx, providerID, topServicesLimit)
		return err
	})
	wg.Wait()

	if len(errs) > 0 {
		return nil, apperrors.Internal("Failed to compute dashboard stats", errors.Join(errs...))
	}

	stats.TodayBookings = len(today)
	for _, b := range today {
		if b.Status == model.StatusCompleted && b.Service != nil {
			stats.TodaySales += b.Service.Price
		}
	}
	if stats.TopServices == nil {
		stats.TopServices = []model.ServiceCount{}
	}

	return &stats, nil
}

// UpdateStatus applies a requested status change on behalf of identity. The
// change is persisted only if the stored status is still the one the guard
// decided on; notification failures are logged and never undo it.
func (s *bookingService) UpdateStatus(ctx context.Context, identity auth.Identity, req *model.StatusUpdateRequest) (*model.Booking, error) {
	if _, ok := model.ParseBookingStatus(req.NewStatus); !ok {
		return nil, apperrors.InvalidStatus(req.NewStatus)
	}
	if err := s.validator.ValidateStatusUpdate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	booking, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", req.ID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to load booking", "booking_id", req.ID, "error", err)
		return nil, apperrors.StorageFailure("Failed to retrieve booking", err)
	}

	actor := lifecycle.ActorFrom(identity)
	decision := lifecycle.CanTransition(actor, booking, req.NewStatus)
	if !decision.Allowed {
		s.cfg.Log.Warn("Booking status change denied",
			"booking_id", req.ID,
			"actor_id", identity.ID,
			"actor_role", identity.Role,
			"from", decision.From,
			"to", decision.To,
			"reason", decision.Reason,
		)
		return nil, decision.Err()
	}

	updated, err := s.repo.UpdateStatus(ctx, booking.ID, decision.From, decision.To)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.InvalidTransition(string(decision.From), string(decision.To))
		}
		s.cfg.Log.Error("Failed to update booking status",
			"booking_id", req.ID,
			"from", decision.From,
			"to", decision.To,
			"error", err,
		)
		return nil, apperrors.StorageFailure("Failed to update booking status", err)
	}

	s.cfg.Log.Info("Booking status updated",
		"booking_id", req.ID,
		"actor_id", identity.ID,
		"from", decision.From,
		"to", decision.To,
	)

	s.notify(ctx, actor, updated, decision.From)
	return updated, nil
}

// notify tells the counterparty of the actor about the change.
func (s *bookingService) notify(ctx context.Context, actor lifecycle.Actor, booking *model.Booking, previous model.BookingStatus) {
	if s.notifier == nil {
		return
	}

	recipientID := booking.ProviderID
	if actor.ID == booking.ProviderID.Hex() {
		recipientID = booking.UserID
	}

	change := notifier.StatusChange{
		Booking:        booking,
		PreviousStatus: previous,
		ActorID:        actor.ID,
		CorrelationID:  middleware.RequestID(ctx),
	}

	if recipient, err := s.users.FindByID(ctx, recipientID.Hex()); err != nil {
		s.cfg.Log.Warn("Failed to load notification recipient",
			"booking_id", booking.ID.Hex(),
			"recipient_id", recipientID.Hex(),
			"error", err,
		)
	} else {
		change.RecipientEmail = recipient.Email
		change.RecipientName = recipient.Name
	}

	if svc, err := s.services.FindByID(ctx, booking.ServiceID.Hex()); err != nil {
		s.cfg.Log.Warn("Failed to load service for notification",
			"booking_id", booking.ID.Hex(),
			"service_id", booking.ServiceID.Hex(),
			"error", err,
		)
	} else {
		change.ServiceName = svc.Name
	}

	if err := s.notifier.NotifyStatusChange(ctx, change); err != nil {
		s.cfg.Log.Warn("Booking status notification failed",
			"booking_id", booking.ID.Hex(),
			"status", booking.Status,
			"error", err,
		)
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperrors.Unauthorized("Invalid token subject")
	}
	return oid, nil
}

// dayBounds returns local midnight and the last millisecond of t's day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}
