package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "locafy/internal/bookings/errors"
	reviewserrors "locafy/internal/reviews/errors"
	"locafy/internal/reviews/validator"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/logger"
	"locafy/pkg/model"
	"locafy/pkg/storage"
)

type mockReviewRepository struct {
	reviews   []*model.Review
	createErr error
	existsErr error
}

func (m *mockReviewRepository) Create(ctx context.Context, review *model.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	review.ID = primitive.NewObjectID()
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviewRepository) ExistsFor(ctx context.Context, bookingID, userID primitive.ObjectID) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, r := range m.reviews {
		if r.BookingID == bookingID && r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReviewRepository) FindByService(ctx context.Context, serviceID primitive.ObjectID, limit int) ([]*model.ReviewView, error) {
	return nil, nil
}

func (m *mockReviewRepository) AverageRatingForProvider(ctx context.Context, providerID primitive.ObjectID) (float64, error) {
	var sum float64
	var n int
	for _, r := range m.reviews {
		if r.ProviderID == providerID && r.Rating > 0 {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

type mockBookings struct {
	booking   *model.Booking
	updateErr error
	updates   []model.BookingStatus
}

func (m *mockBookings) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.booking == nil || m.booking.ID.Hex() != id {
		return nil, bookingserrors.ErrNotFound
	}
	b := *m.booking
	return &b, nil
}

func (m *mockBookings) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to model.BookingStatus) (*model.Booking, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.booking.Status != from {
		return nil, bookingserrors.ErrStatusChanged
	}
	m.booking.Status = to
	m.updates = append(m.updates, to)
	b := *m.booking
	return &b, nil
}

type mockRatings struct {
	ratings map[primitive.ObjectID]float64
	err     error
}

func (m *mockRatings) SetRating(ctx context.Context, id primitive.ObjectID, rating float64) error {
	if m.err != nil {
		return m.err
	}
	m.ratings[id] = rating
	return nil
}

// mockTransactions runs fn in a session context without a real session.
type mockTransactions struct {
	calls int
}

func (m *mockTransactions) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	m.calls++
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockImageStore struct {
	uploadErr error
	uploaded  []string
	deleted   []string
}

func (m *mockImageStore) Upload(ctx context.Context, file io.Reader, folder string) (*storage.Image, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	id := folder + "/img1"
	m.uploaded = append(m.uploaded, id)
	return &storage.Image{URL: "https://img.example/" + id, PublicID: id}, nil
}

func (m *mockImageStore) Delete(ctx context.Context, publicID string) error {
	m.deleted = append(m.deleted, publicID)
	return nil
}

type fixture struct {
	service  ReviewService
	repo     *mockReviewRepository
	bookings *mockBookings
	ratings  *mockRatings
	tx       *mockTransactions
	images   *mockImageStore
	booking  *model.Booking
	user     auth.Identity
}

func newFixture(status model.BookingStatus) *fixture {
	booking := &model.Booking{
		ID:         primitive.NewObjectID(),
		UserID:     primitive.NewObjectID(),
		ProviderID: primitive.NewObjectID(),
		ServiceID:  primitive.NewObjectID(),
		Status:     status,
	}
	f := &fixture{
		repo:     &mockReviewRepository{},
		bookings: &mockBookings{booking: booking},
		ratings:  &mockRatings{ratings: map[primitive.ObjectID]float64{}},
		tx:       &mockTransactions{},
		images:   &mockImageStore{},
		booking:  booking,
		user:     auth.Identity{ID: booking.UserID.Hex(), Role: model.RoleUser},
	}
	cfg := &config.Config{Log: logger.Discard()}
	f.service = NewReviewService(f.repo, f.bookings, f.ratings, f.tx, f.images, validator.NewReviewValidator(), cfg)
	return f
}

func (f *fixture) request(rating float64) *model.ReviewRequest {
	return &model.ReviewRequest{
		BookingID:  f.booking.ID.Hex(),
		ServiceID:  f.booking.ServiceID.Hex(),
		ProviderID: f.booking.ProviderID.Hex(),
		Rating:     rating,
		ReviewText: "  Very   tidy work ",
	}
}

func TestSubmit_CompletesBookingAndUpdatesRating(t *testing.T) {
	f := newFixture(model.StatusConfirmed)

	review, err := f.service.Submit(context.Background(), f.user, f.request(4), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if review.ID.IsZero() {
		t.Error("expected review id to be set")
	}
	if len(review.ReviewImages) != 0 {
		t.Errorf("expected no images, got %v", review.ReviewImages)
	}
	if f.booking.Status != model.StatusCompleted {
		t.Errorf("booking status = %s, want completed", f.booking.Status)
	}
	if got := f.ratings.ratings[f.booking.ServiceID]; got != 4 {
		t.Errorf("service rating = %v, want 4", got)
	}
	if f.tx.calls != 1 {
		t.Errorf("transactions = %d, want 1", f.tx.calls)
	}
}

func TestSubmit_AlreadyCompletedBookingIsNotUpdated(t *testing.T) {
	f := newFixture(model.StatusCompleted)

	if _, err := f.service.Submit(context.Background(), f.user, f.request(5), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.bookings.updates) != 0 {
		t.Errorf("expected no booking update, got %v", f.bookings.updates)
	}
}

func TestSubmit_RatingIsProviderAverageRoundedToOneDecimal(t *testing.T) {
	f := newFixture(model.StatusCompleted)
	provider := f.booking.ProviderID
	f.repo.reviews = []*model.Review{
		{BookingID: primitive.NewObjectID(), ProviderID: provider, Rating: 5},
		{BookingID: primitive.NewObjectID(), ProviderID: provider, Rating: 4},
		{BookingID: primitive.NewObjectID(), ProviderID: provider, Rating: 0},
	}

	if _, err := f.service.Submit(context.Background(), f.user, f.request(4), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (5 + 4 + 4) / 3 = 4.333...; the zero rating is ignored.
	if got := f.ratings.ratings[f.booking.ServiceID]; got != 4.3 {
		t.Errorf("service rating = %v, want 4.3", got)
	}
}

func TestSubmit_ZeroRatingLeavesServiceUnrated(t *testing.T) {
	f := newFixture(model.StatusConfirmed)

	if _, err := f.service.Submit(context.Background(), f.user, f.request(0), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.ratings.ratings[f.booking.ServiceID]; ok {
		t.Errorf("service rating set to %v, want unset", f.ratings.ratings[f.booking.ServiceID])
	}
	if f.booking.Status != model.StatusCompleted {
		t.Errorf("booking status = %s, want completed", f.booking.Status)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		status   model.BookingStatus
		setup    func(f *fixture, req *model.ReviewRequest) auth.Identity
		wantCode string
	}{
		{
			name:   "cancelled booking",
			status: model.StatusCancelled,
			setup: func(f *fixture, _ *model.ReviewRequest) auth.Identity {
				return f.user
			},
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name:   "duplicate review",
			status: model.StatusCompleted,
			setup: func(f *fixture, _ *model.ReviewRequest) auth.Identity {
				f.repo.reviews = append(f.repo.reviews, &model.Review{BookingID: f.booking.ID, UserID: f.booking.UserID})
				return f.user
			},
			wantCode: apperrors.CodeConflict,
		},
		{
			name:   "duplicate review on cancelled booking",
			status: model.StatusCancelled,
			setup: func(f *fixture, _ *model.ReviewRequest) auth.Identity {
				f.repo.reviews = append(f.repo.reviews, &model.Review{BookingID: f.booking.ID, UserID: f.booking.UserID})
				return f.user
			},
			wantCode: apperrors.CodeConflict,
		},
		{
			name:   "someone else's booking",
			status: model.StatusConfirmed,
			setup: func(f *fixture, _ *model.ReviewRequest) auth.Identity {
				return auth.Identity{ID: primitive.NewObjectID().Hex(), Role: model.RoleUser}
			},
			wantCode: apperrors.CodeForbidden,
		},
		{
			name:   "booking not found",
			status: model.StatusConfirmed,
			setup: func(f *fixture, req *model.ReviewRequest) auth.Identity {
				req.BookingID = primitive.NewObjectID().Hex()
				return f.user
			},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:   "service mismatch",
			status: model.StatusConfirmed,
			setup: func(f *fixture, req *model.ReviewRequest) auth.Identity {
				req.ServiceID = primitive.NewObjectID().Hex()
				return f.user
			},
			wantCode: apperrors.CodeInvalidInput,
		},
		{
			name:   "rating out of range",
			status: model.StatusConfirmed,
			setup: func(f *fixture, req *model.ReviewRequest) auth.Identity {
				req.Rating = 6
				return f.user
			},
			wantCode: apperrors.CodeValidation,
		},
		{
			name:   "missing booking id",
			status: model.StatusConfirmed,
			setup: func(f *fixture, req *model.ReviewRequest) auth.Identity {
				req.BookingID = ""
				return f.user
			},
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.status)
			req := f.request(4)
			identity := tt.setup(f, req)

			_, err := f.service.Submit(context.Background(), identity, req, strings.NewReader("img"))
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if f.tx.calls != 0 {
				t.Error("transaction should not start")
			}
			if len(f.images.uploaded) != 0 {
				t.Error("image should not be uploaded")
			}
		})
	}
}

func TestSubmit_ImageUploadedAndStored(t *testing.T) {
	f := newFixture(model.StatusConfirmed)

	review, err := f.service.Submit(context.Background(), f.user, f.request(3), strings.NewReader("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(review.ReviewImages) != 1 || !strings.Contains(review.ReviewImages[0], storage.FolderReviews) {
		t.Errorf("unexpected images %v", review.ReviewImages)
	}
	if review.ReviewText != "Very tidy work" {
		t.Errorf("review text = %q", review.ReviewText)
	}
	if len(f.images.deleted) != 0 {
		t.Errorf("nothing should be deleted, got %v", f.images.deleted)
	}
}

func TestSubmit_FailureAfterUploadDeletesImage(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantCode string
	}{
		{
			name:     "insert fails",
			setup:    func(f *fixture) { f.repo.createErr = errors.New("write failed") },
			wantCode: apperrors.CodeStorageFailure,
		},
		{
			name:     "duplicate on insert",
			setup:    func(f *fixture) { f.repo.createErr = reviewserrors.ErrDuplicate },
			wantCode: apperrors.CodeConflict,
		},
		{
			name:     "booking changed concurrently",
			setup:    func(f *fixture) { f.bookings.updateErr = bookingserrors.ErrStatusChanged },
			wantCode: apperrors.CodeInvalidTransition,
		},
		{
			name:     "rating update fails",
			setup:    func(f *fixture) { f.ratings.err = errors.New("write failed") },
			wantCode: apperrors.CodeStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(model.StatusPending)
			tt.setup(f)

			_, err := f.service.Submit(context.Background(), f.user, f.request(4), strings.NewReader("img"))
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if len(f.images.deleted) != 1 || f.images.deleted[0] != f.images.uploaded[0] {
				t.Errorf("expected uploaded image to be deleted, got %v", f.images.deleted)
			}
		})
	}
}

func TestSubmit_StorageDisabled(t *testing.T) {
	f := newFixture(model.StatusConfirmed)
	f.images.uploadErr = storage.ErrStorageDisabled

	_, err := f.service.Submit(context.Background(), f.user, f.request(4), strings.NewReader("img"))
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("expected %s, got %v", apperrors.CodeUnavailable, err)
	}
}

func TestRoundRating(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{4.25, 4.3},
		{4.333333, 4.3},
		{4.96, 5},
	}
	for _, tt := range tests {
		if got := roundRating(tt.in); got != tt.want {
			t.Errorf("roundRating(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
