package service

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"

	serviceserrors "locafy/internal/services/errors"
	"locafy/internal/services/repository"
	"locafy/internal/services/validator"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/model"
	"locafy/pkg/sanitizer"
	"locafy/pkg/storage"
	"locafy/pkg/validation"
)

const (
	detailsReviewLimit = 10
	recommendedLimit   = 4
	popularLimit       = 4
	topRatedLimit      = 4
)

type ServiceService interface {
	Add(ctx context.Context, identity auth.Identity, req *model.ServiceRequest, image io.Reader) (*model.Service, error)
	ListAll(ctx context.Context) ([]*model.Service, error)
	ListByProvider(ctx context.Context, providerID string) ([]*model.Service, error)
	ToggleStatus(ctx context.Context, identity auth.Identity, req *model.ServiceStatusRequest) (*model.Service, error)
	Details(ctx context.Context, serviceID string) (*model.ServiceDetails, error)
	Popular(ctx context.Context) ([]*model.PopularService, error)
	TopRated(ctx context.Context) ([]*model.Service, error)
	Search(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error)
}

// ReviewFinder lists a service's reviews with their authors.
type ReviewFinder interface {
	FindByService(ctx context.Context, serviceID primitive.ObjectID, limit int) ([]*model.ReviewView, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type serviceService struct {
	repo      repository.ServiceRepository
	reviews   ReviewFinder
	users     UserFinder
	images    storage.ImageStore
	validator *validator.ServiceValidator
	cfg       *config.Config
}

func NewServiceService(
	repo repository.ServiceRepository,
	reviews ReviewFinder,
	users UserFinder,
	images storage.ImageStore,
	validator *validator.ServiceValidator,
	cfg *config.Config,
) ServiceService {
	return &serviceService{
		repo:      repo,
		reviews:   reviews,
		users:     users,
		images:    images,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *serviceService) Add(ctx context.Context, identity auth.Identity, req *model.ServiceRequest, image io.Reader) (*model.Service, error) {
	req.Name = sanitizer.TrimAndNormalize(req.Name)
	req.Description = sanitizer.NormalizeText(req.Description)
	req.Category = sanitizer.NormalizeCategory(req.Category)
	req.Address = sanitizer.TrimAndNormalize(req.Address)

	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, validation.ToAppError(err)
	}
	if image == nil {
		return nil, apperrors.InvalidInput("Image is required")
	}

	providerID, err := primitive.ObjectIDFromHex(identity.ID)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid token subject")
	}

	uploaded, err := s.images.Upload(ctx, image, storage.FolderServices)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			return nil, apperrors.Unavailable("Image storage")
		}
		s.cfg.Log.Error("Failed to upload service image", "provider_id", identity.ID, "error", err)
		return nil, apperrors.Internal("Failed to upload image", err)
	}

	svc := &model.Service{
		ProviderID:    providerID,
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		Category:      req.Category,
		Image:         uploaded.URL,
		ImagePublicID: uploaded.PublicID,
		Location:      model.NewGeoPoint(req.Longitude, req.Latitude, req.Address),
		Status:        model.ServiceActive,
	}

	if err := s.repo.Create(ctx, svc); err != nil {
		s.cfg.Log.Error("Failed to create service", "provider_id", identity.ID, "error", err)
		if delErr := s.images.Delete(context.WithoutCancel(ctx), uploaded.PublicID); delErr != nil {
			s.cfg.Log.Warn("Failed to delete orphaned image", "public_id", uploaded.PublicID, "error", delErr)
		}
		return nil, apperrors.StorageFailure("Failed to create service", err)
	}

	s.cfg.Log.Info("Service created",
		"service_id", svc.ID.Hex(),
		"provider_id", identity.ID,
		"category", svc.Category,
	)
	return svc, nil
}

func (s *serviceService) ListAll(ctx context.Context) ([]*model.Service, error) {
	services, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list services", "error", err)
		return nil, apperrors.Internal("Failed to retrieve services", err)
	}
	return services, nil
}

func (s *serviceService) ListByProvider(ctx context.Context, providerID string) ([]*model.Service, error) {
	oid, err := primitive.ObjectIDFromHex(providerID)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid provider ID format")
	}

	services, err := s.repo.FindByProvider(ctx, oid)
	if err != nil {
		s.cfg.Log.Error("Failed to list provider services", "provider_id", providerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve services", err)
	}
	return services, nil
}

// ToggleStatus sets the requested status, or flips the current one when
// none is given. Only the owning provider may change it.
func (s *serviceService) ToggleStatus(ctx context.Context, identity auth.Identity, req *model.ServiceStatusRequest) (*model.Service, error) {
	if err := s.validator.ValidateStatusRequest(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	svc, err := s.get(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.ProviderID.Hex() != identity.ID {
		return nil, apperrors.Forbidden("You can only change your own services")
	}

	next := model.ServiceStatus(req.Status)
	if next == "" {
		next = model.ServiceActive
		if svc.Status == model.ServiceActive {
			next = model.ServiceInactive
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, svc.ID, next)
	if err != nil {
		s.cfg.Log.Error("Failed to update service status", "service_id", req.ServiceID, "error", err)
		return nil, apperrors.StorageFailure("Failed to update service status", err)
	}

	s.cfg.Log.Info("Service status updated", "service_id", req.ServiceID, "status", next)
	return updated, nil
}

func (s *serviceService) Details(ctx context.Context, serviceID string) (*model.ServiceDetails, error) {
	svc, err := s.get(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	details := &model.ServiceDetails{Service: svc}

	if provider, err := s.users.FindByID(ctx, svc.ProviderID.Hex()); err == nil {
		details.Provider = provider.Summary()
	} else {
		s.cfg.Log.Warn("Failed to load service provider", "service_id", serviceID, "error", err)
	}

	reviews, err := s.reviews.FindByService(ctx, svc.ID, detailsReviewLimit)
	if err != nil {
		s.cfg.Log.Error("Failed to load service reviews", "service_id", serviceID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reviews", err)
	}
	details.Reviews = make([]*model.ReviewView, 0, len(reviews))
	for _, r := range reviews {
		if r.User == nil || r.User.Name == "" {
			continue
		}
		details.Reviews = append(details.Reviews, r)
	}

	details.Recommended, err = s.repo.FindRecommended(ctx, svc.Category, svc.ID, recommendedLimit)
	if err != nil {
		s.cfg.Log.Error("Failed to load recommended services", "service_id", serviceID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve recommendations", err)
	}

	return details, nil
}

func (s *serviceService) Popular(ctx context.Context) ([]*model.PopularService, error) {
	services, err := s.repo.FindPopular(ctx, popularLimit)
	if err != nil {
		s.cfg.Log.Error("Failed to get popular services", "error", err)
		return nil, apperrors.Internal("Failed to retrieve popular services", err)
	}
	return services, nil
}

func (s *serviceService) TopRated(ctx context.Context) ([]*model.Service, error) {
	services, err := s.repo.FindTopRated(ctx, topRatedLimit)
	if err != nil {
		s.cfg.Log.Error("Failed to get top rated services", "error", err)
		return nil, apperrors.Internal("Failed to retrieve top rated services", err)
	}
	return services, nil
}

func (s *serviceService) Search(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error) {
	search.Query = sanitizer.TrimAndNormalize(search.Query)
	search.Category = sanitizer.NormalizeCategory(search.Category)

	if err := s.validator.ValidateSearch(&search); err != nil {
		return nil, validation.ToAppError(err)
	}

	services, err := s.repo.Search(ctx, search)
	if err != nil {
		s.cfg.Log.Error("Failed to search services",
			"query", search.Query,
			"has_location", search.HasLocation(),
			"error", err,
		)
		return nil, apperrors.Internal("Failed to search services", err)
	}
	return services, nil
}

func (s *serviceService) get(ctx context.Context, id string) (*model.Service, error) {
	svc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, serviceserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Service", id)
		}
		if errors.Is(err, serviceserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid service ID format")
		}
		s.cfg.Log.Error("Failed to get service", "service_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve service", err)
	}
	return svc, nil
}
