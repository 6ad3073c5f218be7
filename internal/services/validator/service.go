package validator

import (
	"github.com/go-playground/validator/v10"

	apperrors "locafy/pkg/errors"
	"locafy/pkg/model"
	"locafy/pkg/validation"
)

const (
	DefaultSearchRadiusKm = 10
	MaxSearchRadiusKm     = 100
	DefaultSearchLimit    = 20
	MaxSearchLimit        = 100
)

type ServiceValidator struct {
	validate *validator.Validate
}

func NewServiceValidator() *ServiceValidator {
	return &ServiceValidator{validate: validation.New()}
}

func (v *ServiceValidator) ValidateRequest(req *model.ServiceRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *ServiceValidator) ValidateStatusRequest(req *model.ServiceStatusRequest) error {
	return validation.Struct(v.validate, req)
}

// ValidateSearch requires a query or a complete location and fills in the
// default radius and limit.
func (v *ServiceValidator) ValidateSearch(search *model.ServiceSearch) error {
	if (search.Lng == nil) != (search.Lat == nil) {
		return apperrors.InvalidInput("Both lng and lat are required for a location search")
	}
	if search.Query == "" && !search.HasLocation() {
		return apperrors.InvalidInput("Provide a search query or a location")
	}

	if search.HasLocation() {
		var errs validation.ValidationErrors
		if err := v.validate.Var(*search.Lng, "longitude"); err != nil {
			errs = append(errs, validation.ValidationError{Field: "lng", Message: "lng must be a valid longitude"})
		}
		if err := v.validate.Var(*search.Lat, "latitude"); err != nil {
			errs = append(errs, validation.ValidationError{Field: "lat", Message: "lat must be a valid latitude"})
		}
		if len(errs) > 0 {
			return errs
		}
	}

	switch {
	case search.RadiusKm <= 0:
		search.RadiusKm = DefaultSearchRadiusKm
	case search.RadiusKm > MaxSearchRadiusKm:
		search.RadiusKm = MaxSearchRadiusKm
	}
	switch {
	case search.Limit <= 0:
		search.Limit = DefaultSearchLimit
	case search.Limit > MaxSearchLimit:
		search.Limit = MaxSearchLimit
	}
	return nil
}
