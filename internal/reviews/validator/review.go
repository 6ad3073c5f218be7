package validator

import (
	"github.com/go-playground/validator/v10"

	"locafy/pkg/model"
	"locafy/pkg/validation"
)

type ReviewValidator struct {
	validate *validator.Validate
}

func NewReviewValidator() *ReviewValidator {
	return &ReviewValidator{validate: validation.New()}
}

func (v *ReviewValidator) Validate(req *model.ReviewRequest) error {
	return validation.Struct(v.validate, req)
}
