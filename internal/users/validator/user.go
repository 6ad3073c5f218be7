package validator

import (
	"github.com/go-playground/validator/v10"

	"locafy/pkg/validation"
)

type UserValidator struct {
	validate *validator.Validate
}

func NewUserValidator() *UserValidator {
	return &UserValidator{validate: validation.New()}
}

// Validate checks any of the user request models.
func (v *UserValidator) Validate(req any) error {
	return validation.Struct(v.validate, req)
}
