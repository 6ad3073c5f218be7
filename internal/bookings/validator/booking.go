package validator

import (
	"time"

	"github.com/go-playground/validator/v10"

	"locafy/pkg/model"
	"locafy/pkg/validation"
)

type BookingValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewBookingValidator() *BookingValidator {
	return &BookingValidator{
		validate: validation.New(),
		now:      time.Now,
	}
}

func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := validation.Struct(v.validate, req); err != nil {
		return err
	}

	// Bookings may be made for any time today; earlier days are rejected.
	if req.ScheduledDate.Before(startOfDay(v.now())) {
		return validation.ValidationErrors{{
			Field:   "scheduledDate",
			Message: "scheduledDate cannot be in the past",
		}}
	}
	return nil
}

func (v *BookingValidator) ValidateStatusUpdate(req *model.StatusUpdateRequest) error {
	return validation.Struct(v.validate, req)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
