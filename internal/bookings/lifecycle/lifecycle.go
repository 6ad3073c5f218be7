// Package lifecycle decides which booking status changes are allowed.
//
// Statuses move forward along pending -> confirmed -> completed, or to
// cancelled from any non-terminal status. Completed and cancelled bookings
// never change again. The functions here are pure: they read the booking
// and the actor and return a decision without touching storage.
package lifecycle

import (
	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/model"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidStatus     Reason = "invalid_status"
	ReasonTerminal          Reason = "terminal"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonUnauthorized      Reason = "unauthorized"
)

// Actor is the caller requesting a change.
type Actor struct {
	ID   string
	Role model.Role
}

func ActorFrom(id auth.Identity) Actor {
	return Actor{ID: id.ID, Role: id.Role}
}

type Decision struct {
	Allowed bool
	Reason  Reason
	From    model.BookingStatus
	To      model.BookingStatus
	// requested keeps the raw input for error reporting when To is unset.
	requested string
}

var rank = map[model.BookingStatus]int{
	model.StatusPending:   0,
	model.StatusConfirmed: 1,
	model.StatusCompleted: 2,
}

// CanTransition evaluates, in order: status membership, terminal state,
// provider ownership, booking user cancellation. Anything else is
// unauthorized.
func CanTransition(actor Actor, booking *model.Booking, requested string) Decision {
	d := Decision{From: booking.Status, requested: requested}

	to, ok := model.ParseBookingStatus(requested)
	if !ok {
		d.Reason = ReasonInvalidStatus
		return d
	}
	d.To = to

	if booking.Status.IsTerminal() {
		d.Reason = ReasonTerminal
		return d
	}

	switch {
	case actor.Role == model.RoleProvider && actor.ID == booking.ProviderID.Hex():
		if !forward(booking.Status, to) {
			d.Reason = ReasonInvalidTransition
			return d
		}
	case actor.ID == booking.UserID.Hex():
		if to != model.StatusCancelled {
			d.Reason = ReasonUnauthorized
			return d
		}
	default:
		d.Reason = ReasonUnauthorized
		return d
	}

	d.Allowed = true
	return d
}

func forward(from, to model.BookingStatus) bool {
	if to == model.StatusCancelled {
		return true
	}
	return rank[to] > rank[from]
}

// Err maps a denial to its API error. It returns nil when allowed.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonNone:
		return nil
	case ReasonInvalidStatus:
		return apperrors.InvalidStatus(d.requested)
	case ReasonTerminal:
		return apperrors.TerminalState(string(d.From))
	case ReasonInvalidTransition:
		return apperrors.InvalidTransition(string(d.From), string(d.To))
	default:
		return apperrors.Forbidden("You are not allowed to change this booking to " + d.requested)
	}
}

// CompleteForReview returns the status a booking takes when its user reviews
// it. changed is false when the booking is already completed.
func CompleteForReview(booking *model.Booking) (to model.BookingStatus, changed bool, err error) {
	switch booking.Status {
	case model.StatusCompleted:
		return model.StatusCompleted, false, nil
	case model.StatusCancelled:
		return booking.Status, false, apperrors.InvalidInput("Cannot review a cancelled booking")
	case model.StatusPending, model.StatusConfirmed:
		return model.StatusCompleted, true, nil
	default:
		return booking.Status, false, apperrors.InvalidStatus(string(booking.Status))
	}
}
