package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"facility-booking-backend/internal/audit"
	"facility-booking-backend/internal/lifecycle"
	"facility-booking-backend/internal/metrics"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/rules"
	"facility-booking-backend/internal/store"
)

// StatusChange asks for a booking to move to a new status.
type StatusChange struct {
	To        model.BookingStatus   `json:"status"`
	Reason    string                `json:"reason"`
	Initiator model.CancelInitiator `json:"initiator"`
	// Override approves despite rule violations.
	Override bool `json:"override"`
	// Version, when set, must equal the booking's current version.
	Version int `json:"version"`
}

// UpdateStatus applies one lifecycle transition to the booking with the given id.
// Changes to bookings of the same facility and date are serialized, and the
// write is a compare-and-swap on the booking version, so of two racing callers
// one wins and the other sees ErrStaleState or ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, id string, change StatusChange, actor Actor) (View, error) {
	if !lifecycle.IsValidStatus(change.To) {
		return View{}, invalidInput("unknown status %q", change.To)
	}

	peek, err := s.booking(ctx, id)
	if err != nil {
		return View{}, err
	}
	unlock := s.locks.Lock(slotKey(peek.FacilityID, peek.Date))
	defer unlock()

	b, err := s.booking(ctx, id)
	if err != nil {
		return View{}, err
	}
	if change.Version != 0 && change.Version != b.Version {
		return View{}, fmt.Errorf("%w: booking %s is at version %d, not %d", ErrStaleState, b.ID, b.Version, change.Version)
	}

	f, err := s.facility(ctx, b.FacilityID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn().Str("booking_id", b.ID).Str("facility_id", b.FacilityID).Msg("booking references unknown facility")
		f = &model.Facility{ID: b.FacilityID}
	} else if err != nil {
		return View{}, err
	}

	derived, err := lifecycle.Derive(*b, *f, s.clock, s.derive)
	if err != nil {
		return View{}, err
	}
	action, err := lifecycle.ActionFor(*b, change.To, derived)
	if err != nil {
		return View{}, err
	}
	to, state, err := lifecycle.Permit(*b, *f, action, s.clock, s.derive)
	if err != nil {
		return View{}, err
	}

	if err := s.authorize(*b, action, actor); err != nil {
		return View{}, err
	}

	reason := strings.TrimSpace(change.Reason)
	meta := map[string]string{"action": string(action)}
	switch action {
	case lifecycle.ActionReject, lifecycle.ActionCancel:
		if !s.validReason(reason) {
			return View{}, invalidInput("a reason of at least %d characters is required to %s", s.policy.MinReasonLength, action)
		}
	}

	var guard store.SlotGuard
	from := b.Status
	now := s.clock.Now().UTC()
	b.Status = to
	b.UpdatedAt = now

	switch action {
	case lifecycle.ActionApprove:
		others, err := s.store.ListBookings(ctx, b.FacilityID, b.Date)
		if err != nil {
			return View{}, err
		}
		violations := rules.ValidationErrors(*b, *f, others)
		if len(violations) > 0 && !change.Override {
			return View{}, &ValidationError{Violations: violations}
		}
		if len(violations) > 0 {
			meta["override"] = "true"
			meta["violations"] = ruleList(violations)
		}
		candidate := *b
		guard = func(sameDay []model.Booking) error {
			if v := rules.ValidationErrors(candidate, *f, sameDay); len(v) > 0 && !change.Override {
				return &ValidationError{Violations: v}
			}
			return nil
		}
	case lifecycle.ActionReject:
		b.RejectionReason = reason
	case lifecycle.ActionCancel:
		initiator, err := cancelInitiator(change.Initiator, actor)
		if err != nil {
			return View{}, err
		}
		b.CancellationReason = reason
		b.CancelledBy = initiator
		meta["initiator"] = string(initiator)
	case lifecycle.ActionCheckIn:
		b.CheckInTime = &now
		if state.MinutesLate > 0 {
			meta["minutesLate"] = fmt.Sprint(state.MinutesLate)
		}
	case lifecycle.ActionComplete:
		b.CheckOutTime = &now
		meta["softComplete"] = "true"
	case lifecycle.ActionNoShow:
		b.NoShowFlagged = true
	}
	meta["derivedState"] = string(state.Kind)

	expected := b.Version
	if err := s.store.UpdateBooking(ctx, b, expected, guard); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return View{}, fmt.Errorf("%w: %v", ErrStaleState, err)
		}
		return View{}, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(action)).Inc()
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor", actor.ID).
		Str("role", string(actor.Role)).
		Msg("booking status changed")

	s.record(ctx, audit.Event{
		Action:         action.AuditAction(),
		Actor:          actor.ID,
		Role:           actor.Role,
		BookingID:      b.ID,
		PreviousStatus: from,
		CurrentStatus:  to,
		Reason:         reason,
		Metadata:       meta,
	})
	s.notify(ctx, b)
	return s.view(*b, *f), nil
}

func (s *Service) booking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return b, err
}

// authorize applies role gating after the transition itself is known to be legal.
func (s *Service) authorize(b model.Booking, action lifecycle.Action, actor Actor) error {
	if actor.ID == "" {
		return forbidden("actor id is required")
	}
	if actor.Role.IsAdmin() {
		return nil
	}
	if actor.Role != model.RoleTenant {
		return forbidden("unknown role %q", actor.Role)
	}
	if action.AdminOnly() {
		return forbidden("tenants cannot %s bookings", action)
	}
	if b.RequesterID != actor.ID {
		return forbidden("tenants may only cancel their own bookings")
	}
	return nil
}

func cancelInitiator(requested model.CancelInitiator, actor Actor) (model.CancelInitiator, error) {
	switch requested {
	case "":
		if actor.Role == model.RoleTenant {
			return model.InitiatorTenant, nil
		}
		return model.InitiatorAdmin, nil
	case model.InitiatorTenant:
		return requested, nil
	case model.InitiatorAdmin:
		if !actor.Role.IsAdmin() {
			return "", invalidInput("tenants cannot cancel as admin")
		}
		return requested, nil
	}
	return "", invalidInput("unknown cancel initiator %q", requested)
}

func ruleList(violations []rules.Violation) string {
	names := make([]string, 0, len(violations))
	for _, v := range violations {
		names = append(names, string(v.Rule))
	}
	return strings.Join(names, ",")
}
