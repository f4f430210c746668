// Package lifecycle holds the booking status state machine and the time-derived display state.
package lifecycle

import (
	"errors"
	"fmt"

	"facility-booking-backend/internal/model"
)

// ErrInvalidTransition is returned for any status change the machine does not allow.
var ErrInvalidTransition = errors.New("invalid transition")

// Action is a lifecycle operation performed on a booking.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionCheckIn  Action = "check_in"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
	ActionMarkLate Action = "mark_late"
)

// transitions is the static table; time-based guards are applied on top by Permit.
var transitions = map[model.BookingStatus]map[Action]model.BookingStatus{
	model.StatusPending: {
		ActionApprove: model.StatusApproved,
		ActionReject:  model.StatusRejected,
		ActionCancel:  model.StatusCancelled,
	},
	model.StatusApproved: {
		ActionCancel:   model.StatusCancelled,
		ActionCheckIn:  model.StatusCompleted,
		ActionComplete: model.StatusCompleted,
		ActionNoShow:   model.StatusNoShow,
		ActionMarkLate: model.StatusLate,
	},
	model.StatusLate: {
		ActionCancel:   model.StatusCancelled,
		ActionCheckIn:  model.StatusCompleted,
		ActionComplete: model.StatusCompleted,
		ActionNoShow:   model.StatusNoShow,
	},
	model.StatusRejected:  {},
	model.StatusCancelled: {},
	model.StatusNoShow:    {},
	model.StatusCompleted: {},
}

// auditActions maps lifecycle actions to their audit record action.
var auditActions = map[Action]model.AuditAction{
	ActionApprove:  model.ActionBookingApprove,
	ActionReject:   model.ActionBookingReject,
	ActionCancel:   model.ActionBookingCancel,
	ActionCheckIn:  model.ActionBookingCheckIn,
	ActionComplete: model.ActionBookingComplete,
	ActionNoShow:   model.ActionBookingNoShow,
	ActionMarkLate: model.ActionBookingLate,
}

// AuditAction returns the audit action recorded for a.
func (a Action) AuditAction() model.AuditAction {
	return auditActions[a]
}

// AdminOnly reports whether only owner/staff may perform a.
func (a Action) AdminOnly() bool {
	return a != ActionCancel
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s model.BookingStatus) bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.BookingStatus) bool {
	next, ok := transitions[s]
	return !ok || len(next) == 0
}

// IsActive reports whether s is PENDING, APPROVED or LATE.
func IsActive(s model.BookingStatus) bool {
	return s == model.StatusPending || s == model.StatusApproved || s == model.StatusLate
}

// Next returns the status reached by applying a to from.
func Next(from model.BookingStatus, a Action) (model.BookingStatus, error) {
	to, ok := transitions[from][a]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s booking", ErrInvalidTransition, a, from)
	}
	return to, nil
}

// CanTransition reports whether some action leads from -> to.
func CanTransition(from, to model.BookingStatus) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
