package lifecycle

import (
	"fmt"
	"time"

	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/parse"
	"facility-booking-backend/internal/timeutil"
)

// DisplayKind tags the derived state of a booking.
type DisplayKind string

const (
	KindLiteral     DisplayKind = "literal"
	KindLate        DisplayKind = "late"
	KindBeyondGrace DisplayKind = "beyond_grace"
	KindExpired     DisplayKind = "expired"
)

// Policy carries the time parameters of derivation.
type Policy struct {
	Location     *time.Location
	Grace        time.Duration
	EarlyCheckIn time.Duration
}

// DisplayState is the real-time view of a booking computed on read.
type DisplayState struct {
	Kind             DisplayKind         `json:"kind"`
	Status           model.BookingStatus `json:"status"`
	MinutesLate      int                 `json:"minutesLate"`
	MinutesOver      int                 `json:"minutesOver"`
	RequiresDecision bool                `json:"requiresDecision"`
	Actions          []Action            `json:"actions"`
}

// Allows reports whether a is among the actions currently offered.
func (d DisplayState) Allows(a Action) bool {
	for _, x := range d.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// Derive computes the display state of b at the clock's current instant.
// Precedence is expired > beyond grace > late > persisted status. Only active
// bookings are time-derived; terminal bookings always show their literal status.
func Derive(b model.Booking, f model.Facility, clock timeutil.Clock, p Policy) (DisplayState, error) {
	state := DisplayState{Kind: KindLiteral, Status: b.Status, Actions: []Action{}}
	if IsTerminal(b.Status) {
		return state, nil
	}

	start, err := parse.Combine(b.Date, b.StartTime, p.Location)
	if err != nil {
		return state, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	end, err := parse.Combine(b.Date, b.EndTime, p.Location)
	if err != nil {
		return state, fmt.Errorf("booking %s: %w", b.ID, err)
	}

	now := clock.Now()
	switch {
	case timeutil.IsExpired(now, end):
		state.Kind = KindExpired
	case timeutil.IsBeyondGracePeriod(now, start, p.Grace):
		state.Kind = KindBeyondGrace
	case timeutil.IsLate(now, start):
		state.Kind = KindLate
	}
	state.MinutesLate = timeutil.MinutesLate(now, start)
	state.MinutesOver = timeutil.MinutesOver(now, end)

	if b.Status == model.StatusPending {
		state.Actions = pendingActions(state.Kind, f)
		return state, nil
	}

	canMarkLate := b.Status == model.StatusApproved
	switch state.Kind {
	case KindExpired:
		// Expired without a check-in or no-show decision: an admin must choose.
		state.RequiresDecision = true
		state.Actions = []Action{ActionComplete, ActionNoShow}
	case KindBeyondGrace:
		state.Actions = []Action{ActionNoShow, ActionCancel}
		if canMarkLate {
			state.Actions = append(state.Actions, ActionMarkLate)
		}
	case KindLate:
		state.Actions = []Action{ActionCheckIn, ActionCancel}
		if canMarkLate {
			state.Actions = append(state.Actions, ActionMarkLate)
		}
	default:
		state.Actions = []Action{ActionCancel}
		if !now.Before(start.Add(-p.EarlyCheckIn)) {
			state.Actions = append([]Action{ActionCheckIn}, state.Actions...)
		}
		if canMarkLate {
			state.Actions = append(state.Actions, ActionMarkLate)
		}
	}
	return state, nil
}

func pendingActions(kind DisplayKind, f model.Facility) []Action {
	actions := []Action{}
	if kind != KindExpired && f.Active {
		actions = append(actions, ActionApprove)
	}
	return append(actions, ActionReject, ActionCancel)
}

// Permit checks that a is legal for b right now: it must exist in the transition
// table and be offered by the derived state.
func Permit(b model.Booking, f model.Facility, a Action, clock timeutil.Clock, p Policy) (model.BookingStatus, DisplayState, error) {
	to, err := Next(b.Status, a)
	if err != nil {
		return "", DisplayState{}, err
	}
	state, err := Derive(b, f, clock, p)
	if err != nil {
		return "", state, err
	}
	if !state.Allows(a) {
		return "", state, fmt.Errorf("%w: cannot %s a %s booking while it is %s", ErrInvalidTransition, a, b.Status, state.Kind)
	}
	return to, state, nil
}

// ActionFor resolves the action implied by a requested target status. COMPLETED
// means a soft-complete when the booking has expired and a check-in otherwise.
func ActionFor(b model.Booking, to model.BookingStatus, state DisplayState) (Action, error) {
	switch to {
	case model.StatusApproved:
		return ActionApprove, nil
	case model.StatusRejected:
		return ActionReject, nil
	case model.StatusCancelled:
		return ActionCancel, nil
	case model.StatusNoShow:
		return ActionNoShow, nil
	case model.StatusLate:
		return ActionMarkLate, nil
	case model.StatusCompleted:
		if state.Kind == KindExpired {
			return ActionComplete, nil
		}
		return ActionCheckIn, nil
	}
	return "", fmt.Errorf("%w: cannot move a %s booking to %s", ErrInvalidTransition, b.Status, to)
}
