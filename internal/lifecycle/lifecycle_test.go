package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/timeutil"
)

var allStatuses = []model.BookingStatus{
	model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusCancelled,
	model.StatusLate, model.StatusNoShow, model.StatusCompleted,
}

func testPolicy(t *testing.T) Policy {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return Policy{Location: loc, Grace: 15 * time.Minute, EarlyCheckIn: 15 * time.Minute}
}

func testBooking(status model.BookingStatus) model.Booking {
	return model.Booking{ID: "b1", FacilityID: "gym", Date: "2026-10-18", StartTime: "09:00", EndTime: "10:00", Participants: 1, Status: status}
}

var activeGym = model.Facility{ID: "gym", Capacity: 4, OpenTime: "08:00", CloseTime: "20:00", Active: true}

func at(p Policy, hh, mm int) *timeutil.FixedClock {
	return timeutil.NewFixedClock(time.Date(2026, 10, 18, hh, mm, 0, 0, p.Location))
}

func TestNext_TransitionTable(t *testing.T) {
	testCases := []struct {
		from     model.BookingStatus
		action   Action
		expected model.BookingStatus
	}{
		{model.StatusPending, ActionApprove, model.StatusApproved},
		{model.StatusPending, ActionReject, model.StatusRejected},
		{model.StatusPending, ActionCancel, model.StatusCancelled},
		{model.StatusApproved, ActionCancel, model.StatusCancelled},
		{model.StatusApproved, ActionCheckIn, model.StatusCompleted},
		{model.StatusApproved, ActionNoShow, model.StatusNoShow},
		{model.StatusApproved, ActionMarkLate, model.StatusLate},
		{model.StatusLate, ActionCancel, model.StatusCancelled},
		{model.StatusLate, ActionComplete, model.StatusCompleted},
	}
	for _, tc := range testCases {
		got, err := Next(tc.from, tc.action)
		require.NoError(t, err, "%s -> %s", tc.from, tc.action)
		assert.Equal(t, tc.expected, got)
	}
}

func TestNext_IllegalTransitionsFailLoudly(t *testing.T) {
	testCases := []struct {
		from   model.BookingStatus
		action Action
	}{
		{model.StatusRejected, ActionApprove},
		{model.StatusCompleted, ActionCancel},
		{model.StatusCancelled, ActionCancel},
		{model.StatusNoShow, ActionCheckIn},
		{model.StatusPending, ActionNoShow},
		{model.StatusPending, ActionCheckIn},
		{model.StatusLate, ActionMarkLate},
		{model.StatusApproved, ActionApprove},
	}
	for _, tc := range testCases {
		_, err := Next(tc.from, tc.action)
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s -> %s", tc.from, tc.action)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range allStatuses {
		terminal := s == model.StatusRejected || s == model.StatusCancelled || s == model.StatusNoShow || s == model.StatusCompleted
		assert.Equal(t, terminal, IsTerminal(s), string(s))
		assert.Equal(t, !terminal, IsActive(s), string(s))
		assert.True(t, IsValidStatus(s))
	}
	assert.False(t, IsValidStatus("ARCHIVED"))
	assert.False(t, CanTransition(model.StatusCompleted, model.StatusPending))
	assert.True(t, CanTransition(model.StatusPending, model.StatusApproved))
}

func TestDerive_Precedence(t *testing.T) {
	p := testPolicy(t)
	testCases := []struct {
		name        string
		hh, mm      int
		kind        DisplayKind
		minutesLate int
		actions     []Action
		decision    bool
	}{
		{name: "Well before start", hh: 8, mm: 0, kind: KindLiteral, actions: []Action{ActionCancel, ActionMarkLate}},
		{name: "Early check-in window", hh: 8, mm: 45, kind: KindLiteral, actions: []Action{ActionCheckIn, ActionCancel, ActionMarkLate}},
		{name: "Late within grace", hh: 9, mm: 10, kind: KindLate, minutesLate: 10, actions: []Action{ActionCheckIn, ActionCancel, ActionMarkLate}},
		{name: "Beyond grace", hh: 9, mm: 20, kind: KindBeyondGrace, minutesLate: 20, actions: []Action{ActionNoShow, ActionCancel, ActionMarkLate}},
		{name: "Expired", hh: 10, mm: 5, kind: KindExpired, minutesLate: 65, actions: []Action{ActionComplete, ActionNoShow}, decision: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state, err := Derive(testBooking(model.StatusApproved), activeGym, at(p, tc.hh, tc.mm), p)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, state.Kind)
			assert.Equal(t, model.StatusApproved, state.Status)
			assert.Equal(t, tc.minutesLate, state.MinutesLate)
			assert.Equal(t, tc.actions, state.Actions)
			assert.Equal(t, tc.decision, state.RequiresDecision)
		})
	}
}

func TestDerive_TerminalIsLiteral(t *testing.T) {
	p := testPolicy(t)
	state, err := Derive(testBooking(model.StatusCompleted), activeGym, at(p, 23, 0), p)
	require.NoError(t, err)
	assert.Equal(t, KindLiteral, state.Kind)
	assert.Empty(t, state.Actions)
}

func TestDerive_Pending(t *testing.T) {
	p := testPolicy(t)
	state, err := Derive(testBooking(model.StatusPending), activeGym, at(p, 8, 0), p)
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionApprove, ActionReject, ActionCancel}, state.Actions)

	inactive := activeGym
	inactive.Active = false
	state, err = Derive(testBooking(model.StatusPending), inactive, at(p, 8, 0), p)
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionReject, ActionCancel}, state.Actions)

	state, err = Derive(testBooking(model.StatusPending), activeGym, at(p, 11, 0), p)
	require.NoError(t, err)
	assert.Equal(t, KindExpired, state.Kind)
	assert.False(t, state.RequiresDecision)
	assert.NotContains(t, state.Actions, ActionApprove)
}

func TestPermit(t *testing.T) {
	p := testPolicy(t)

	to, _, err := Permit(testBooking(model.StatusApproved), activeGym, ActionCheckIn, at(p, 9, 10), p)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, to)

	_, _, err = Permit(testBooking(model.StatusApproved), activeGym, ActionCheckIn, at(p, 9, 20), p)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "check-in beyond grace must be refused")

	_, _, err = Permit(testBooking(model.StatusApproved), activeGym, ActionNoShow, at(p, 9, 10), p)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "no-show within grace must be refused")

	_, _, err = Permit(testBooking(model.StatusApproved), activeGym, ActionCancel, at(p, 10, 30), p)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "expired bookings need a complete or no-show decision")

	to, _, err = Permit(testBooking(model.StatusLate), activeGym, ActionNoShow, at(p, 10, 30), p)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, to)
}

func TestActionFor(t *testing.T) {
	b := testBooking(model.StatusApproved)
	a, err := ActionFor(b, model.StatusCompleted, DisplayState{Kind: KindExpired})
	require.NoError(t, err)
	assert.Equal(t, ActionComplete, a)

	a, err = ActionFor(b, model.StatusCompleted, DisplayState{Kind: KindLate})
	require.NoError(t, err)
	assert.Equal(t, ActionCheckIn, a)

	_, err = ActionFor(b, model.StatusPending, DisplayState{})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
