// Package booking runs the facility booking lifecycle: request validation,
// quota checks, status transitions, and the audit trail that records them.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"facility-booking-backend/config"
	"facility-booking-backend/internal/audit"
	"facility-booking-backend/internal/lifecycle"
	"facility-booking-backend/internal/lock"
	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/metrics"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/parse"
	"facility-booking-backend/internal/quota"
	"facility-booking-backend/internal/rules"
	"facility-booking-backend/internal/store"
	"facility-booking-backend/internal/timeutil"
)

// Actor is the principal performing an operation.
type Actor struct {
	ID   string
	Role model.ActorRole
}

// Notice is handed to the notifier after a transition commits.
type Notice struct {
	BookingID   string              `json:"bookingId"`
	Status      model.BookingStatus `json:"status"`
	RequesterID string              `json:"requesterId"`
	FacilityID  string              `json:"facilityId"`
	Date        string              `json:"date"`
	StartTime   string              `json:"startTime"`
	EndTime     string              `json:"endTime"`
}

// Notifier delivers notices. Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// CreateRequest is a candidate booking.
type CreateRequest struct {
	FacilityID   string `json:"facilityId"`
	RequesterID  string `json:"requesterId"`
	Unit         string `json:"unit"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Participants int    `json:"participants"`
	Reason       string `json:"reason"`
}

// View is a booking together with its state derived at read time.
type View struct {
	model.Booking
	Display lifecycle.DisplayState `json:"display"`
}

// Service implements the booking operations on top of a Store.
type Service struct {
	store    store.Store
	trail    *audit.Trail
	notifier Notifier
	clock    timeutil.Clock
	policy   config.BookingPolicy
	derive   lifecycle.Policy
	locks    *lock.Keyed
	logger   zerolog.Logger
}

// NewService wires a booking service. notifier may be nil.
func NewService(s store.Store, trail *audit.Trail, notifier Notifier, policy config.BookingPolicy, clock timeutil.Clock) *Service {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Service{
		store:    s,
		trail:    trail,
		notifier: notifier,
		clock:    clock,
		policy:   policy,
		derive: lifecycle.Policy{
			Location:     policy.Location,
			Grace:        policy.Grace(),
			EarlyCheckIn: policy.EarlyCheckIn(),
		},
		locks:  lock.NewKeyed(),
		logger: logging.WithComponent("booking"),
	}
}

func slotKey(facilityID, date string) string {
	return "slot|" + facilityID + "|" + date
}

func requesterKey(requesterID string) string {
	return "requester|" + requesterID
}

func (s *Service) limits() quota.Limits {
	return quota.Limits{
		MaxMonthlySessions: s.policy.MaxMonthlySessions,
		DailyMaxMinutes:    s.policy.DailyMaxMinutes,
	}
}

func (s *Service) facility(ctx context.Context, id string) (*model.Facility, error) {
	f, err := s.store.GetFacility(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("facility %s: %w", id, ErrNotFound)
	}
	return f, err
}

func (s *Service) normalizeDate(raw string) (string, error) {
	d, err := parse.ParseDate(raw, s.policy.Location)
	if err != nil {
		return "", invalidInput("%v", err)
	}
	return parse.FormatDate(d), nil
}

func (s *Service) validReason(reason string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(reason)) >= s.policy.MinReasonLength
}

// Create validates a candidate booking and persists it as PENDING, or as
// APPROVED when the facility auto-approves. Rule violations are reported
// before quota problems.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor Actor) (View, error) {
	b, err := s.candidate(req, actor)
	if err != nil {
		s.refused(err)
		return View{}, err
	}

	f, err := s.facility(ctx, b.FacilityID)
	if err != nil {
		s.refused(err)
		return View{}, err
	}

	unlockSlot := s.locks.Lock(slotKey(b.FacilityID, b.Date))
	defer unlockSlot()
	unlockRequester := s.locks.Lock(requesterKey(b.RequesterID))
	defer unlockRequester()

	minutes := quota.DurationMinutes(b.StartTime, b.EndTime)
	q, err := s.checkQuota(ctx, b.RequesterID, *f, b.Date, minutes)
	if err != nil {
		s.refused(err)
		return View{}, err
	}

	if f.IsAutoApprove {
		b.Status = model.StatusApproved
		b.IsAutoApproved = true
	}

	err = s.store.CreateBooking(ctx, b, func(sameDay []model.Booking) error {
		if violations := rules.ValidationErrors(*b, *f, sameDay); len(violations) > 0 {
			return &ValidationError{Violations: violations}
		}
		if !q.Allowed {
			return &QuotaError{Reason: q.Reason, RemainingMonth: q.RemainingMonth, DailyMinutes: q.DailyMinutes, DailyCount: q.DailyCount}
		}
		// The daily cap is checked again under the facility lock, since another
		// instance may have booked for this requester after the check above.
		var mine []model.Booking
		for _, other := range sameDay {
			if other.RequesterID == b.RequesterID {
				mine = append(mine, other)
			}
		}
		daily, err := quota.Check(s.limits(), quota.Request{Facility: *f, Date: b.Date, DurationMinutes: minutes}, mine, func(string) bool { return true })
		if err != nil {
			return err
		}
		if !daily.Allowed {
			return &QuotaError{Reason: daily.Reason, RemainingMonth: q.RemainingMonth, DailyMinutes: daily.DailyMinutes, DailyCount: daily.DailyCount}
		}
		return nil
	})
	if err != nil {
		s.refused(err)
		return View{}, err
	}

	metrics.BookingsCreatedTotal.WithLabelValues(string(b.Status)).Inc()
	s.logger.Info().
		Str("booking_id", b.ID).
		Str("facility_id", b.FacilityID).
		Str("requester_id", b.RequesterID).
		Str("date", b.Date).
		Str("status", string(b.Status)).
		Msg("booking created")

	meta := map[string]string{"autoApproved": fmt.Sprint(b.IsAutoApproved)}
	s.record(ctx, audit.Event{
		Action:        model.ActionBookingCreate,
		Actor:         actor.ID,
		Role:          actor.Role,
		BookingID:     b.ID,
		CurrentStatus: b.Status,
		Reason:        b.Reason,
		Metadata:      meta,
	})
	s.notify(ctx, b)
	return s.view(*b, *f), nil
}

// candidate turns a request into an unsaved PENDING booking.
func (s *Service) candidate(req CreateRequest, actor Actor) (*model.Booking, error) {
	requester := strings.TrimSpace(req.RequesterID)
	if requester == "" && actor.Role == model.RoleTenant {
		requester = actor.ID
	}
	if actor.Role == model.RoleTenant && requester != actor.ID {
		return nil, forbidden("tenants may only book for themselves")
	}
	if strings.TrimSpace(req.FacilityID) == "" {
		return nil, invalidInput("facility id is required")
	}
	if requester == "" {
		return nil, invalidInput("requester id is required")
	}

	date, err := s.normalizeDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parse.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, invalidInput("start time: %v", err)
	}
	end, err := parse.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, invalidInput("end time: %v", err)
	}
	if start >= end {
		return nil, invalidInput("start time %s must be before end time %s", start, end)
	}
	if req.Participants < 1 {
		return nil, invalidInput("participants must be at least 1")
	}

	endsAt, err := parse.Combine(date, end.String(), s.policy.Location)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	now := s.clock.Now()
	if timeutil.IsExpired(now, endsAt) {
		return nil, invalidInput("booking on %s ending %s is already over", date, end)
	}

	return &model.Booking{
		ID:           uuid.NewString(),
		FacilityID:   strings.TrimSpace(req.FacilityID),
		RequesterID:  requester,
		Unit:         strings.TrimSpace(req.Unit),
		Date:         date,
		StartTime:    start.String(),
		EndTime:      end.String(),
		Participants: req.Participants,
		Status:       model.StatusPending,
		Reason:       strings.TrimSpace(req.Reason),
		Version:      1,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

func (s *Service) refused(err error) {
	kind := Kind(err)
	metrics.BookingsRejectedTotal.WithLabelValues(kind).Inc()
	ev := s.logger.Info()
	if kind == "internal" {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("kind", kind).Msg("booking request refused")
}

// record writes an audit entry for a committed change. A failure is already
// logged and counted by the trail; the change itself stands.
func (s *Service) record(ctx context.Context, ev audit.Event) {
	if s.trail == nil {
		return
	}
	_, _ = s.trail.Record(ctx, ev)
}

func (s *Service) notify(ctx context.Context, b *model.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, Notice{
		BookingID:   b.ID,
		Status:      b.Status,
		RequesterID: b.RequesterID,
		FacilityID:  b.FacilityID,
		Date:        b.Date,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
	})
}

func (s *Service) view(b model.Booking, f model.Facility) View {
	state, err := lifecycle.Derive(b, f, s.clock, s.derive)
	if err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("cannot derive booking state")
	}
	return View{Booking: b, Display: state}
}
