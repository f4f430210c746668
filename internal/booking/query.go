package booking

import (
	"context"
	"fmt"
	"strings"

	"facility-booking-backend/internal/audit"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/parse"
	"facility-booking-backend/internal/quota"
)

// Get returns one booking with its derived state.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	b, err := s.booking(ctx, id)
	if err != nil {
		return View{}, err
	}
	f, err := s.store.GetFacility(ctx, b.FacilityID)
	if err != nil {
		f = &model.Facility{ID: b.FacilityID}
	}
	return s.view(*b, *f), nil
}

// ListByFacility returns the bookings of a facility on a date, ordered by start
// time, each with its derived state computed at the current instant.
func (s *Service) ListByFacility(ctx context.Context, facilityID, date string) ([]View, error) {
	day, err := s.normalizeDate(date)
	if err != nil {
		return nil, err
	}
	f, err := s.facility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, f.ID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	views := make([]View, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, s.view(b, *f))
	}
	return views, nil
}

// CheckQuota reports what the requester may still book. minutes is the length
// of the intended booking; zero asks whether any time is left that day.
func (s *Service) CheckQuota(ctx context.Context, requesterID, facilityID, date string, minutes int) (quota.Result, error) {
	if strings.TrimSpace(requesterID) == "" {
		return quota.Result{}, invalidInput("requester id is required")
	}
	if minutes < 0 {
		return quota.Result{}, invalidInput("minutes must not be negative")
	}
	day, err := s.normalizeDate(date)
	if err != nil {
		return quota.Result{}, err
	}
	f, err := s.facility(ctx, facilityID)
	if err != nil {
		return quota.Result{}, err
	}
	return s.checkQuota(ctx, requesterID, *f, day, minutes)
}

func (s *Service) checkQuota(ctx context.Context, requesterID string, f model.Facility, date string, minutes int) (quota.Result, error) {
	first, next, err := parse.MonthBounds(date)
	if err != nil {
		return quota.Result{}, invalidInput("%v", err)
	}
	history, err := s.store.ListRequesterBookings(ctx, requesterID, first, next)
	if err != nil {
		return quota.Result{}, fmt.Errorf("failed to load booking history: %w", err)
	}

	exempt := map[string]bool{f.ID: f.IsQuotaExempt}
	for _, b := range history {
		if _, ok := exempt[b.FacilityID]; ok {
			continue
		}
		other, err := s.store.GetFacility(ctx, b.FacilityID)
		exempt[b.FacilityID] = err == nil && other.IsQuotaExempt
	}

	return quota.Check(s.limits(), quota.Request{Facility: f, Date: date, DurationMinutes: minutes}, history,
		func(id string) bool { return exempt[id] })
}

// AuditTrail returns the audit entries of a booking, oldest first.
func (s *Service) AuditTrail(ctx context.Context, id string) ([]model.AuditLogEntry, error) {
	if _, err := s.booking(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, audit.TargetBooking, id)
}

// Facilities lists the facility directory.
func (s *Service) Facilities(ctx context.Context) ([]model.Facility, error) {
	return s.store.ListFacilities(ctx)
}

// SaveFacility creates or replaces a facility. Only owner and staff may do this.
func (s *Service) SaveFacility(ctx context.Context, f model.Facility, actor Actor) (*model.Facility, error) {
	if !actor.Role.IsAdmin() {
		return nil, forbidden("only owner or staff may edit facilities")
	}
	if err := f.Validate(); err != nil {
		return nil, invalidInput("%v", err)
	}
	now := s.clock.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if err := s.store.SaveFacility(ctx, &f); err != nil {
		return nil, fmt.Errorf("failed to save facility %s: %w", f.ID, err)
	}
	s.logger.Info().Str("facility_id", f.ID).Str("actor", actor.ID).Msg("facility saved")
	return &f, nil
}
