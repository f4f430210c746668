// Package audit writes the append-only booking audit trail.
// It follows the WHO/WHAT/WHEN pattern: every lifecycle transition becomes one
// AuditLogEntry carrying the actor, the action, and the previous and new status.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/metrics"
	"facility-booking-backend/internal/model"
	"facility-booking-backend/internal/timeutil"
)

// TargetBooking is the target type of every booking entry.
const TargetBooking = "booking"

// Appender persists a single audit entry.
type Appender interface {
	AppendAudit(ctx context.Context, e *model.AuditLogEntry) error
}

// Event describes one committed booking transition.
type Event struct {
	Action         model.AuditAction
	Actor          string
	Role           model.ActorRole
	BookingID      string
	PreviousStatus model.BookingStatus
	CurrentStatus  model.BookingStatus
	Reason         string
	Metadata       map[string]string
}

// Trail records events through an Appender, retrying failed writes.
type Trail struct {
	appender Appender
	clock    timeutil.Clock
	attempts int
	backoff  time.Duration
	logger   zerolog.Logger
}

// NewTrail creates a trail that tries each write three times.
func NewTrail(appender Appender, clock timeutil.Clock) *Trail {
	return &Trail{
		appender: appender,
		clock:    clock,
		attempts: 3,
		backoff:  50 * time.Millisecond,
		logger:   logging.WithComponent("audit").With().Str("log_type", "audit").Logger(),
	}
}

// WithRetry overrides the attempt count and the delay between attempts.
func (t *Trail) WithRetry(attempts int, backoff time.Duration) *Trail {
	if attempts < 1 {
		attempts = 1
	}
	t.attempts = attempts
	t.backoff = backoff
	return t
}

// Entry builds the log entry for ev without writing it.
func (t *Trail) Entry(ev Event) *model.AuditLogEntry {
	meta := make(map[string]string, len(ev.Metadata)+3)
	for k, v := range ev.Metadata {
		meta[k] = v
	}
	if ev.PreviousStatus != "" {
		meta["previousStatus"] = string(ev.PreviousStatus)
	}
	meta["currentStatus"] = string(ev.CurrentStatus)
	if ev.Reason != "" {
		meta["reason"] = ev.Reason
	}

	return &model.AuditLogEntry{
		ID:              uuid.Must(uuid.NewV7()).String(),
		Action:          ev.Action,
		PerformedBy:     ev.Actor,
		PerformedByRole: ev.Role,
		TargetType:      TargetBooking,
		TargetID:        ev.BookingID,
		Details:         Details(ev.PreviousStatus, ev.CurrentStatus, ev.Reason),
		Timestamp:       t.clock.Now().UTC(),
		Metadata:        meta,
	}
}

// Details renders the human-readable summary of a transition.
func Details(from, to model.BookingStatus, reason string) string {
	var s string
	if from == "" {
		s = fmt.Sprintf("booking created as %s", to)
	} else {
		s = fmt.Sprintf("status changed from %s to %s", from, to)
	}
	if reason != "" {
		s += ": " + reason
	}
	return s
}

// Record writes the entry for ev. The transition it describes is already
// committed, so the write ignores cancellation of ctx. When every attempt
// fails the loss is logged at error level and counted, and the error returned.
func (t *Trail) Record(ctx context.Context, ev Event) (*model.AuditLogEntry, error) {
	ctx = context.WithoutCancel(ctx)
	entry := t.Entry(ev)

	var err error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		if err = t.appender.AppendAudit(ctx, entry); err == nil {
			return entry, nil
		}
		t.logger.Warn().Err(err).
			Str("booking_id", ev.BookingID).
			Int("attempt", attempt).
			Msg("audit write failed")
		if attempt < t.attempts && t.backoff > 0 {
			time.Sleep(t.backoff * time.Duration(attempt))
		}
	}

	metrics.AuditWriteFailuresTotal.Inc()
	t.logger.Error().Err(err).
		Str("alarm", "audit_incomplete").
		Str("booking_id", ev.BookingID).
		Str("action", string(ev.Action)).
		Str("actor", ev.Actor).
		Str("previous_status", string(ev.PreviousStatus)).
		Str("current_status", string(ev.CurrentStatus)).
		Msg("audit entry lost after committed transition")
	return nil, fmt.Errorf("audit entry for booking %s not written: %w", ev.BookingID, err)
}
