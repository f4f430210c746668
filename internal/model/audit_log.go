package model

import "time"

// AuditAction is one of the closed set of booking lifecycle actions.
type AuditAction string

const (
	ActionBookingCreate   AuditAction = "BOOKING_CREATE"
	ActionBookingApprove  AuditAction = "BOOKING_APPROVE"
	ActionBookingReject   AuditAction = "BOOKING_REJECT"
	ActionBookingCancel   AuditAction = "BOOKING_CANCEL"
	ActionBookingCheckIn  AuditAction = "BOOKING_CHECK_IN"
	ActionBookingComplete AuditAction = "BOOKING_COMPLETE"
	ActionBookingLate     AuditAction = "BOOKING_MARK_LATE"
	ActionBookingNoShow   AuditAction = "BOOKING_NO_SHOW"
)

// ActorRole identifies the kind of principal performing an action.
type ActorRole string

const (
	RoleOwner  ActorRole = "owner"
	RoleStaff  ActorRole = "staff"
	RoleTenant ActorRole = "tenant"
	RoleSystem ActorRole = "system"
)

// IsAdmin reports whether the role can run administrative booking actions.
func (r ActorRole) IsAdmin() bool {
	return r == RoleOwner || r == RoleStaff || r == RoleSystem
}

// AuditLogEntry is an append-only record of one booking lifecycle event.
// Rows are inserted and never updated or deleted.
type AuditLogEntry struct {
	ID              string            `gorm:"primaryKey;size:64" json:"id"`
	Action          AuditAction       `gorm:"size:32;not null;index" json:"action"`
	PerformedBy     string            `gorm:"size:64;not null" json:"performedBy"`
	PerformedByRole ActorRole         `gorm:"size:16;not null" json:"performedByRole"`
	TargetType      string            `gorm:"size:32;not null" json:"targetType"`
	TargetID        string            `gorm:"size:64;not null;index" json:"targetId"`
	Details         string            `gorm:"size:1024;not null" json:"details"`
	Timestamp       time.Time         `gorm:"column:logged_at;not null;index" json:"timestamp"`
	Metadata        map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
}
