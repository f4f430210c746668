package model

import "time"

// BookingStatus is the persisted lifecycle status of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusApproved  BookingStatus = "APPROVED"
	StatusRejected  BookingStatus = "REJECTED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusLate      BookingStatus = "LATE"
	StatusNoShow    BookingStatus = "NO_SHOW"
	StatusCompleted BookingStatus = "COMPLETED"
)

// CancelInitiator records who asked for a cancellation.
type CancelInitiator string

const (
	InitiatorTenant CancelInitiator = "tenant"
	InitiatorAdmin  CancelInitiator = "admin"
)

// Booking is a reservation of a facility for a time range on one calendar day.
// Date is YYYY-MM-DD and StartTime/EndTime are HH:mm in the booking time zone.
type Booking struct {
	ID                 string          `gorm:"primaryKey;size:64" json:"id"`
	FacilityID         string          `gorm:"size:64;not null;index:idx_bookings_facility_date" json:"facilityId"`
	RequesterID        string          `gorm:"size:64;not null;index:idx_bookings_requester_date" json:"requesterId"`
	Unit               string          `gorm:"size:32" json:"unit"`
	Date               string          `gorm:"column:booking_date;size:10;not null;index:idx_bookings_facility_date;index:idx_bookings_requester_date" json:"date"`
	StartTime          string          `gorm:"size:5;not null" json:"startTime"`
	EndTime            string          `gorm:"size:5;not null" json:"endTime"`
	Participants       int             `gorm:"not null" json:"participants"`
	Status             BookingStatus   `gorm:"size:16;not null;index" json:"status"`
	Reason             string          `gorm:"size:512" json:"reason,omitempty"`
	RejectionReason    string          `gorm:"size:512" json:"rejectionReason,omitempty"`
	CancellationReason string          `gorm:"size:512" json:"cancellationReason,omitempty"`
	CancelledBy        CancelInitiator `gorm:"size:16" json:"cancelledBy,omitempty"`
	CheckInTime        *time.Time      `json:"checkInTime,omitempty"`
	CheckOutTime       *time.Time      `json:"checkOutTime,omitempty"`
	IsAutoApproved     bool            `gorm:"not null;default:false" json:"isAutoApproved"`
	NoShowFlagged      bool            `gorm:"not null;default:false" json:"noShowFlagged"`
	Version            int             `gorm:"not null;default:1" json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}
