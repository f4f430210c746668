package model

import (
	"fmt"
	"time"

	"facility-booking-backend/internal/parse"
)

// Facility is a shared amenity (gym, pool, meeting room) that residents can book.
// The facility directory owns these rows; the booking core only reads them.
type Facility struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Capacity      int       `gorm:"not null" json:"capacity"`
	OpenTime      string    `gorm:"size:5;not null" json:"openTime"`
	CloseTime     string    `gorm:"size:5;not null" json:"closeTime"`
	SlotMinutes   int       `gorm:"not null;default:60" json:"slotMinutes"`
	IsAutoApprove bool      `gorm:"not null;default:false" json:"isAutoApprove"`
	IsQuotaExempt bool      `gorm:"not null;default:false" json:"isQuotaExempt"`
	Active        bool      `gorm:"not null" json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Validate checks the facility invariants: capacity >= 1 and open < close.
func (f Facility) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("facility id is required")
	}
	if f.Capacity < 1 {
		return fmt.Errorf("facility %s: capacity must be at least 1, got %d", f.ID, f.Capacity)
	}
	open, err := parse.ParseTimeOfDay(f.OpenTime)
	if err != nil {
		return fmt.Errorf("facility %s: open time: %w", f.ID, err)
	}
	closing, err := parse.ParseTimeOfDay(f.CloseTime)
	if err != nil {
		return fmt.Errorf("facility %s: close time: %w", f.ID, err)
	}
	if open >= closing {
		return fmt.Errorf("facility %s: open time %s must be before close time %s", f.ID, f.OpenTime, f.CloseTime)
	}
	if f.SlotMinutes < 0 {
		return fmt.Errorf("facility %s: slot minutes must not be negative", f.ID)
	}
	return nil
}
