package store

import (
	"errors"

	"facility-booking-backend/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a booking changed since it was read.
	ErrVersionConflict = errors.New("booking was modified concurrently")
)

// DirectoryItem represents a single facility record from the upstream directory API.
type DirectoryItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Capacity      int    `json:"capacity"`
	OpenTime      string `json:"openTime"`
	CloseTime     string `json:"closeTime"`
	SlotMinutes   int    `json:"slotMinutes"`
	IsAutoApprove bool   `json:"isAutoApprove"`
	IsQuotaExempt bool   `json:"isQuotaExempt"`
	Active        *bool  `json:"active"`
}

// Facility converts the directory record; a missing active flag means active.
func (i DirectoryItem) Facility() model.Facility {
	active := true
	if i.Active != nil {
		active = *i.Active
	}
	return model.Facility{
		ID:            i.ID,
		Name:          i.Name,
		Capacity:      i.Capacity,
		OpenTime:      i.OpenTime,
		CloseTime:     i.CloseTime,
		SlotMinutes:   i.SlotMinutes,
		IsAutoApprove: i.IsAutoApprove,
		IsQuotaExempt: i.IsQuotaExempt,
		Active:        active,
	}
}

// SlotGuard inspects the same-facility, same-date bookings read inside the
// writing transaction and vetoes the write by returning an error.
type SlotGuard func(sameDay []model.Booking) error
