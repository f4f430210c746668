package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"facility-booking-backend/internal/logging"
	"facility-booking-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	UpsertFacilities(ctx context.Context, items []DirectoryItem) (int, error)
	SaveFacility(ctx context.Context, f *model.Facility) error
	GetFacility(ctx context.Context, id string) (*model.Facility, error)
	ListFacilities(ctx context.Context) ([]model.Facility, error)

	CreateBooking(ctx context.Context, b *model.Booking, guard SlotGuard) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking, expectedVersion int, guard SlotGuard) error
	ListBookings(ctx context.Context, facilityID, date string) ([]model.Booking, error)
	ListRequesterBookings(ctx context.Context, requesterID, fromDate, toDate string) ([]model.Booking, error)

	AppendAudit(ctx context.Context, e *model.AuditLogEntry) error
	ListAudit(ctx context.Context, targetType, targetID string) ([]model.AuditLogEntry, error)

	SaveSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsFor(ctx context.Context, requesterID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// UpsertFacilities validates directory records and batch upserts the valid ones.
// Invalid records are skipped and logged; the number upserted is returned.
func (s *gormStore) UpsertFacilities(ctx context.Context, items []DirectoryItem) (int, error) {
	logger := logging.WithComponent("store")

	facilities := make([]model.Facility, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		f := item.Facility()
		if err := f.Validate(); err != nil {
			logger.Warn().Err(err).Str("facility_id", item.ID).Msg("skipping invalid directory record")
			continue
		}
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		facilities = append(facilities, f)
	}
	if len(facilities) == 0 {
		return 0, nil
	}

	logger.Debug().Int("count", len(facilities)).Msg("batch upserting facilities")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "capacity", "open_time", "close_time", "slot_minutes",
				"is_auto_approve", "is_quota_exempt", "active", "updated_at",
			}),
		}).Create(&facilities).Error
	})
	if err != nil {
		return 0, fmt.Errorf("batch upsert facilities failed: %w", err)
	}
	return len(facilities), nil
}

// SaveFacility inserts or replaces a single facility.
func (s *gormStore) SaveFacility(ctx context.Context, f *model.Facility) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "capacity", "open_time", "close_time", "slot_minutes", "is_auto_approve", "is_quota_exempt", "active", "updated_at"}),
	}).Create(f).Error
}

func (s *gormStore) GetFacility(ctx context.Context, id string) (*model.Facility, error) {
	var f model.Facility
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "facility "+id)
	}
	return &f, nil
}

func (s *gormStore) ListFacilities(ctx context.Context) ([]model.Facility, error) {
	var out []model.Facility
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func sameDay(tx *gorm.DB, facilityID, date string) ([]model.Booking, error) {
	var out []model.Booking
	err := tx.Where("facility_id = ? AND booking_date = ?", facilityID, date).
		Order("start_time ASC").
		Find(&out).Error
	return out, err
}

// lockFacility takes a row lock on the facility so that concurrent guarded writes
// for it, from any process, run one after another. SQLite has no row locks and
// already serializes writers on the database file.
func lockFacility(tx *gorm.DB, facilityID string) error {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	var locked []model.Facility
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", facilityID).
		Limit(1).
		Find(&locked).Error
	if err != nil {
		return fmt.Errorf("failed to lock facility %s: %w", facilityID, err)
	}
	return nil
}

// CreateBooking inserts b after guard accepts the facility's bookings for that date,
// both inside one transaction.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking, guard SlotGuard) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := lockFacility(tx, b.FacilityID); err != nil {
				return err
			}
			existing, err := sameDay(tx, b.FacilityID, b.Date)
			if err != nil {
				return fmt.Errorf("failed to load bookings for %s on %s: %w", b.FacilityID, b.Date, err)
			}
			if err := guard(existing); err != nil {
				return err
			}
		}
		if err := tx.Create(b).Error; err != nil {
			return fmt.Errorf("failed to create booking %s: %w", b.ID, err)
		}
		return nil
	})
}

func (s *gormStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "booking "+id)
	}
	return &b, nil
}

// UpdateBooking writes the mutable fields of b only if the stored version still
// equals expectedVersion, then bumps b.Version.
func (s *gormStore) UpdateBooking(ctx context.Context, b *model.Booking, expectedVersion int, guard SlotGuard) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := lockFacility(tx, b.FacilityID); err != nil {
				return err
			}
			existing, err := sameDay(tx, b.FacilityID, b.Date)
			if err != nil {
				return fmt.Errorf("failed to load bookings for %s on %s: %w", b.FacilityID, b.Date, err)
			}
			if err := guard(existing); err != nil {
				return err
			}
		}

		res := tx.Model(&model.Booking{}).
			Where("id = ? AND version = ?", b.ID, expectedVersion).
			UpdateColumns(map[string]any{
				"status":              b.Status,
				"rejection_reason":    b.RejectionReason,
				"cancellation_reason": b.CancellationReason,
				"cancelled_by":        b.CancelledBy,
				"check_in_time":       b.CheckInTime,
				"check_out_time":      b.CheckOutTime,
				"no_show_flagged":     b.NoShowFlagged,
				"updated_at":          b.UpdatedAt,
				"version":             expectedVersion + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update booking %s: %w", b.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("booking %s at version %d: %w", b.ID, expectedVersion, ErrVersionConflict)
		}
		b.Version = expectedVersion + 1
		return nil
	})
}

func (s *gormStore) ListBookings(ctx context.Context, facilityID, date string) ([]model.Booking, error) {
	return sameDay(s.db.WithContext(ctx), facilityID, date)
}

// ListRequesterBookings returns the requester's bookings with fromDate <= date < toDate.
func (s *gormStore) ListRequesterBookings(ctx context.Context, requesterID, fromDate, toDate string) ([]model.Booking, error) {
	var out []model.Booking
	err := s.db.WithContext(ctx).
		Where("requester_id = ? AND booking_date >= ? AND booking_date < ?", requesterID, fromDate, toDate).
		Order("booking_date ASC, start_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendAudit inserts an audit entry. Entries are never updated or deleted.
func (s *gormStore) AppendAudit(ctx context.Context, e *model.AuditLogEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *gormStore) ListAudit(ctx context.Context, targetType, targetID string) ([]model.AuditLogEntry, error) {
	var out []model.AuditLogEntry
	err := s.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("logged_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSubscription creates or replaces the subscription keyed by endpoint.
func (s *gormStore) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "requester_id"}),
	}).Create(sub).Error
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err, "subscription")
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) SubscriptionsFor(ctx context.Context, requesterID string) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("requester_id = ?", requesterID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
