package model

import "time"

// PushSubscription holds the information for a browser push subscription of one requester.
type PushSubscription struct {
	Endpoint    string    `gorm:"primaryKey"`
	P256DH      string    `gorm:"column:p256dh;not null"`
	Auth        string    `gorm:"not null"`
	RequesterID string    `gorm:"size:64;not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}
