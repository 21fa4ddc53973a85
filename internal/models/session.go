package models

import "time"

// MaxSessionsPerUser caps the number of device sessions a user may hold.
const MaxSessionsPerUser = 3

// Session records a device a user logged in from.
type Session struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	DeviceName string    `gorm:"size:200;not null;index" json:"device_name"`
	IPAddress  string    `gorm:"size:200" json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
