package models

import (
	"time"
)

// Device is a registered endpoint. Receiving (desktop) devices carry a pairing
// credential hash; submitting (mobile) devices do not.
//
// IsOnline and ChannelBinding mirror the session table as of the last
// connect/disconnect event and can be stale after an ungraceful drop.
type Device struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeviceID         string  `gorm:"type:varchar(80);uniqueIndex;not null" json:"device_id"`
	UserID           string  `gorm:"type:varchar(64);index;not null" json:"user_id"`
	DeviceName       string  `gorm:"not null;default:'Desktop Device'" json:"device_name"`
	PairingTokenHash *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`

	IsOnline       bool       `gorm:"not null;default:false;index" json:"is_online"`
	ChannelBinding *string    `gorm:"type:varchar(64)" json:"-"`
	LastSeen       *time.Time `json:"last_seen"`
	PairedAt       *time.Time `json:"paired_at"`
}

// Pairable reports whether the device can receive links.
func (d *Device) Pairable() bool {
	return d.PairingTokenHash != nil && *d.PairingTokenHash != ""
}

type DeviceResponse struct {
	DeviceID   string     `json:"deviceId"`
	DeviceName string     `json:"deviceName"`
	IsOnline   bool       `json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (d *Device) ToResponse() DeviceResponse {
	return DeviceResponse{
		DeviceID:   d.DeviceID,
		DeviceName: d.DeviceName,
		IsOnline:   d.IsOnline,
		LastSeen:   d.LastSeen,
		CreatedAt:  d.CreatedAt,
	}
}
