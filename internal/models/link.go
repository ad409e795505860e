package models

import (
	"time"
)

type LinkStatus string

const (
	LinkPending   LinkStatus = "pending"
	LinkDelivered LinkStatus = "delivered"
	LinkFailed    LinkStatus = "failed"
)

// Link is one submitted URL. Status only moves out of pending, never back.
type Link struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id" msgpack:"id"`
	URL         string     `gorm:"type:text;not null" json:"url" msgpack:"url"`
	UserID      string     `gorm:"type:varchar(64);not null;index:idx_links_user_created,priority:1" json:"user_id" msgpack:"user_id"`
	DeviceID    string     `gorm:"type:varchar(80);not null;index" json:"device_id" msgpack:"device_id"`
	Status      LinkStatus `gorm:"type:varchar(16);not null;default:pending" json:"status" msgpack:"status"`
	CreatedAt   time.Time  `gorm:"index:idx_links_user_created,priority:2,sort:desc" json:"created_at" msgpack:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at" msgpack:"delivered_at"`
}

// LinkResponse is the history view of a link.
type LinkResponse struct {
	URL         string     `json:"url" msgpack:"url"`
	Status      LinkStatus `json:"status" msgpack:"status"`
	CreatedAt   time.Time  `json:"createdAt" msgpack:"created_at"`
	DeliveredAt *time.Time `json:"deliveredAt" msgpack:"delivered_at"`
}

func (l *Link) ToResponse() LinkResponse {
	return LinkResponse{
		URL:         l.URL,
		Status:      l.Status,
		CreatedAt:   l.CreatedAt,
		DeliveredAt: l.DeliveredAt,
	}
}
