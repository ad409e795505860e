package repository

import (
	"context"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	FindByEmail(email string) (*models.User, error)
	FindByID(id string) (*models.User, error)
}

// RefreshTokenRepositoryInterface defines the contract for refresh token repository operations
type RefreshTokenRepositoryInterface interface {
	Create(token *models.RefreshToken) error
	FindValidByHash(tokenHash string) (*models.RefreshToken, error)
	RevokeByHash(tokenHash string) (bool, error)
}

// DeviceRepositoryInterface is the device registry. Lookups that feed delivery
// decisions only return pairable devices, most recently paired first.
type DeviceRepositoryInterface interface {
	Create(ctx context.Context, device *models.Device) error
	FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	FindByPairingTokenHash(ctx context.Context, tokenHash string) (*models.Device, error)
	FindOnlineForUser(ctx context.Context, userID string) ([]models.Device, error)
	FindAnyForUser(ctx context.Context, userID string) ([]models.Device, error)
	ListForUser(ctx context.Context, userID string) ([]models.Device, error)
	AssignOwner(ctx context.Context, deviceID, userID, deviceName string, pairedAt time.Time) error
	// UpdatePresence sets the online flag and binding unconditionally.
	UpdatePresence(ctx context.Context, deviceID string, isOnline bool, bindingID *string, lastSeen time.Time) error
	Touch(ctx context.Context, deviceID string, lastSeen time.Time) error
	// ClearPresence marks the device offline only while bindingID is still the
	// recorded binding. It reports whether the row changed.
	ClearPresence(ctx context.Context, deviceID, bindingID string, lastSeen time.Time) (bool, error)
}

// LinkRepositoryInterface stores submitted links. Status changes are
// conditional on the link still being pending.
type LinkRepositoryInterface interface {
	Create(ctx context.Context, link *models.Link) error
	FindByID(ctx context.Context, id string) (*models.Link, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]models.Link, error)
}
