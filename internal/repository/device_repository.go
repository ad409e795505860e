package repository

import (
	"context"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"gorm.io/gorm"
)

// pairable devices, most recently paired first; ties fall back to insertion order
const pairedOrder = "paired_at DESC NULLS LAST, id DESC"

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *DeviceRepository) FindByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) FindByPairingTokenHash(ctx context.Context, tokenHash string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Where("pairing_token_hash = ?", tokenHash).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) FindOnlineForUser(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND pairing_token_hash IS NOT NULL AND is_online = ? AND channel_binding IS NOT NULL", userID, true).
		Order(pairedOrder).
		Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) FindAnyForUser(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND pairing_token_hash IS NOT NULL", userID).
		Order(pairedOrder).
		Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) ListForUser(ctx context.Context, userID string) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&devices).Error
	return devices, err
}

func (r *DeviceRepository) AssignOwner(ctx context.Context, deviceID, userID, deviceName string, pairedAt time.Time) error {
	updates := map[string]interface{}{
		"user_id":   userID,
		"paired_at": pairedAt,
	}
	if deviceName != "" {
		updates["device_name"] = deviceName
	}
	res := r.db.WithContext(ctx).Model(&models.Device{}).Where("device_id = ?", deviceID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DeviceRepository) UpdatePresence(ctx context.Context, deviceID string, isOnline bool, bindingID *string, lastSeen time.Time) error {
	updates := map[string]interface{}{
		"is_online":       isOnline,
		"channel_binding": bindingID,
		"last_seen":       lastSeen,
	}
	return r.db.WithContext(ctx).Model(&models.Device{}).Where("device_id = ?", deviceID).Updates(updates).Error
}

func (r *DeviceRepository) Touch(ctx context.Context, deviceID string, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Device{}).Where("device_id = ?", deviceID).Update("last_seen", lastSeen).Error
}

func (r *DeviceRepository) ClearPresence(ctx context.Context, deviceID, bindingID string, lastSeen time.Time) (bool, error) {
	updates := map[string]interface{}{
		"is_online":       false,
		"channel_binding": nil,
		"last_seen":       lastSeen,
	}
	res := r.db.WithContext(ctx).Model(&models.Device{}).
		Where("device_id = ? AND channel_binding = ?", deviceID, bindingID).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}
