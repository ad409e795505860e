package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/apperr"
	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"github.com/shashankxrm/deskdrop/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PairingToken is returned once, when a receiving device is registered.
type PairingToken struct {
	DeviceID     string `json:"deviceId"`
	PairingToken string `json:"pairingToken"`
}

type DeviceService struct {
	devices    repository.DeviceRepositoryInterface
	sessions   SessionTable
	reconciler *Reconciler
	log        *zap.Logger
	now        func() time.Time
}

func NewDeviceService(
	devices repository.DeviceRepositoryInterface,
	sessions SessionTable,
	reconciler *Reconciler,
	log *zap.Logger,
) *DeviceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceService{
		devices:    devices,
		sessions:   sessions,
		reconciler: reconciler,
		log:        log,
		now:        time.Now,
	}
}

// GeneratePairingToken registers a new receiving device for userID.
func (s *DeviceService) GeneratePairingToken(ctx context.Context, userID, deviceName string) (*PairingToken, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}

	raw, err := randomHex(32)
	if err != nil {
		return nil, err
	}
	hash := HashToken(raw)
	now := s.now()

	device := &models.Device{
		DeviceID:         "device-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:           userID,
		DeviceName:       validation.NormalizeDeviceName(deviceName),
		PairingTokenHash: &hash,
		PairedAt:         &now,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, apperr.Storage("create device", err)
	}

	s.log.Info("pairing token issued", zap.String("user_id", userID), zap.String("device_id", device.DeviceID))
	return &PairingToken{DeviceID: device.DeviceID, PairingToken: raw}, nil
}

// Pair (re)assigns the device holding pairingToken to userID. If that device
// is already connected, anything queued for its new owner is flushed.
func (s *DeviceService) Pair(ctx context.Context, userID, pairingToken, deviceName string) (*models.DeviceResponse, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	device, err := s.FindByPairingCredential(ctx, pairingToken)
	if err != nil {
		return nil, err
	}

	name := ""
	if strings.TrimSpace(deviceName) != "" {
		name = validation.NormalizeDeviceName(deviceName)
	}
	now := s.now()
	if err := s.devices.AssignOwner(ctx, device.DeviceID, userID, name, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("device not found")
		}
		return nil, apperr.Storage("assign device owner", err)
	}

	device.UserID = userID
	device.PairedAt = &now
	if name != "" {
		device.DeviceName = name
	}
	s.log.Info("device paired", zap.String("user_id", userID), zap.String("device_id", device.DeviceID))

	if s.reconciler != nil && s.sessions.IsLive(device.DeviceID) {
		if _, err := s.reconciler.OnDeviceConnected(ctx, device.DeviceID); err != nil {
			s.log.Warn("reconcile after pairing", zap.String("device_id", device.DeviceID), zap.Error(err))
		}
	}

	resp := device.ToResponse()
	return &resp, nil
}

// FindByPairingCredential resolves a raw pairing credential to its device.
func (s *DeviceService) FindByPairingCredential(ctx context.Context, pairingToken string) (*models.Device, error) {
	pairingToken = strings.TrimSpace(pairingToken)
	if pairingToken == "" {
		return nil, apperr.Unauthorized("pairing token is required")
	}
	device, err := s.devices.FindByPairingTokenHash(ctx, HashToken(pairingToken))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("invalid pairing token")
		}
		return nil, apperr.Storage("find device by pairing token", err)
	}
	return device, nil
}

// ListDevices returns the user's devices with liveness taken from the session
// table rather than the stored flag.
func (s *DeviceService) ListDevices(ctx context.Context, userID string) ([]models.DeviceResponse, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	devices, err := s.devices.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("list devices", err)
	}
	out := make([]models.DeviceResponse, len(devices))
	for i := range devices {
		out[i] = devices[i].ToResponse()
		out[i].IsOnline = s.sessions.IsLive(devices[i].DeviceID)
	}
	return out, nil
}

// Touch records activity from a connected device.
func (s *DeviceService) Touch(ctx context.Context, deviceID string) {
	if err := s.devices.Touch(ctx, deviceID, s.now()); err != nil {
		s.log.Debug("touch device", zap.String("device_id", deviceID), zap.Error(err))
	}
}
