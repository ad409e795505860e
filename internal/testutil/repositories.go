package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/shashankxrm/deskdrop/internal/repository"
	"gorm.io/gorm"
)

// MockDeviceRepository is an in-memory device registry.
// It hands out copies so callers cannot mutate stored rows.
type MockDeviceRepository struct {
	mu      sync.Mutex
	devices map[string]*models.Device
	nextID  uint

	FindOnlineErr     error
	FindAnyErr        error
	UpdatePresenceErr error
}

func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{
		devices: make(map[string]*models.Device),
		nextID:  1,
	}
}

// Seed stores a receiving device for userID paired at pairedAt.
func (m *MockDeviceRepository) Seed(deviceID, userID string, pairedAt time.Time) *models.Device {
	hash := hashToken(SeedCredential(deviceID))
	d := &models.Device{
		DeviceID:         deviceID,
		UserID:           userID,
		DeviceName:       "Desk " + deviceID,
		PairingTokenHash: &hash,
		PairedAt:         &pairedAt,
	}
	_ = m.Create(context.Background(), d)
	return d
}

// Get returns a copy of the stored row, or a zero Device.
func (m *MockDeviceRepository) Get(deviceID string) models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return models.Device{}
	}
	return *d
}

func (m *MockDeviceRepository) Create(_ context.Context, device *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if device.ID == 0 {
		device.ID = m.nextID
		m.nextID++
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now()
	}
	cp := *device
	m.devices[device.DeviceID] = &cp
	return nil
}

func (m *MockDeviceRepository) FindByDeviceID(_ context.Context, deviceID string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDeviceRepository) FindByPairingTokenHash(_ context.Context, tokenHash string) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.PairingTokenHash != nil && *d.PairingTokenHash == tokenHash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockDeviceRepository) FindOnlineForUser(_ context.Context, userID string) ([]models.Device, error) {
	if m.FindOnlineErr != nil {
		return nil, m.FindOnlineErr
	}
	return m.filter(func(d *models.Device) bool {
		return d.UserID == userID && d.Pairable() && d.IsOnline && d.ChannelBinding != nil
	}), nil
}

func (m *MockDeviceRepository) FindAnyForUser(_ context.Context, userID string) ([]models.Device, error) {
	if m.FindAnyErr != nil {
		return nil, m.FindAnyErr
	}
	return m.filter(func(d *models.Device) bool {
		return d.UserID == userID && d.Pairable()
	}), nil
}

func (m *MockDeviceRepository) ListForUser(_ context.Context, userID string) ([]models.Device, error) {
	return m.filter(func(d *models.Device) bool { return d.UserID == userID }), nil
}

// filter returns matches most recently paired first, like the SQL ordering.
func (m *MockDeviceRepository) filter(match func(*models.Device) bool) []models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Device
	for _, d := range m.devices {
		if match(d) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].PairedAt, out[j].PairedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MockDeviceRepository) AssignOwner(_ context.Context, deviceID, userID, deviceName string, pairedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.UserID = userID
	d.PairedAt = &pairedAt
	if deviceName != "" {
		d.DeviceName = deviceName
	}
	return nil
}

func (m *MockDeviceRepository) UpdatePresence(_ context.Context, deviceID string, isOnline bool, bindingID *string, lastSeen time.Time) error {
	if m.UpdatePresenceErr != nil {
		return m.UpdatePresenceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil
	}
	d.IsOnline = isOnline
	d.ChannelBinding = bindingID
	d.LastSeen = &lastSeen
	return nil
}

func (m *MockDeviceRepository) Touch(_ context.Context, deviceID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		d.LastSeen = &lastSeen
	}
	return nil
}

func (m *MockDeviceRepository) ClearPresence(_ context.Context, deviceID, bindingID string, lastSeen time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok || d.ChannelBinding == nil || *d.ChannelBinding != bindingID {
		return false, nil
	}
	d.IsOnline = false
	d.ChannelBinding = nil
	d.LastSeen = &lastSeen
	return true, nil
}

// MockLinkRepository is an in-memory link store.
type MockLinkRepository struct {
	mu    sync.Mutex
	links map[string]*models.Link

	CreateErr        error
	FindErr          error
	MarkDeliveredErr error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{links: make(map[string]*models.Link)}
}

// Status returns the stored status of id, or "" if unknown.
func (m *MockLinkRepository) Status(id string) models.LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[id]; ok {
		return l.Status
	}
	return ""
}

// Count returns how many links are stored.
func (m *MockLinkRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

func (m *MockLinkRepository) Create(_ context.Context, link *models.Link) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *link
	m.links[link.ID] = &cp
	return nil
}

func (m *MockLinkRepository) FindByID(_ context.Context, id string) (*models.Link, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *MockLinkRepository) MarkDelivered(_ context.Context, id string, at time.Time) (bool, error) {
	if m.MarkDeliveredErr != nil {
		return false, m.MarkDeliveredErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok || l.Status != models.LinkPending {
		return false, nil
	}
	l.Status = models.LinkDelivered
	l.DeliveredAt = &at
	return true, nil
}

func (m *MockLinkRepository) MarkFailed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok || l.Status != models.LinkPending {
		return false, nil
	}
	l.Status = models.LinkFailed
	return true, nil
}

func (m *MockLinkRepository) ListForUser(_ context.Context, userID string, limit int) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Link
	for _, l := range m.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockUserRepository is a mock implementation for testing
type MockUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*models.User),
	}
}

func (m *MockUserRepository) Create(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.ID]; exists {
		return errors.New("duplicate key")
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) FindByEmail(email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindByID(id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// MockRefreshTokenRepository is a mock implementation for testing
type MockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewMockRefreshTokenRepository() *MockRefreshTokenRepository {
	return &MockRefreshTokenRepository{
		tokens: make(map[string]*models.RefreshToken),
	}
}

// Has reports whether a token with this hash is stored.
func (m *MockRefreshTokenRepository) Has(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[hash]
	return ok
}

func (m *MockRefreshTokenRepository) Create(token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *MockRefreshTokenRepository) FindValidByHash(hash string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[hash]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, errors.New("token expired")
	}
	return token, nil
}

func (m *MockRefreshTokenRepository) RevokeByHash(hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[hash]
	delete(m.tokens, hash)
	return ok, nil
}

var (
	_ repository.DeviceRepositoryInterface       = (*MockDeviceRepository)(nil)
	_ repository.LinkRepositoryInterface         = (*MockLinkRepository)(nil)
	_ repository.UserRepositoryInterface         = (*MockUserRepository)(nil)
	_ repository.RefreshTokenRepositoryInterface = (*MockRefreshTokenRepository)(nil)
)

// SeedCredential is the raw pairing credential of a device created by Seed.
func SeedCredential(deviceID string) string {
	return "pair-" + deviceID
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
