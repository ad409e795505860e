package testutil

import (
	"testing"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"gorm.io/gorm"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id, email string) *models.User {
	if id == "" {
		id = "user-1"
	}
	if email == "" {
		email = "test@example.com"
	}

	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed_password_123",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// CreateTestDevice creates a paired receiving device whose credential is
// SeedCredential(deviceID).
func (h *TestHelper) CreateTestDevice(deviceID, userID string) *models.Device {
	if deviceID == "" {
		deviceID = "desk-1"
	}
	if userID == "" {
		userID = "user-1"
	}

	now := time.Now()
	hash := hashToken(SeedCredential(deviceID))
	return &models.Device{
		DeviceID:         deviceID,
		UserID:           userID,
		DeviceName:       "Test Desktop",
		PairingTokenHash: &hash,
		PairedAt:         &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// CreateTestLink creates a pending link with default values
func (h *TestHelper) CreateTestLink(id, userID, url string) *models.Link {
	if id == "" {
		id = "link-1"
	}
	if userID == "" {
		userID = "user-1"
	}
	if url == "" {
		url = "https://example.com/"
	}

	return &models.Link{
		ID:        id,
		URL:       url,
		UserID:    userID,
		DeviceID:  "phone-1",
		Status:    models.LinkPending,
		CreatedAt: time.Now(),
	}
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	h.t.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	h.t.Setenv("PASSWORD_MIN_LENGTH", "10")
	h.t.Setenv("COOKIE_SECURE", "false")
	h.t.Setenv("CSRF_MODE", "token")
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	h.t.Helper()
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	h.t.Helper()
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}

// GetRecordNotFoundError returns the error repositories report for a missing row.
func GetRecordNotFoundError() error {
	return gorm.ErrRecordNotFound
}
