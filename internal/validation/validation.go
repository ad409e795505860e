package validation

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	MaxURLLength        = 2048
	MaxDeviceNameLength = 64
	DefaultDeviceName   = "Desktop Device"

	DefaultPasswordMinLength = 10
	minPasswordFloor         = 8
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// PasswordMinLength clamps a configured minimum; anything below 8 means
// the default.
func PasswordMinLength(configured int) int {
	if configured < minPasswordFloor {
		return DefaultPasswordMinLength
	}
	return configured
}

func ValidatePassword(password string, minLength int) bool {
	return len(password) >= PasswordMinLength(minLength)
}

// NormalizeURL trims surrounding whitespace.
func NormalizeURL(raw string) string {
	return strings.TrimSpace(raw)
}

// ValidateURL accepts absolute URLs: a scheme plus either a host or an opaque part.
func ValidateURL(raw string) bool {
	raw = NormalizeURL(raw)
	if raw == "" || len(raw) > MaxURLLength || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

// NormalizeDeviceName trims and caps a device name, falling back to the default.
func NormalizeDeviceName(name string) string {
	name = TrimAndLimit(name, MaxDeviceNameLength)
	if name == "" {
		return DefaultDeviceName
	}
	return name
}

// TrimAndLimit trims s and caps it at max runes.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}
