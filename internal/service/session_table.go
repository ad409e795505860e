package service

import "github.com/shashankxrm/deskdrop/internal/session"

// SessionTable is the slice of the session manager the services depend on.
type SessionTable interface {
	Bind(deviceID string, ch session.Channel) session.Channel
	Unbind(deviceID string) session.Channel
	Release(deviceID, bindingID string) bool
	Get(deviceID string) (session.Channel, bool)
	IsLive(deviceID string) bool
	DeviceIDs() []string
}

var _ SessionTable = (*session.Manager)(nil)
