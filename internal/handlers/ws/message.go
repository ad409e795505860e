package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

const (
	MsgLinkReceived = "link-received"
	MsgPing         = "ping"
	MsgPong         = "pong"
	MsgError        = "error"
)

// DeviceToucher records activity for a connected device.
type DeviceToucher interface {
	Touch(ctx context.Context, deviceID string)
}

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	Ctx      context.Context
	DeviceID string
	Conn     *Conn
	Devices  DeviceToucher
}

// Message interface for inbound WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the inbound wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is the outbound wire format.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// LinkReceived is the payload pushed to a device for each delivered link.
type LinkReceived struct {
	URL       string    `json:"url"`
	LinkID    string    `json:"linkId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the device
func SendError(ctx context.Context, conn *Conn, code, message, details string) error {
	return conn.Send(ctx, ErrorResponse{
		Type:    MsgError,
		Error:   message,
		Code:    code,
		Details: details,
	})
}
