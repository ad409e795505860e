package ws

import (
	"context"

	"github.com/shashankxrm/deskdrop/internal/session"
	"go.uber.org/zap"
)

// Presence receives channel lifecycle transitions.
type Presence interface {
	Connected(ctx context.Context, deviceID string, ch session.Channel) error
	Disconnected(ctx context.Context, deviceID string, ch session.Channel)
}

// Dispatcher handles one connection's events in order, so a device's connect,
// messages and disconnect are never processed concurrently.
type Dispatcher struct {
	presence Presence
	devices  DeviceToucher
	log      *zap.Logger
}

func NewDispatcher(presence Presence, devices DeviceToucher, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{presence: presence, devices: devices, log: log}
}

// Run blocks until conn closes.
func (d *Dispatcher) Run(ctx context.Context, deviceID string, conn *Conn) {
	log := d.log.With(zap.String("device_id", deviceID), zap.String("binding_id", conn.ID()))
	mctx := &MessageContext{Ctx: ctx, DeviceID: deviceID, Conn: conn, Devices: d.devices}

	for ev := range conn.Events(deviceID) {
		switch ev.Kind {
		case session.EventConnected:
			log.Info("device connected")
			if err := d.presence.Connected(ctx, deviceID, ev.Channel); err != nil {
				log.Error("register connection", zap.Error(err))
				_ = SendError(ctx, conn, "presence_failed", "Could not register connection", "")
				_ = conn.Close()
			}

		case session.EventMessage:
			msg, err := Deserialize(ev.Data)
			if err != nil {
				log.Debug("invalid message", zap.Error(err))
				_ = SendError(ctx, conn, "invalid_message", "Invalid message format", err.Error())
				continue
			}
			if err := msg.Process(mctx); err != nil {
				log.Warn("process message", zap.String("type", msg.GetType()), zap.Error(err))
			}

		case session.EventClosed:
			log.Info("device disconnected", zap.NamedError("reason", ev.Err))
			d.presence.Disconnected(ctx, deviceID, ev.Channel)
		}
	}
}
