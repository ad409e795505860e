package ws

// MessagePing is an application-level keepalive from the device
type MessagePing struct {
}

func (msg *MessagePing) GetType() string {
	return MsgPing
}

func (msg *MessagePing) Process(ctx *MessageContext) error {
	if ctx.Devices != nil {
		ctx.Devices.Touch(ctx.Ctx, ctx.DeviceID)
	}
	return ctx.Conn.Send(ctx.Ctx, Envelope{Type: MsgPong})
}

// MessagePong answers a ping we never sent as a text frame; nothing to do.
type MessagePong struct {
}

func (msg *MessagePong) GetType() string {
	return MsgPong
}

func (msg *MessagePong) Process(ctx *MessageContext) error {
	return nil
}
