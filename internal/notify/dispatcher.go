package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Dispatcher fans a message out to a set of channels. Per-channel failure is
// isolated: one failing sender never blocks delivery on the others.
type Dispatcher struct {
	senders map[ChannelType]Sender
}

// NewDispatcher creates a dispatcher over the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[ChannelType]Sender, len(senders))
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{senders: senderMap}
}

// ChannelError records a delivery failure on one channel.
type ChannelError struct {
	Channel ChannelType
	Err     error
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e ChannelError) Unwrap() error { return e.Err }

// Dispatch sends the message on every requested channel and returns which
// channels delivered and which failed. It never returns a hard error.
func (d *Dispatcher) Dispatch(ctx context.Context, channels []ChannelType, msg Message) (delivered []ChannelType, failed []ChannelError) {
	for _, ct := range channels {
		sender, ok := d.senders[ct]
		if !ok {
			slog.Warn("no sender for channel type", "type", ct)
			failed = append(failed, ChannelError{Channel: ct, Err: fmt.Errorf("no sender registered")})
			continue
		}

		if err := sender.Send(ctx, msg); err != nil {
			slog.Error("failed to send notification",
				"channel_type", ct,
				"recipients", len(msg.Recipients),
				"error", err,
			)
			failed = append(failed, ChannelError{Channel: ct, Err: err})
			continue
		}
		delivered = append(delivered, ct)
	}
	return delivered, failed
}

// Channels lists the channel types with a registered sender.
func (d *Dispatcher) Channels() []ChannelType {
	out := make([]ChannelType, 0, len(d.senders))
	for ct := range d.senders {
		out = append(out, ct)
	}
	return out
}
