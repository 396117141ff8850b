// Package pa provides public address announcements. The public address and
// evacuation alarm hardware share one amplifier controller, so this sender
// serves both channel types.
package pa

import (
	"context"
	"errors"
	"log/slog"

	"github.com/havenpoint/facility-response/internal/notify"
)

// Controller is the facility's public address amplifier interface.
type Controller interface {
	Announce(ctx context.Context, zonesAll bool, text string) error
}

// Config holds public address sender configuration.
type Config struct {
	Enabled bool
}

// Sender broadcasts announcements over the facility speakers.
type Sender struct {
	config     Config
	controller Controller
	channel    notify.ChannelType
}

// NewSender creates a public address sender for one channel type.
// Returns error if enabled without a controller.
func NewSender(config Config, controller Controller, channel notify.ChannelType) (*Sender, error) {
	if config.Enabled && controller == nil {
		return nil, errors.New("pa sender: controller is required when enabled")
	}

	slog.Info("public address sender configured",
		"enabled", config.Enabled,
		"channel", channel,
	)

	return &Sender{config: config, controller: controller, channel: channel}, nil
}

// Type returns the channel type.
func (s *Sender) Type() notify.ChannelType {
	return s.channel
}

// Send broadcasts the message body over all speaker zones. Recipients are
// ignored; the public address system is inherently facility-wide.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	if !s.config.Enabled {
		slog.Debug("public address sender disabled, skipping announcement")
		return nil
	}

	return s.controller.Announce(ctx, true, msg.Subject+". "+msg.Body)
}
