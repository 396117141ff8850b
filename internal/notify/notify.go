// Package notify provides multi-channel emergency notification fan-out.
package notify

import (
	"context"

	"github.com/havenpoint/facility-response/internal/domain"
)

// ChannelType identifies a delivery channel.
type ChannelType string

// Delivery channels.
const (
	ChannelPush          ChannelType = "push"
	ChannelSMS           ChannelType = "sms"
	ChannelEmail         ChannelType = "email"
	ChannelPublicAddress ChannelType = "public_address"
	ChannelAlarm         ChannelType = "evacuation_alarm"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Priority   domain.Priority
	Subject    string
	Body       string
	Recipients []string
}

// Sender delivers messages over one channel type.
type Sender interface {
	Type() ChannelType
	Send(ctx context.Context, msg Message) error
}
