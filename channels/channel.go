// Package channels provides bidirectional messaging connectors so the
// navigation assistant can talk to users over chat platforms: generic
// webhooks for any HTTP-capable frontend, plus platform connectors.
//
// Messages arrive unprompted (inbound) and replies are pushed back
// (outbound). The Dispatcher owns the connector lifecycle and routes
// every inbound message through a single InboundHandler:
//
//	d := channels.NewDispatcher(handler, channels.WithMaxConcurrent(1))
//	d.RegisterPlatform("webhook", channels.WebhookFactory())
//	d.Apply(cfg.Channels)
//
// The assistant's handler drives one shared browser, so main limits
// concurrency to 1 and messages are processed strictly in order.
package channels

import (
	"context"
	"encoding/json"
	"time"
)

// Direction indicates whether a message is inbound (received from a user)
// or outbound (sent by the system).
type Direction int

const (
	Inbound  Direction = iota // Message received from a platform user.
	Outbound                  // Message sent to a platform user.
)

// String returns "inbound" or "outbound".
func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Message is a platform-normalized inbound or outbound message.
// All platform-specific details are stripped; platform-specific metadata
// can be carried in the Metadata map. Outbound text has no length cap
// here; connectors split or truncate per their platform's limits.
type Message struct {
	ID          string            `json:"id"`
	ChannelName string            `json:"channel"`            // e.g. "web_hook_main", "discord_support"
	Platform    string            `json:"platform"`           // "webhook", "discord"
	Direction   Direction         `json:"direction"`          // Inbound or Outbound
	SenderID    string            `json:"sender_id"`          // platform-specific user ID
	RecipientID string            `json:"recipient_id"`       // platform-specific recipient ID
	Text        string            `json:"text"`               // message body
	ReplyTo     string            `json:"reply_to,omitempty"` // ID of message being replied to
	Metadata    map[string]string `json:"metadata,omitempty"` // platform-specific extras
	Timestamp   time.Time         `json:"timestamp"`
}

// ChannelStatus describes the current state of a channel connection.
type ChannelStatus struct {
	Connected   bool      `json:"connected"`
	Platform    string    `json:"platform"`
	AuthState   string    `json:"auth_state"` // "listening", "token_valid", etc.
	LastMessage time.Time `json:"last_message"`
	Error       string    `json:"error,omitempty"`
}

// Channel is a bidirectional connection to a messaging platform.
// Listen returns a channel that emits inbound messages; the channel is closed
// when the context is cancelled or the connection is lost.
// Send pushes an outbound message to the platform.
type Channel interface {
	// Listen returns a read-only channel of inbound messages.
	// The returned channel is closed when ctx is cancelled or Close is called.
	Listen(ctx context.Context) <-chan Message

	// Send pushes an outbound message to the platform.
	Send(ctx context.Context, msg Message) error

	// Status returns the current connection status.
	Status() ChannelStatus

	// Close shuts down the connection and releases resources.
	// After Close, the channel returned by Listen will be closed.
	Close() error
}

// ChannelFactory creates a Channel from a name and per-channel JSON config.
type ChannelFactory func(name string, config json.RawMessage) (Channel, error)

// InboundHandler processes an inbound message and returns zero or more
// outbound response messages. This is where the assistant runs: page
// navigation, description, classification.
//
// The handler may return nil to indicate no response should be sent.
type InboundHandler func(ctx context.Context, msg Message) ([]Message, error)
