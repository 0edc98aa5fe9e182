// Package notify delivers push notifications to users' registered devices.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrInvalidToken is returned by a Pusher when the device token is malformed or no longer registered.
var ErrInvalidToken = errors.New("invalid device token")

// Notification is the platform-neutral content of one push.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher sends a notification to a single device.
type Pusher interface {
	Push(ctx context.Context, token string, n Notification) error
}

// LogPusher records pushes in the log instead of sending them.
type LogPusher struct {
	log *zerolog.Logger
}

// NewLogPusher builds a pusher for development setups without push credentials.
func NewLogPusher(logger *zerolog.Logger) *LogPusher {
	return &LogPusher{log: logger}
}

func (p *LogPusher) Push(_ context.Context, token string, n Notification) error {
	p.log.Info().
		Str("token", token).
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("push notification")
	return nil
}
