package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/store"
)

// ErrMissingFields is returned when a request lacks a user id, token or message.
var ErrMissingFields = errors.New("missing required fields")

// Message is what a notification says about a chat message.
type Message struct {
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// Service registers devices and fans notifications out to them.
type Service struct {
	devices store.DeviceStore
	pusher  Pusher
	log     *zerolog.Logger
}

// NewService builds a notification service.
func NewService(devices store.DeviceStore, pusher Pusher, logger *zerolog.Logger) *Service {
	return &Service{devices: devices, pusher: pusher, log: logger}
}

// RegisterDevice binds token to userID, moving it away from any previous owner.
func (s *Service) RegisterDevice(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return ErrMissingFields
	}
	if _, err := s.devices.UpsertDevice(ctx, userID, token); err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("device registered")
	return nil
}

// SendNotification pushes msg to every device of userID and returns how many pushes succeeded.
// Devices whose token is rejected as invalid are deleted.
func (s *Service) SendNotification(ctx context.Context, userID string, msg Message) (int, error) {
	if userID == "" || (msg.SenderName == "" && msg.Content == "") {
		return 0, ErrMissingFields
	}
	devices, err := s.devices.ListDevices(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list devices: %w", err)
	}

	n := Notification{
		Title: msg.SenderName,
		Body:  msg.Content,
		Data:  map[string]string{"messageFrom": msg.SenderName},
	}
	sent := 0
	for _, d := range devices {
		err := s.pusher.Push(ctx, d.Token, n)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrInvalidToken):
			if delErr := s.devices.DeleteDevice(ctx, d.Token); delErr != nil {
				s.log.Error().Err(delErr).Str("user_id", userID).Msg("delete invalid device")
				continue
			}
			s.log.Info().Str("user_id", userID).Msg("invalid device token removed")
		default:
			s.log.Warn().Err(err).Str("user_id", userID).Msg("push failed")
		}
	}
	return sent, nil
}
