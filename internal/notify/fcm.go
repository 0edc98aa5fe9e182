package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MessageSender is the subset of *messaging.Client used by FCMPusher.
type MessageSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// FCMPusher sends notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client MessageSender
}

// NewFCMPusher initialises a Firebase app. With an empty credentialsFile the
// application default credentials are used.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging: %w", err)
	}
	return NewFCMPusherWithClient(client), nil
}

// NewFCMPusherWithClient wraps an existing messaging client.
func NewFCMPusherWithClient(client MessageSender) *FCMPusher {
	return &FCMPusher{client: client}
}

func (p *FCMPusher) Push(ctx context.Context, token string, n Notification) error {
	if _, err := p.client.Send(ctx, fcmMessage(token, n)); err != nil {
		if messaging.IsUnregistered(err) || errorutils.IsInvalidArgument(err) {
			return fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func fcmMessage(token string, n Notification) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					MutableContent: true,
					Sound:          "default",
				},
			},
		},
	}
}
