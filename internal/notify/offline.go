package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/roomrelay/internal/store"
)

const offlineTimeout = 10 * time.Second

// OfflineNotifier pushes each room message to the participants who had no live session when it was broadcast.
type OfflineNotifier struct {
	rooms   store.RoomStore
	service *Service
	log     *zerolog.Logger

	lookups singleflight.Group
	wg      sync.WaitGroup
}

// NewOfflineNotifier builds a broadcast subscriber backed by service.
func NewOfflineNotifier(rooms store.RoomStore, service *Service, logger *zerolog.Logger) *OfflineNotifier {
	return &OfflineNotifier{rooms: rooms, service: service, log: logger}
}

// Delivered schedules notifications for msg without blocking the broadcast.
func (o *OfflineNotifier) Delivered(ctx context.Context, msg *store.Message, online map[string]struct{}) {
	if msg.Kind == store.MessageKindSystem {
		return
	}
	ctx = context.WithoutCancel(ctx)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, offlineTimeout)
		defer cancel()
		o.notify(ctx, msg, online)
	}()
}

func (o *OfflineNotifier) notify(ctx context.Context, msg *store.Message, online map[string]struct{}) {
	v, err, _ := o.lookups.Do(msg.RoomID, func() (any, error) {
		return o.rooms.FindRoom(ctx, msg.RoomID)
	})
	if err != nil {
		o.log.Warn().Err(err).Str("room_id", msg.RoomID).Msg("offline lookup")
		return
	}
	room := v.(*store.Room)

	note := Message{SenderName: msg.SenderName, Content: msg.Content}
	for _, userID := range room.Participants {
		if userID == msg.SenderID {
			continue
		}
		if _, ok := online[userID]; ok {
			continue
		}
		if _, err := o.service.SendNotification(ctx, userID, note); err != nil {
			o.log.Warn().Err(err).Str("user_id", userID).Msg("offline notification")
		}
	}
}

// Wait blocks until every scheduled notification has been attempted.
func (o *OfflineNotifier) Wait() {
	o.wg.Wait()
}
