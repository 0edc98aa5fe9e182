// Package redis implements store.Store on Redis.
//
// Key layout (all under a configurable prefix):
//
//	room:{id}               hash: name, created_at, updated_at (unix nanos)
//	room:{id}:participants  sorted set: user id scored by first join (unix micros)
//	room:{id}:messages      sorted set: JSON message scored by timestamp (unix micros)
//	messages:seq            counter for message ids
//	device:{token}          hash: user_id, created_at, updated_at
//	user:{id}:devices       set of tokens
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vovakirdan/roomrelay/internal/store"
)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements store.Store using go-redis.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

// New connects to redis and verifies connectivity.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(rdb, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

// Close shuts down the redis connection.
func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) roomKey(roomID string) string         { return s.prefix + "room:" + roomID }
func (s *RedisStore) participantsKey(roomID string) string { return s.prefix + "room:" + roomID + ":participants" }
func (s *RedisStore) messagesKey(roomID string) string     { return s.prefix + "room:" + roomID + ":messages" }
func (s *RedisStore) seqKey() string                       { return s.prefix + "messages:seq" }
func (s *RedisStore) deviceKey(token string) string        { return s.prefix + "device:" + token }
func (s *RedisStore) userDevicesKey(userID string) string  { return s.prefix + "user:" + userID + ":devices" }

// ==== RoomStore implementation ====

// FindRoom loads the room hash and its participants.
func (s *RedisStore) FindRoom(ctx context.Context, roomID string) (*store.Room, error) {
	fields, err := s.rdb.HGetAll(ctx, s.roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall room: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
	}

	participants, err := s.rdb.ZRange(ctx, s.participantsKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange participants: %w", err)
	}

	return &store.Room{
		RoomID:       roomID,
		Name:         fields["name"],
		Participants: participants,
		CreatedAt:    parseNanos(fields["created_at"]),
		UpdatedAt:    parseNanos(fields["updated_at"]),
	}, nil
}

// SaveRoom overwrites the room hash and participant set in one MULTI/EXEC.
func (s *RedisStore) SaveRoom(ctx context.Context, room *store.Room) error {
	now := s.now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.roomKey(room.RoomID),
			"name", room.Name,
			"created_at", strconv.FormatInt(room.CreatedAt.UnixNano(), 10),
			"updated_at", strconv.FormatInt(room.UpdatedAt.UnixNano(), 10),
		)
		pipe.Del(ctx, s.participantsKey(room.RoomID))
		for i, userID := range room.Participants {
			pipe.ZAddNX(ctx, s.participantsKey(room.RoomID), goredis.Z{
				Score:  float64(now.UnixMicro() + int64(i)),
				Member: userID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

// EnsureRoom relies on HSETNX and ZADD NX inside MULTI/EXEC, so concurrent joiners never lose each other.
func (s *RedisStore) EnsureRoom(ctx context.Context, roomID, name, userID string) (*store.Room, error) {
	now := s.now().UTC()
	nanos := strconv.FormatInt(now.UnixNano(), 10)

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		key := s.roomKey(roomID)
		pipe.HSetNX(ctx, key, "name", name)
		pipe.HSetNX(ctx, key, "created_at", nanos)
		pipe.HSet(ctx, key, "updated_at", nanos)
		pipe.ZAddNX(ctx, s.participantsKey(roomID), goredis.Z{
			Score:  float64(now.UnixMicro()),
			Member: userID,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure room: %w", err)
	}
	return s.FindRoom(ctx, roomID)
}

// ==== MessageStore implementation ====

type redisMessage struct {
	ID         int64  `json:"id"`
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Kind       string `json:"kind"`
	TS         int64  `json:"ts"`
}

// InsertMessage allocates an id from the sequence and adds the message to the room's sorted set.
func (s *RedisStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}

	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("incr message seq: %w", err)
	}

	raw, err := json.Marshal(redisMessage{
		ID:         id,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Kind:       string(msg.Kind),
		TS:         msg.Timestamp.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, s.messagesKey(msg.RoomID), goredis.Z{
			Score:  float64(msg.Timestamp.UnixMicro()),
			Member: raw,
		})
		pipe.HSet(ctx, s.roomKey(msg.RoomID), "updated_at", strconv.FormatInt(msg.Timestamp.UnixNano(), 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	msg.ID = id
	return nil
}

// FindRecentMessages reads the top of the room's sorted set, newest first.
func (s *RedisStore) FindRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}
	raws, err := s.rdb.ZRevRange(ctx, s.messagesKey(roomID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(raws))
	for _, raw := range raws {
		var rm redisMessage
		if err := json.Unmarshal([]byte(raw), &rm); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, &store.Message{
			ID:         rm.ID,
			RoomID:     rm.RoomID,
			SenderID:   rm.SenderID,
			SenderName: rm.SenderName,
			Content:    rm.Content,
			Kind:       store.MessageKind(rm.Kind),
			Timestamp:  time.Unix(0, rm.TS).UTC(),
		})
	}
	return messages, nil
}

// ==== DeviceStore implementation ====

// UpsertDevice moves token to userID's device set.
func (s *RedisStore) UpsertDevice(ctx context.Context, userID, token string) (*store.Device, error) {
	now := strconv.FormatInt(s.now().UTC().UnixNano(), 10)

	prev, err := s.rdb.HGet(ctx, s.deviceKey(token), "user_id").Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("hget device: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if prev != "" && prev != userID {
			pipe.SRem(ctx, s.userDevicesKey(prev), token)
		}
		pipe.HSetNX(ctx, s.deviceKey(token), "created_at", now)
		pipe.HSet(ctx, s.deviceKey(token), "user_id", userID, "updated_at", now)
		pipe.SAdd(ctx, s.userDevicesKey(userID), token)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return s.getDevice(ctx, token)
}

func (s *RedisStore) getDevice(ctx context.Context, token string) (*store.Device, error) {
	fields, err := s.rdb.HGetAll(ctx, s.deviceKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall device: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("device: %w", store.ErrNotFound)
	}
	return &store.Device{
		Token:     token,
		UserID:    fields["user_id"],
		CreatedAt: parseNanos(fields["created_at"]),
		UpdatedAt: parseNanos(fields["updated_at"]),
	}, nil
}

// ListDevices returns the user's devices.
func (s *RedisStore) ListDevices(ctx context.Context, userID string) ([]*store.Device, error) {
	tokens, err := s.rdb.SMembers(ctx, s.userDevicesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers devices: %w", err)
	}
	devices := make([]*store.Device, 0, len(tokens))
	for _, token := range tokens {
		dev, err := s.getDevice(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// DeleteDevice removes the token and its set membership.
func (s *RedisStore) DeleteDevice(ctx context.Context, token string) error {
	userID, err := s.rdb.HGet(ctx, s.deviceKey(token), "user_id").Result()
	if errors.Is(err, goredis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("hget device: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.deviceKey(token))
		pipe.SRem(ctx, s.userDevicesKey(userID), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

func parseNanos(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ store.Store = (*RedisStore)(nil)
