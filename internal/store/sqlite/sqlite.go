package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/roomrelay/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
// Timestamps are stored as unix nanoseconds so history ordering is exact.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function instead of the bundled schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== RoomStore implementation ====

// FindRoom retrieves a room with its participants.
func (s *SQLiteStore) FindRoom(ctx context.Context, roomID string) (*store.Room, error) {
	return findRoom(ctx, s.db, roomID)
}

// SaveRoom upserts the room row and replaces its participant set.
func (s *SQLiteStore) SaveRoom(ctx context.Context, room *store.Room) error {
	now := s.now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (room_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`, room.RoomID, room.Name, room.CreatedAt.UnixNano(), room.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_participants WHERE room_id = ?`, room.RoomID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for i, userID := range room.Participants {
		// Offset by index so join order survives the rewrite.
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO room_participants (room_id, user_id, joined_at)
			VALUES (?, ?, ?)
		`, room.RoomID, userID, now.UnixNano()+int64(i)); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	return tx.Commit()
}

// EnsureRoom creates the room if needed and adds userID as a participant in one transaction.
func (s *SQLiteStore) EnsureRoom(ctx context.Context, roomID, name, userID string) (*store.Room, error) {
	now := s.now().UTC().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (room_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(room_id) DO NOTHING
	`, roomID, name, now, now); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_participants (room_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`, roomID, userID, now); err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET updated_at = ? WHERE room_id = ?`, now, roomID); err != nil {
		return nil, fmt.Errorf("touch room: %w", err)
	}

	room, err := findRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return room, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func findRoom(ctx context.Context, q queryer, roomID string) (*store.Room, error) {
	var (
		room               store.Room
		createdAt, updated int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT room_id, name, created_at, updated_at
		FROM rooms
		WHERE room_id = ?
	`, roomID).Scan(&room.RoomID, &room.Name, &createdAt, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	room.CreatedAt = time.Unix(0, createdAt).UTC()
	room.UpdatedAt = time.Unix(0, updated).UTC()

	rows, err := q.QueryContext(ctx, `
		SELECT user_id
		FROM room_participants
		WHERE room_id = ?
		ORDER BY joined_at, rowid
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	room.Participants = []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		room.Participants = append(room.Participants, userID)
	}

	return &room, rows.Err()
}

// ==== MessageStore implementation ====

// InsertMessage persists a message and bumps the room's last activity.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = store.MessageKindText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, content, kind, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.RoomID, msg.SenderID, msg.SenderName, msg.Content, string(msg.Kind), msg.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET updated_at = ? WHERE room_id = ?`,
		msg.Timestamp.UnixNano(), msg.RoomID); err != nil {
		return fmt.Errorf("touch room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	msg.ID = id
	return nil
}

// FindRecentMessages returns the newest messages of a room, newest first.
func (s *SQLiteStore) FindRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, sender_name, content, kind, ts
		FROM messages
		WHERE room_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var (
			msg  store.Message
			kind string
			ts   int64
		)
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderName, &msg.Content, &kind, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		msg.Timestamp = time.Unix(0, ts).UTC()
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// ==== DeviceStore implementation ====

// UpsertDevice registers token for userID, moving it if another user held it.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, userID, token string) (*store.Device, error) {
	now := s.now().UTC().UnixNano()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (token, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, updated_at = excluded.updated_at
	`, token, userID, now, now); err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}

	var (
		dev                store.Device
		createdAt, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, updated_at FROM devices WHERE token = ?
	`, token).Scan(&dev.Token, &dev.UserID, &createdAt, &updated)
	if err != nil {
		return nil, fmt.Errorf("query device: %w", err)
	}
	dev.CreatedAt = time.Unix(0, createdAt).UTC()
	dev.UpdatedAt = time.Unix(0, updated).UTC()
	return &dev, nil
}

// ListDevices returns all devices registered to userID.
func (s *SQLiteStore) ListDevices(ctx context.Context, userID string) ([]*store.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, user_id, created_at, updated_at
		FROM devices
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []*store.Device
	for rows.Next() {
		var (
			dev                store.Device
			createdAt, updated int64
		)
		if err := rows.Scan(&dev.Token, &dev.UserID, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		dev.CreatedAt = time.Unix(0, createdAt).UTC()
		dev.UpdatedAt = time.Unix(0, updated).UTC()
		devices = append(devices, &dev)
	}

	return devices, rows.Err()
}

// DeleteDevice removes the registration for token.
func (s *SQLiteStore) DeleteDevice(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

var _ store.Store = (*SQLiteStore)(nil)
