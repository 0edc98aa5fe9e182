package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// TypeMessage tags chat messages in both directions.
	TypeMessage = "message"
	// TypeHistory tags the server's post-join history payload. Never accepted from clients.
	TypeHistory = "history"
	// TypeError tags structured error events sent to a client.
	TypeError = "error"
)

// Handshake is the first payload on a connection.
type Handshake struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

// ChatMessage is a steady-state chat payload from the client.
type ChatMessage struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// MessageEvent is the server's per-broadcast payload.
type MessageEvent struct {
	Type        string    `json:"type"`
	ID          int64     `json:"id,omitempty"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"messageType,omitempty"`
}

// HistoryItem is one stored message inside a history payload.
type HistoryItem struct {
	ID          int64     `json:"id"`
	RoomID      string    `json:"roomId"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"messageType"`
}

// HistoryEvent carries recent room messages, newest first.
type HistoryEvent struct {
	Type     string        `json:"type"`
	Messages []HistoryItem `json:"messages"`
}

// ErrorEvent reports a failure to the client without closing the connection.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error Error  `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Decoding failures. Both are matched with errors.Is.
var (
	ErrMalformed = errors.New("malformed payload")
	ErrInvalid   = errors.New("invalid payload")
)

// DecodeHandshake parses and validates a join request.
func DecodeHandshake(raw []byte) (Handshake, error) {
	var hs Handshake
	if err := strictUnmarshal(raw, &hs); err != nil {
		return hs, err
	}
	switch {
	case hs.UserID == "" && hs.RoomID == "":
		return hs, fmt.Errorf("%w: userId and roomId are required", ErrInvalid)
	case hs.UserID == "":
		return hs, fmt.Errorf("%w: userId is required", ErrInvalid)
	case hs.RoomID == "":
		return hs, fmt.Errorf("%w: roomId is required", ErrInvalid)
	}
	return hs, nil
}

// DecodeChatMessage discriminates on "type" and validates a chat message.
// Only type "message" with non-empty roomId, senderId, senderName and content is accepted.
func DecodeChatMessage(raw []byte) (ChatMessage, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := strictUnmarshal(raw, &env); err != nil {
		return ChatMessage{}, err
	}
	if env.Type != TypeMessage {
		return ChatMessage{}, fmt.Errorf("%w: unsupported type %q", ErrInvalid, env.Type)
	}

	var msg ChatMessage
	if err := strictUnmarshal(raw, &msg); err != nil {
		return msg, err
	}
	var missing []string
	if msg.RoomID == "" {
		missing = append(missing, "roomId")
	}
	if msg.SenderID == "" {
		missing = append(missing, "senderId")
	}
	if msg.SenderName == "" {
		missing = append(missing, "senderName")
	}
	if msg.Content == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return msg, fmt.Errorf("%w: missing %v", ErrInvalid, missing)
	}
	return msg, nil
}

// strictUnmarshal requires a JSON object and rejects wrongly typed fields.
func strictUnmarshal(raw []byte, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %q must be %s", ErrInvalid, typeErr.Field, typeErr.Type)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
