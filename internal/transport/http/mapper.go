package http

import (
	"time"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/store"
)

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomID       string    `json:"roomId"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MessagesResponse represents a page of room history.
type MessagesResponse struct {
	RoomID   string              `json:"roomId"`
	Messages []proto.HistoryItem `json:"messages"`
	Count    int                 `json:"count"`
}

func roomResponse(room *store.Room) RoomResponse {
	participants := room.Participants
	if participants == nil {
		participants = []string{}
	}
	return RoomResponse{
		RoomID:       room.RoomID,
		Name:         room.Name,
		Participants: participants,
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
}

func messagesResponse(roomID string, msgs []*store.Message) MessagesResponse {
	items := core.HistoryItems(msgs)
	return MessagesResponse{
		RoomID:   roomID,
		Messages: items,
		Count:    len(items),
	}
}
