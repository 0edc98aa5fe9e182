package core

import (
	"encoding/json"

	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/store"
)

func messageEvent(msg *store.Message) proto.MessageEvent {
	return proto.MessageEvent{
		Type:        proto.TypeMessage,
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		SenderName:  msg.SenderName,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp,
		MessageType: string(msg.Kind),
	}
}

// HistoryItems converts stored messages to wire items, keeping their order.
func HistoryItems(msgs []*store.Message) []proto.HistoryItem {
	items := make([]proto.HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, proto.HistoryItem{
			ID:          m.ID,
			RoomID:      m.RoomID,
			SenderID:    m.SenderID,
			SenderName:  m.SenderName,
			Content:     m.Content,
			Timestamp:   m.Timestamp,
			MessageType: string(m.Kind),
		})
	}
	return items
}

func encodeMessage(msg *store.Message) ([]byte, error) {
	return json.Marshal(messageEvent(msg))
}

func encodeHistory(msgs []*store.Message) ([]byte, error) {
	return json.Marshal(proto.HistoryEvent{Type: proto.TypeHistory, Messages: HistoryItems(msgs)})
}

func encodeError(code, msg string) []byte {
	raw, _ := json.Marshal(proto.ErrorEvent{Type: proto.TypeError, Error: proto.Error{Code: code, Msg: msg}})
	return raw
}
