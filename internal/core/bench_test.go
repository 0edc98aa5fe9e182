package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/memory"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	table := NewConnTable()
	engine := NewEngine(table, memory.New(), nil)

	sessions := make([]*Session, 0, recipients)
	for i := range recipients {
		id := "c" + strconv.Itoa(i)
		s := NewSession(id, id, "bench", 1024, nil)
		table.Insert(id, s)
		sessions = append(sessions, s)
	}

	// Drain every outbox so Deliver never hits backpressure.
	for _, s := range sessions {
		go func(s *Session) {
			for {
				select {
				case <-s.Outbox():
				case <-s.Done():
					return
				}
			}
		}(s)
	}
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()

	msg := &store.Message{RoomID: "bench", SenderID: "sender", SenderName: "S", Content: "hi"}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Broadcast(ctx, msg)
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
