package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/store"
)

func getJSON(t *testing.T, env *testEnv, path string, out any) int {
	t.Helper()

	resp, err := env.ts.Client().Get(env.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestGetRoom(t *testing.T) {
	env := startTestServer(t, nil, nil)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := env.store.EnsureRoom(ctx, "r1", "Room r1", u); err != nil {
			t.Fatalf("EnsureRoom: %v", err)
		}
	}

	var room RoomResponse
	if code := getJSON(t, env, "/api/rooms/r1", &room); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if room.RoomID != "r1" || room.Name != "Room r1" || len(room.Participants) != 2 {
		t.Fatalf("room = %+v", room)
	}

	if code := getJSON(t, env, "/api/rooms/missing", nil); code != http.StatusNotFound {
		t.Fatalf("missing room status = %d, want 404", code)
	}
}

func TestListMessages(t *testing.T) {
	env := startTestServer(t, nil, func(cfg *config.Config) { cfg.Relay.HistoryLimit = 5 })
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 8; i++ {
		err := env.store.InsertMessage(ctx, &store.Message{
			RoomID: "r1", SenderID: "u", SenderName: "U",
			Content:   fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("InsertMessage: %v", err)
		}
	}

	tests := []struct {
		query     string
		wantCode  int
		wantCount int
		wantFirst string
	}{
		{"", http.StatusOK, 5, "m8"},
		{"?limit=2", http.StatusOK, 2, "m8"},
		{"?limit=100", http.StatusOK, 5, "m8"},
		{"?limit=0", http.StatusBadRequest, 0, ""},
		{"?limit=abc", http.StatusBadRequest, 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			var resp MessagesResponse
			code := getJSON(t, env, "/api/rooms/r1/messages"+tc.query, &resp)
			if code != tc.wantCode {
				t.Fatalf("status = %d, want %d", code, tc.wantCode)
			}
			if code != http.StatusOK {
				return
			}
			if resp.Count != tc.wantCount || resp.Messages[0].Content != tc.wantFirst {
				t.Fatalf("resp = %+v", resp)
			}
		})
	}

	var empty MessagesResponse
	getJSON(t, env, "/api/rooms/none/messages", &empty)
	if empty.Messages == nil || empty.Count != 0 {
		t.Fatalf("empty room response = %+v", empty)
	}
}
