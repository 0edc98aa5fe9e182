package core

import "sync"

// ConnTable is the set of live sessions keyed by connection id, with a per-room index.
// Iteration copies a snapshot under the read lock; callbacks run with no lock held.
type ConnTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session // roomID -> connID -> session
}

// NewConnTable returns an empty table.
func NewConnTable() *ConnTable {
	return &ConnTable{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// Insert adds s under id. It refuses to replace an existing entry and reports false.
func (t *ConnTable) Insert(id string, s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.sessions[id]; exists {
		return false
	}
	t.sessions[id] = s
	members := t.rooms[s.RoomID]
	if members == nil {
		members = make(map[string]*Session)
		t.rooms[s.RoomID] = members
	}
	members[id] = s
	return true
}

// Remove deletes id and returns the removed session, or nil if it was already gone.
func (t *ConnTable) Remove(id string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[id]
	if !ok {
		return nil
	}
	delete(t.sessions, id)
	if members := t.rooms[s.RoomID]; members != nil {
		delete(members, id)
		if len(members) == 0 {
			delete(t.rooms, s.RoomID)
		}
	}
	return s
}

// Get returns the session for id.
func (t *ConnTable) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[id]
	return s, ok
}

// InRoom returns a snapshot of the sessions joined to roomID.
func (t *ConnTable) InRoom(roomID string) []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.rooms[roomID]
	out := make([]*Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// ForEachInRoom invokes fn for every session in roomID's snapshot.
func (t *ConnTable) ForEachInRoom(roomID string, fn func(*Session)) {
	for _, s := range t.InRoom(roomID) {
		fn(s)
	}
}

// OnlineUsers returns the user ids with at least one live session in roomID.
func (t *ConnTable) OnlineUsers(roomID string) map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make(map[string]struct{}, len(t.rooms[roomID]))
	for _, s := range t.rooms[roomID] {
		users[s.UserID] = struct{}{}
	}
	return users
}

// Len returns the number of live sessions.
func (t *ConnTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Drain removes and returns every session.
func (t *ConnTable) Drain() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.sessions = make(map[string]*Session)
	t.rooms = make(map[string]map[string]*Session)
	return out
}
