package memory

import (
	"slices"
	"sync"
)

// pairSize is how many members take part in offer/answer pairing. Rooms can
// grow past it (extra members still see presence and chat) but the relay
// only ever pairs the first two members in insertion order.
const pairSize = 2

// Store is the room table: room id to ordered member ids. Rooms are created
// on first join and garbage-collected on last leave, there are no explicit
// lifecycle calls. A connection is a member of at most one room at a time.
type Store struct {
	mx      sync.Mutex
	rooms   map[string][]string
	current map[string]string
}

func NewStore() *Store {
	return &Store{
		rooms:   make(map[string][]string),
		current: make(map[string]string),
	}
}

// Join adds the connection to the room, implicitly leaving any previous
// room first. The returned peer is the pairing partner and is non-empty
// only when the connection became the room's second member.
func (s *Store) Join(roomID, connID string) (peer string, count int) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.leaveLocked(connID)

	members := append(s.rooms[roomID], connID)
	s.rooms[roomID] = members
	s.current[connID] = roomID

	if len(members) == pairSize {
		peer = members[0]
	}
	return peer, len(members)
}

// Leave removes the connection from whatever room it is in. No-op when it
// is in none, calling it twice is safe. Returns the room left and a
// snapshot of the remaining members.
func (s *Store) Leave(connID string) (roomID string, remaining []string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.leaveLocked(connID)
}

func (s *Store) leaveLocked(connID string) (string, []string) {
	roomID, ok := s.current[connID]
	if !ok {
		return "", nil
	}
	delete(s.current, connID)

	members := slices.DeleteFunc(s.rooms[roomID], func(id string) bool {
		return id == connID
	})
	if len(members) == 0 {
		delete(s.rooms, roomID)
		return roomID, nil
	}
	s.rooms[roomID] = members
	return roomID, slices.Clone(members)
}

func (s *Store) MemberCount(roomID string) int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.rooms[roomID])
}

// Members returns a snapshot of the room's membership in insertion order.
func (s *Store) Members(roomID string) []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return slices.Clone(s.rooms[roomID])
}

// OtherMember resolves the pairing partner of connID within the room.
// Empty when connID is not among the first two members or has no partner.
func (s *Store) OtherMember(roomID, connID string) string {
	s.mx.Lock()
	defer s.mx.Unlock()

	members := s.rooms[roomID]
	if len(members) < pairSize {
		return ""
	}
	switch connID {
	case members[0]:
		return members[1]
	case members[1]:
		return members[0]
	}
	return ""
}

// RoomOf returns the room the connection currently belongs to, if any.
func (s *Store) RoomOf(connID string) string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.current[connID]
}
