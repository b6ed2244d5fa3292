package memory

import (
	"sync"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
)

// RoomStore is an in-memory implementation of game.RoomStore.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*game.Room),
	}
}

func (s *RoomStore) Put(code string, room *game.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[code]; taken {
		return false
	}
	s.rooms[code] = room
	return true
}

func (s *RoomStore) Get(code string) (*game.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return false
	}
	delete(s.rooms, code)
	return true
}
