package redis

import (
	"context"
	"sync"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of game.RoomStore.
// Notes:
//   - Rooms themselves stay in a local in-process map: live room state
//     (timers, connection maps) does not serialize.
//   - Redis marks room liveness, so other instances and ops tooling can see
//     which codes are taken.
//   - For true distribution you'd pair this with cross-instance pub/sub,
//     which is out of scope here.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*game.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*game.Room),
	}
}

func (s *RoomStore) Put(code string, room *game.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[code]; taken {
		return false
	}
	s.rooms[code] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(code), room.HostSessionID(), s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(code)).Err()
	return true
}

func (s *RoomStore) key(code string) string {
	return "room:live:" + code
}
