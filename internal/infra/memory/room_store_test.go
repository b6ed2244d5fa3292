package memory

import (
	"testing"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/game"
)

func TestRoomStoreLifecycle(t *testing.T) {
	store := NewRoomStore()
	room := game.NewRoom("123456", domain.Quiz{ID: "quiz-1"}, "host-session")

	if !store.Put("123456", room) {
		t.Fatalf("expected put to succeed")
	}
	if store.Put("123456", room) {
		t.Fatalf("expected duplicate code to be rejected")
	}
	if got, ok := store.Get("123456"); !ok || got != room {
		t.Fatalf("expected stored room back")
	}

	if !store.Delete("123456") {
		t.Fatalf("expected delete to succeed")
	}
	if store.Delete("123456") {
		t.Fatalf("expected delete of missing room to report false")
	}
	if _, ok := store.Get("123456"); ok {
		t.Fatalf("expected room removed")
	}
}
