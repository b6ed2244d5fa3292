package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

// CompletedQuiz is one recorded quiz run.
type CompletedQuiz struct {
	RoomCode    string
	QuizName    string
	Rankings    []domain.Ranking
	CompletedAt time.Time
}

// HistoryRecorder keeps completed-quiz records in memory. It backs the
// default wiring and tests; production deployments use the Postgres recorder.
type HistoryRecorder struct {
	mu      sync.Mutex
	records []CompletedQuiz
}

func NewHistoryRecorder() *HistoryRecorder {
	return &HistoryRecorder{}
}

func (h *HistoryRecorder) RecordCompletedQuiz(_ context.Context, roomCode, quizName string, rankings []domain.Ranking) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, CompletedQuiz{
		RoomCode:    roomCode,
		QuizName:    quizName,
		Rankings:    rankings,
		CompletedAt: time.Now(),
	})
	return nil
}

// Records returns a copy of everything recorded so far.
func (h *HistoryRecorder) Records() []CompletedQuiz {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CompletedQuiz, len(h.records))
	copy(out, h.records)
	return out
}
