package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
)

// HistoryRecorder persists completed-quiz scoreboards as JSONB rows.
type HistoryRecorder struct {
	pool *pgxpool.Pool
}

func NewHistoryRecorder(pool *pgxpool.Pool) *HistoryRecorder {
	return &HistoryRecorder{pool: pool}
}

func (h *HistoryRecorder) RecordCompletedQuiz(ctx context.Context, roomCode, quizName string, rankings []domain.Ranking) error {
	payload, err := json.Marshal(rankings)
	if err != nil {
		return fmt.Errorf("marshal rankings: %w", err)
	}
	_, err = h.pool.Exec(ctx,
		`INSERT INTO quiz_history (room_code, quiz_name, rankings, completed_at) VALUES ($1, $2, $3, now())`,
		roomCode, quizName, payload)
	if err != nil {
		return fmt.Errorf("record quiz history: %w", err)
	}
	return nil
}
