package postgres

import (
	"context"
	"fmt"

	"quiz-battle-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultsSink persists one battle_results row per participant.
type ResultsSink struct {
	pool *pgxpool.Pool
}

func NewResultsSink(pool *pgxpool.Pool) *ResultsSink {
	return &ResultsSink{pool: pool}
}

func (s *ResultsSink) RecordBattleResult(ctx context.Context, roomID string, results []domain.Result) error {
	batch := &pgx.Batch{}
	for rank, result := range results {
		batch.Queue(
			`INSERT INTO battle_results (room_id, user_id, username, score, correct_answers, total_questions, total_time_ms, won)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			roomID, result.UserID, result.Username, result.Score,
			result.CorrectAnswers, result.TotalQuestions, result.TotalTimeMs, rank == 0,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("record battle %s: %w", roomID, err)
		}
	}
	return nil
}
