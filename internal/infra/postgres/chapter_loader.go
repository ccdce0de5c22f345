package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-battle-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ChapterLoader loads chapter JSONB from Postgres.
type ChapterLoader struct {
	pool *pgxpool.Pool
}

func NewChapterLoader(pool *pgxpool.Pool) *ChapterLoader {
	return &ChapterLoader{pool: pool}
}

func (l *ChapterLoader) LoadChapter(ctx context.Context, chapterID string) ([]domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT questions FROM chapters WHERE id=$1`, chapterID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chapter: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal chapter: %w", err)
	}
	return questions, nil
}
