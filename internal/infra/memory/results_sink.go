package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/domain"
)

// ResultsSink records battle results in memory. Used in tests and when the
// service runs without Redis or Postgres.
type ResultsSink struct {
	mu      sync.RWMutex
	battles map[string][]domain.Result
}

func NewResultsSink() *ResultsSink {
	return &ResultsSink{battles: make(map[string][]domain.Result)}
}

func (s *ResultsSink) RecordBattleResult(_ context.Context, roomID string, results []domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battles[roomID] = append([]domain.Result(nil), results...)
	return nil
}

// Results returns the recorded ranking for a room, if any.
func (s *ResultsSink) Results(roomID string) ([]domain.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.battles[roomID]
	return results, ok
}
