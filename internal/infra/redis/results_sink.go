package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-battle-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	scoreKey = "leaderboard:score"
	winsKey  = "leaderboard:wins"
)

// ResultsSink folds battle results into the global leaderboard:
//   - ZINCRBY leaderboard:score {score} {userId} per participant
//   - HINCRBY leaderboard:wins  {userId} 1 for the winner
//   - HSET battle:{roomID}:results {userId} {result JSON} for history
type ResultsSink struct {
	client *redis.Client
}

func NewResultsSink(client *redis.Client) *ResultsSink {
	return &ResultsSink{client: client}
}

func (s *ResultsSink) RecordBattleResult(ctx context.Context, roomID string, results []domain.Result) error {
	pipe := s.client.Pipeline()
	for rank, result := range results {
		pipe.ZIncrBy(ctx, scoreKey, float64(result.Score), result.UserID)
		if rank == 0 {
			pipe.HIncrBy(ctx, winsKey, result.UserID, 1)
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", result.UserID, err)
		}
		pipe.HSet(ctx, s.resultsKey(roomID), result.UserID, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record battle %s: %w", roomID, err)
	}
	return nil
}

func (s *ResultsSink) resultsKey(roomID string) string {
	return "battle:" + roomID + ":results"
}
