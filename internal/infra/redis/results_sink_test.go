package redis

import (
	"context"
	"testing"

	"quiz-battle-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestResultsSinkUpdatesLeaderboard(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	sink := NewResultsSink(client)
	ctx := context.Background()

	results := []domain.Result{
		{UserID: "u1", Username: "Alice", Score: 250, CorrectAnswers: 3, TotalQuestions: 3, TotalTimeMs: 6000},
		{UserID: "u2", Username: "Bob", Score: 100, CorrectAnswers: 1, TotalQuestions: 3, TotalTimeMs: 27000},
	}
	if err := sink.RecordBattleResult(ctx, "r1", results); err != nil {
		t.Fatalf("record: %v", err)
	}

	winnerScore, err := client.ZScore(ctx, scoreKey, "u1").Result()
	if err != nil || winnerScore != 250 {
		t.Fatalf("expected u1 score 250, got %v (err %v)", winnerScore, err)
	}
	wins, err := client.HGet(ctx, winsKey, "u1").Result()
	if err != nil || wins != "1" {
		t.Fatalf("expected u1 win recorded, got %q (err %v)", wins, err)
	}
	if _, err := client.HGet(ctx, winsKey, "u2").Result(); err == nil {
		t.Fatalf("u2 must not have a win recorded")
	}
	if !mr.Exists("battle:r1:results") {
		t.Fatalf("expected per-battle results hash")
	}

	// A second battle accumulates scores.
	if err := sink.RecordBattleResult(ctx, "r2", results[:1]); err != nil {
		t.Fatalf("record second battle: %v", err)
	}
	total, err := client.ZScore(ctx, scoreKey, "u1").Result()
	if err != nil || total != 500 {
		t.Fatalf("expected accumulated score 500, got %v (err %v)", total, err)
	}
}
