package memory

import (
	"context"
	"testing"

	"quiz-battle-service/internal/domain"
)

func TestResultsSinkRecords(t *testing.T) {
	sink := NewResultsSink()

	if _, ok := sink.Results("r1"); ok {
		t.Fatalf("expected no results before recording")
	}

	err := sink.RecordBattleResult(context.Background(), "r1", []domain.Result{
		{UserID: "u1", Username: "Alice", Score: 250},
		{UserID: "u2", Username: "Bob", Score: 100},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	results, ok := sink.Results("r1")
	if !ok || len(results) != 2 || results[0].UserID != "u1" {
		t.Fatalf("unexpected recorded results: %+v", results)
	}
}
