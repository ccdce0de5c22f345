package battle_test

import (
	"testing"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
)

func TestScoreCorrectAndIncorrect(t *testing.T) {
	policy := battle.DefaultScoringPolicy()
	question := domain.Question{
		Prompt:       "pick the second one",
		Options:      []string{"a", "b", "c"},
		CorrectIndex: 1,
	}

	if got := policy.Score(question, 0, 1000); got != 0 {
		t.Fatalf("wrong answer scored %d, want 0", got)
	}
	if got := policy.Score(question, 5, 1000); got != 0 {
		t.Fatalf("out-of-range answer scored %d, want 0", got)
	}
	if got := policy.Score(question, 1, 1000); got <= policy.BasePoints {
		t.Fatalf("fast correct answer scored %d, want > base %d", got, policy.BasePoints)
	}
}

func TestScoreTimeBonusDecreases(t *testing.T) {
	policy := battle.DefaultScoringPolicy()
	question := domain.Question{Options: []string{"a", "b"}, CorrectIndex: 0}

	prev := policy.Score(question, 0, 0)
	for _, spent := range []int64{1000, 5000, 15000, 29999, 30000, 60000} {
		got := policy.Score(question, 0, spent)
		if got > prev {
			t.Fatalf("score increased with slower answer: %dms scored %d after %d", spent, got, prev)
		}
		prev = got
	}
	if slowest := policy.Score(question, 0, 60000); slowest != policy.BasePoints {
		t.Fatalf("answer past bonus window scored %d, want base %d", slowest, policy.BasePoints)
	}
}

func TestRankOrdersByScoreThenTime(t *testing.T) {
	participants := []*domain.Participant{
		{UserID: "u1", Username: "Alice", Score: 200, TotalTimeMs: 9000},
		{UserID: "u2", Username: "Bob", Score: 300, TotalTimeMs: 12000},
		{UserID: "u3", Username: "Carol", Score: 200, TotalTimeMs: 4000},
	}

	results := battle.Rank(participants, 3)
	got := []string{results[0].UserID, results[1].UserID, results[2].UserID}
	want := []string{"u2", "u3", "u1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order %v, want %v", got, want)
		}
	}
	if results[0].TotalQuestions != 3 {
		t.Fatalf("expected totalQuestions 3, got %d", results[0].TotalQuestions)
	}
}

func TestRankStableForFullTies(t *testing.T) {
	participants := []*domain.Participant{
		{UserID: "u1", Score: 100, TotalTimeMs: 5000},
		{UserID: "u2", Score: 100, TotalTimeMs: 5000},
		{UserID: "u3", Score: 100, TotalTimeMs: 5000},
	}

	for i := 0; i < 5; i++ {
		results := battle.Rank(participants, 1)
		if results[0].UserID != "u1" || results[1].UserID != "u2" || results[2].UserID != "u3" {
			t.Fatalf("tie order not stable: %+v", results)
		}
	}
}
