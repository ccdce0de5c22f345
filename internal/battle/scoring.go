package battle

import (
	"sort"

	"quiz-battle-service/internal/domain"
)

// ScoringPolicy parameterizes the points curve. The exact numbers are a
// product decision; correctness only requires that faster answers never
// score less than slower ones.
type ScoringPolicy struct {
	BasePoints    int
	MaxTimeBonus  int
	BonusWindowMs int64
}

// DefaultScoringPolicy awards 100 points per correct answer plus a linear
// time bonus of up to 50 points, fully decayed after 30 seconds.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{BasePoints: 100, MaxTimeBonus: 50, BonusWindowMs: 30_000}
}

// Score computes the points for one submission. The server recomputes
// correctness from the question itself; wrong answers always score zero.
func (p ScoringPolicy) Score(question domain.Question, selectedIndex int, timeSpentMs int64) int {
	if selectedIndex < 0 || selectedIndex >= len(question.Options) {
		return 0
	}
	if selectedIndex != question.CorrectIndex {
		return 0
	}
	return p.BasePoints + p.timeBonus(timeSpentMs)
}

func (p ScoringPolicy) timeBonus(timeSpentMs int64) int {
	if p.BonusWindowMs <= 0 || p.MaxTimeBonus <= 0 {
		return 0
	}
	if timeSpentMs < 0 {
		timeSpentMs = 0
	}
	if timeSpentMs >= p.BonusWindowMs {
		return 0
	}
	return int(int64(p.MaxTimeBonus) * (p.BonusWindowMs - timeSpentMs) / p.BonusWindowMs)
}

// Rank orders participants into final results: score descending, ties broken
// by lower total time. The sort is stable, so participants equal on both keys
// keep their relative input order.
func Rank(participants []*domain.Participant, totalQuestions int) []domain.Result {
	results := make([]domain.Result, 0, len(participants))
	for _, p := range participants {
		results = append(results, domain.Result{
			UserID:         p.UserID,
			Username:       p.Username,
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
			TotalQuestions: totalQuestions,
			TotalTimeMs:    p.TotalTimeMs,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].TotalTimeMs < results[j].TotalTimeMs
	})
	return results
}
