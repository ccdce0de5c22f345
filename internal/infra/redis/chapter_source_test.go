package redis

import (
	"context"
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestChapterSourceCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		ChapterLoader: memory.NewStaticChapterLoader(map[string][]domain.Question{
			"chapter-1": sampleQuestions(),
		}),
	}
	source := NewChapterSource(client, loader, time.Minute)

	questions, err := source.ResolveChapter(context.Background(), "chapter-1")
	if err != nil {
		t.Fatalf("resolve chapter: %v", err)
	}
	if len(questions) != 2 || questions[1].CorrectIndex != 0 {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("chapter:chapter-1:questions") {
		t.Fatalf("expected chapter cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	if _, err := source.ResolveChapter(context.Background(), "chapter-1"); err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestChapterSourcePropagatesLoaderError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	source := NewChapterSource(newClient(mr), memory.NewStaticChapterLoader(nil), time.Minute)
	if _, err := source.ResolveChapter(context.Background(), "nope"); err != domain.ErrChapterNotFound {
		t.Fatalf("expected chapter not found, got %v", err)
	}
}

type countingLoader struct {
	ChapterLoader
	calls int
}

func (l *countingLoader) LoadChapter(ctx context.Context, chapterID string) ([]domain.Question, error) {
	l.calls++
	return l.ChapterLoader.LoadChapter(ctx, chapterID)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Prompt: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
		{Prompt: "Pick the first option", Options: []string{"yes", "no"}, CorrectIndex: 0},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
