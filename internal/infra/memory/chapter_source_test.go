package memory

import (
	"context"
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
)

func TestChapterSourceCaches(t *testing.T) {
	loader := &countingLoader{
		ChapterLoader: NewStaticChapterLoader(map[string][]domain.Question{
			"chapter-1": sampleQuestions(),
		}),
	}
	source := NewChapterSource(loader, time.Minute)

	if _, err := source.ResolveChapter(context.Background(), "chapter-1"); err != nil {
		t.Fatalf("resolve chapter: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := source.ResolveChapter(context.Background(), "chapter-1"); err != nil {
		t.Fatalf("resolve chapter 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestChapterSourceEvictsExpiredEntries(t *testing.T) {
	loader := &countingLoader{
		ChapterLoader: NewStaticChapterLoader(map[string][]domain.Question{
			"chapter-1": sampleQuestions(),
			"chapter-2": sampleQuestions(),
		}),
	}
	source := NewChapterSource(loader, time.Minute)
	now := time.Now()
	source.clock = func() time.Time { return now }

	for _, id := range []string{"chapter-1", "chapter-2"} {
		if _, err := source.ResolveChapter(context.Background(), id); err != nil {
			t.Fatalf("resolve %s: %v", id, err)
		}
	}

	// Past the TTL both entries are stale; the next load reloads its chapter
	// and sweeps the rest.
	now = now.Add(2 * time.Minute)
	if _, err := source.ResolveChapter(context.Background(), "chapter-1"); err != nil {
		t.Fatalf("resolve after expiry: %v", err)
	}
	if loader.calls != 3 {
		t.Fatalf("expected a reload after expiry, loader calls %d", loader.calls)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.cache) != 1 {
		t.Fatalf("expected stale entries swept, cache holds %d", len(source.cache))
	}
	if _, ok := source.cache["chapter-2"]; ok {
		t.Fatalf("expired chapter-2 still cached")
	}
}

func TestChapterSourceUnknownChapter(t *testing.T) {
	source := NewChapterSource(NewStaticChapterLoader(nil), time.Minute)
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
		{
			Prompt:       "What is 2 + 2?",
			Options:      []string{"3", "4"},
			CorrectIndex: 1,
		},
	}
}
