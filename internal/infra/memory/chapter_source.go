package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ChapterLoader fetches question sets from a backing store (e.g., document DB).
type ChapterLoader interface {
	LoadChapter(ctx context.Context, chapterID string) ([]domain.Question, error)
}

// ChapterSource caches resolved chapters with TTL to avoid repeated DB hits
// when many rooms start battles from the same chapter. Expired entries are
// swept whenever a load repopulates the cache, so an idle chapter does not
// pin its question set in memory forever.
type ChapterSource struct {
	loader ChapterLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	questions []domain.Question
	expiresAt time.Time
}

func (e cacheEntry) fresh(now time.Time) bool { return e.expiresAt.After(now) }

func NewChapterSource(loader ChapterLoader, ttl time.Duration) *ChapterSource {
	return &ChapterSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cacheEntry),
	}
}

func (s *ChapterSource) ResolveChapter(ctx context.Context, chapterID string) ([]domain.Question, error) {
	if questions, ok := s.lookup(chapterID); ok {
		return questions, nil
	}

	// Concurrent battle starts for the same chapter share one load.
	result, err, _ := s.sf.Do(chapterID, func() (interface{}, error) {
		if questions, ok := s.lookup(chapterID); ok {
			return questions, nil
		}
		questions, err := s.loader.LoadChapter(ctx, chapterID)
		if err != nil {
			return nil, err
		}
		s.store(chapterID, questions)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *ChapterSource) lookup(chapterID string) ([]domain.Question, bool) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[chapterID]
	if !ok || !entry.fresh(now) {
		return nil, false
	}
	return entry.questions, true
}

func (s *ChapterSource) store(chapterID string, questions []domain.Question) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.cache {
		if !entry.fresh(now) {
			delete(s.cache, id)
		}
	}
	s.cache[chapterID] = cacheEntry{
		questions: questions,
		expiresAt: now.Add(s.ttlWithJitter()),
	}
}

func (s *ChapterSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticChapterLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticChapterLoader struct {
	chapters map[string][]domain.Question
}

func NewStaticChapterLoader(chapters map[string][]domain.Question) *StaticChapterLoader {
	return &StaticChapterLoader{chapters: chapters}
}

func (l *StaticChapterLoader) LoadChapter(_ context.Context, chapterID string) ([]domain.Question, error) {
	if questions, ok := l.chapters[chapterID]; ok {
		return questions, nil
	}
	return nil, domain.ErrChapterNotFound
}
