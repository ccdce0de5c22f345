package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"quiz-battle-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ChapterLoader fetches question sets from a backing store (e.g., document DB).
type ChapterLoader interface {
	LoadChapter(ctx context.Context, chapterID string) ([]domain.Question, error)
}

// ChapterSource caches resolved chapters in Redis (JSON blob per chapter)
// and falls back to a loader on cache miss. Concurrent misses for the same
// chapter collapse into a single load via singleflight.
type ChapterSource struct {
	client *redis.Client
	loader ChapterLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewChapterSource(client *redis.Client, loader ChapterLoader, ttl time.Duration) *ChapterSource {
	return &ChapterSource{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *ChapterSource) ResolveChapter(ctx context.Context, chapterID string) ([]domain.Question, error) {
	key := s.key(chapterID)

	if questions, ok := s.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := s.sf.Do(chapterID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := s.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := s.loader.LoadChapter(ctx, chapterID)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		_ = s.client.Set(ctx, key, raw, s.ttlWithJitter()).Err()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *ChapterSource) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (s *ChapterSource) key(chapterID string) string {
	return "chapter:" + chapterID + ":questions"
}

func (s *ChapterSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
