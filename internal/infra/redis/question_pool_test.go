package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"edu-duel-service/internal/domain"
)

type countingSource struct {
	calls atomic.Int64
	pool  []domain.PoolQuestion
}

func (s *countingSource) PublishedQuestions(context.Context, string, *string) ([]domain.PoolQuestion, error) {
	s.calls.Add(1)
	return s.pool, nil
}

func newCacheUnderTest(t *testing.T) (*QuestionPool, *miniredis.Miniredis, *countingSource) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)

	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &countingSource{pool: []domain.PoolQuestion{
		{ID: "q1", Prompt: "2+2?", Options: []domain.PoolOption{
			{ID: "q1-a", Text: "3", SortOrder: 1},
			{ID: "q1-b", Text: "4", Correct: true, SortOrder: 2},
		}},
	}}
	return NewQuestionPool(client, source, time.Minute), srv, source
}

func TestMissLoadsFromSourceAndCaches(t *testing.T) {
	ctx := context.Background()
	cache, srv, source := newCacheUnderTest(t)

	questions, err := cache.PublishedQuestions(ctx, "math", nil)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != "q1" {
		t.Fatalf("unexpected pool: %+v", questions)
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("source calls = %d, want 1", got)
	}
	if !srv.Exists("pool:math") {
		t.Fatalf("expected cache entry at pool:math")
	}

	// Second read is served from the cache.
	questions, err = cache.PublishedQuestions(ctx, "math", nil)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("unexpected cached pool: %+v", questions)
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("cache hit must not hit the source, calls = %d", got)
	}
}

func TestLevelScopedKey(t *testing.T) {
	ctx := context.Background()
	cache, srv, _ := newCacheUnderTest(t)

	level := "l1"
	if _, err := cache.PublishedQuestions(ctx, "math", &level); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !srv.Exists("pool:math:l1") {
		t.Fatalf("expected level-scoped cache key")
	}
	if srv.Exists("pool:math") {
		t.Fatalf("level load must not populate the subject-wide key")
	}
}

func TestExpiryReloadsFromSource(t *testing.T) {
	ctx := context.Background()
	cache, srv, source := newCacheUnderTest(t)

	if _, err := cache.PublishedQuestions(ctx, "math", nil); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	if _, err := cache.PublishedQuestions(ctx, "math", nil); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := source.calls.Load(); got != 2 {
		t.Fatalf("expired entry must reload from source, calls = %d", got)
	}
}

func TestUndecodableEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	cache, srv, source := newCacheUnderTest(t)

	if err := srv.Set("pool:math", "{not json"); err != nil {
		t.Fatalf("seed bad entry: %v", err)
	}

	questions, err := cache.PublishedQuestions(ctx, "math", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != "q1" {
		t.Fatalf("expected a source reload, got %+v", questions)
	}
	if got := source.calls.Load(); got != 1 {
		t.Fatalf("source calls = %d, want 1", got)
	}
}
