package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// QuestionPool caches the published pool per subject/level in Redis and falls
// back to the source pool on a miss. Pools are read far more often than they
// change: every round creation scans one, but content edits are rare.
// Keys: pool:{subjectID} or pool:{subjectID}:{levelID}, JSON-encoded.
type QuestionPool struct {
	client *redis.Client
	source app.QuestionPool
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionPool(client *redis.Client, source app.QuestionPool, ttl time.Duration) *QuestionPool {
	return &QuestionPool{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *QuestionPool) PublishedQuestions(ctx context.Context, subjectID string, levelID *string) ([]domain.PoolQuestion, error) {
	key := p.key(subjectID, levelID)

	if cached, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.PoolQuestion
		if err := json.Unmarshal(cached, &questions); err == nil {
			return questions, nil
		}
		// Undecodable entry: drop it and reload.
		_ = p.client.Del(ctx, key).Err()
	}

	result, err, _ := p.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if cached, err := p.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.PoolQuestion
			if err := json.Unmarshal(cached, &questions); err == nil {
				return questions, nil
			}
		}

		questions, err := p.source.PublishedQuestions(ctx, subjectID, levelID)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(questions); err == nil {
			_ = p.client.Set(ctx, key, payload, p.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PoolQuestion), nil
}

func (p *QuestionPool) key(subjectID string, levelID *string) string {
	if levelID != nil {
		return "pool:" + subjectID + ":" + *levelID
	}
	return "pool:" + subjectID
}

func (p *QuestionPool) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}

var _ app.QuestionPool = (*QuestionPool)(nil)
