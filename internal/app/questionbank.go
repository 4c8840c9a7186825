package app

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tournament-quiz-service/internal/domain"
)

// QuestionLoader fetches a category's question catalog from a backing store.
type QuestionLoader interface {
	LoadCategory(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionBank caches category catalogs with TTL and hands out per-session
// question orderings. The shuffle is seeded from the session id, so the
// same session always re-derives the same order while distinct sessions in
// the same tournament see independent sequences.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCatalog
}

type cachedCatalog struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCatalog),
	}
}

// Draw returns count questions from the category in the order assigned to
// sessionID. Calling Draw again with the same session id yields the same
// sequence.
func (b *QuestionBank) Draw(ctx context.Context, category string, count int, sessionID string) ([]domain.Question, error) {
	catalog, err := b.catalog(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(catalog) < count {
		return nil, domain.ErrInsufficientQuestions
	}

	shuffle := rand.New(rand.NewSource(seedFor(sessionID)))
	perm := shuffle.Perm(len(catalog))

	picked := make([]domain.Question, count)
	for i := 0; i < count; i++ {
		picked[i] = catalog[perm[i]]
	}
	return picked, nil
}

func (b *QuestionBank) catalog(ctx context.Context, category string) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[category]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(category, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[category]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[category] = cachedCatalog{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func seedFor(sessionID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return int64(h.Sum64())
}
