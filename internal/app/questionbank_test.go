package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tournament-quiz-service/internal/domain"
	"tournament-quiz-service/internal/infra/memory"
)

type countingLoader struct {
	mu    sync.Mutex
	inner QuestionLoader
	calls int
}

func (l *countingLoader) LoadCategory(ctx context.Context, category string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.inner.LoadCategory(ctx, category)
}

func TestDrawIsDeterministicPerSession(t *testing.T) {
	ctx := context.Background()
	bank := NewQuestionBank(memory.NewStaticQuestionLoader(testCatalog(10)), time.Minute)

	first, err := bank.Draw(ctx, "general", 5, "session-a")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	second, err := bank.Draw(ctx, "general", 5, "session-a")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same session id must re-derive the same order:\n%v\n%v", ids(first), ids(second))
		}
	}

	other, err := bank.Draw(ctx, "general", 5, "session-b")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if equalIDs(first, other) {
		t.Fatalf("distinct sessions drew identical sequences: %v", ids(first))
	}
}

func TestDrawInsufficientQuestions(t *testing.T) {
	bank := NewQuestionBank(memory.NewStaticQuestionLoader(testCatalog(3)), time.Minute)
	if _, err := bank.Draw(context.Background(), "general", 5, "s1"); !errors.Is(err, domain.ErrInsufficientQuestions) {
		t.Fatalf("expected insufficient questions, got %v", err)
	}
}

func TestDrawUnknownCategory(t *testing.T) {
	bank := NewQuestionBank(memory.NewStaticQuestionLoader(testCatalog(3)), time.Minute)
	if _, err := bank.Draw(context.Background(), "science", 1, "s1"); !errors.Is(err, domain.ErrInsufficientQuestions) {
		t.Fatalf("expected insufficient questions for empty category, got %v", err)
	}
}

func TestCatalogCachedWithinTTL(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: memory.NewStaticQuestionLoader(testCatalog(10))}
	bank := NewQuestionBank(loader, time.Minute)

	for i := 0; i < 5; i++ {
		if _, err := bank.Draw(ctx, "general", 5, "s1"); err != nil {
			t.Fatalf("draw: %v", err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single catalog load, got %d", loader.calls)
	}
}

func TestCatalogReloadedAfterExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: memory.NewStaticQuestionLoader(testCatalog(10))}
	bank := NewQuestionBank(loader, time.Minute)

	clk := newFakeClock()
	bank.clock = clk.now

	if _, err := bank.Draw(ctx, "general", 5, "s1"); err != nil {
		t.Fatalf("draw: %v", err)
	}
	// jitter extends the TTL by at most 10%
	clk.advance(2 * time.Minute)
	if _, err := bank.Draw(ctx, "general", 5, "s1"); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

type failingLoader struct{ err error }

func (l failingLoader) LoadCategory(context.Context, string) ([]domain.Question, error) {
	return nil, l.err
}

func TestDrawPropagatesLoaderError(t *testing.T) {
	boom := errors.New("catalog backend down")
	bank := NewQuestionBank(failingLoader{err: boom}, time.Minute)
	if _, err := bank.Draw(context.Background(), "general", 5, "s1"); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func ids(qs []domain.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func equalIDs(a, b []domain.Question) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
