package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/cache"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

type fakeGenerator struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
	last    domain.Prompt
	mu      sync.Mutex
}

func (g *fakeGenerator) Complete(ctx context.Context, p domain.Prompt) ([]string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.last = p
	g.mu.Unlock()
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return []string{p.Language + ":" + p.Code}, nil
}

func ptr[T any](v T) *T { return &v }

func newRedisCache(t *testing.T) (*miniredis.Miniredis, cache.CompletionCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCompletionCache(cache.RedisConfig{Address: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestCompleteAppliesDefaults(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewCompletionService(gen, nil, Config{})

	resp, err := svc.Complete(context.Background(), &domain.CompletionRequest{Code: ptr("let x")})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp.Suggestions, []string{"javascript:let x"}) {
		t.Errorf("suggestions = %q", resp.Suggestions)
	}
	if gen.last.Offset != 5 {
		t.Errorf("offset = %d, want end of code", gen.last.Offset)
	}
}

func TestCompleteRejectsBadOffset(t *testing.T) {
	gen := &fakeGenerator{}
	svc := NewCompletionService(gen, nil, Config{})

	_, err := svc.Complete(context.Background(), &domain.CompletionRequest{Code: ptr("ab"), CursorOffset: ptr(9)})
	if !errors.Is(err, domain.ErrInvalidOffset) {
		t.Fatalf("got %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Error("generator should not be called")
	}
}

func TestCompleteUsesCache(t *testing.T) {
	mr, c := newRedisCache(t)
	gen := &fakeGenerator{}
	svc := NewCompletionService(gen, c, Config{CacheTTL: time.Minute})
	req := &domain.CompletionRequest{Code: ptr("x"), Language: ptr("go")}

	if _, err := svc.Complete(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	// The cache write is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for len(mr.Keys()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("result was never cached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := svc.Complete(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls.Load())
	}
	if !reflect.DeepEqual(resp.Suggestions, []string{"go:x"}) {
		t.Errorf("suggestions = %q", resp.Suggestions)
	}
}

func TestCompleteDegradesWhenCacheFails(t *testing.T) {
	mr, c := newRedisCache(t)
	mr.SetError("LOADING")
	gen := &fakeGenerator{}
	svc := NewCompletionService(gen, c, Config{CacheTTL: time.Minute})

	resp, err := svc.Complete(context.Background(), &domain.CompletionRequest{Code: ptr("y")})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) != 1 {
		t.Errorf("suggestions = %q", resp.Suggestions)
	}
}

func TestCompleteCoalescesConcurrentRequests(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	svc := NewCompletionService(gen, nil, Config{})
	req := &domain.CompletionRequest{Code: ptr("same")}

	var wg sync.WaitGroup
	results := make([][]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Complete(context.Background(), req)
			if err == nil {
				results[i] = resp.Suggestions
			}
		}(i)
	}

	// Let the goroutines pile up behind the first call.
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	if n := gen.calls.Load(); n != 1 {
		t.Fatalf("generator calls = %d, want 1", n)
	}
	for i, r := range results {
		if !reflect.DeepEqual(r, []string{"javascript:same"}) {
			t.Errorf("result %d = %q", i, r)
		}
	}
}

func TestCompleteGeneratorFailure(t *testing.T) {
	boom := errors.New("upstream down")
	svc := NewCompletionService(&fakeGenerator{err: boom}, nil, Config{})

	if _, err := svc.Complete(context.Background(), &domain.CompletionRequest{}); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestCompleteGeneratorTimeout(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	svc := NewCompletionService(gen, nil, Config{GenerateTimeout: 20 * time.Millisecond})

	_, err := svc.Complete(context.Background(), &domain.CompletionRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v", err)
	}
}
