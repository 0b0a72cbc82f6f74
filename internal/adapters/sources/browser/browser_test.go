package browser

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flightmesh/flightmesh/internal/domain"
)

type fakeSession struct {
	frames chan []byte
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error                   { return nil }
func (f *fakeSession) FillForm(ctx context.Context, fields map[string]string) error     { return nil }
func (f *fakeSession) InterceptXHR(ctx context.Context, pattern string) (<-chan []byte, error) {
	return f.frames, nil
}
func (f *fakeSession) Close() error { return nil }

func TestPool_Search_StreamsOffersFromInterceptedXHR(t *testing.T) {
	frames := make(chan []byte, 1)
	b, _ := json.Marshal([]map[string]any{{"carrier": "VS"}})
	frames <- b
	close(frames)

	pool := NewPool("browser_pool", "https://example.invalid/search", 1, func(ctx context.Context) (Session, error) {
		return &fakeSession{frames: frames}, nil
	})

	q := domain.Query{Origin: "JFK", Destination: "LHR", DepartureDate: time.Now().Add(48 * time.Hour)}
	offers, errs := pool.Search(context.Background(), q, time.Now().Add(time.Second))

	var got []domain.RawOffer
	for o := range offers {
		got = append(got, o)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(got))
	}
}

func TestPool_Search_NoXHRObservedIsRecoverable(t *testing.T) {
	frames := make(chan []byte)
	close(frames)

	pool := NewPool("browser_pool", "https://example.invalid/search", 1, func(ctx context.Context) (Session, error) {
		return &fakeSession{frames: frames}, nil
	})

	q := domain.Query{Origin: "JFK", Destination: "LHR", DepartureDate: time.Now().Add(48 * time.Hour)}
	offers, errs := pool.Search(context.Background(), q, time.Now().Add(time.Second))
	for range offers {
	}
	err := <-errs
	if err == nil {
		t.Fatal("expected an error when no XHR frame was observed")
	}
	if kind := pool.ClassifyFailure(err); kind != domain.FailureParseErrorRecoverable {
		t.Fatalf("expected FailureParseErrorRecoverable, got %s", kind)
	}
}

func TestPool_Search_LimitsConcurrency(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	pool := NewPool("browser_pool", "https://example.invalid/search", 1, func(ctx context.Context) (Session, error) {
		started <- struct{}{}
		<-release
		frames := make(chan []byte)
		close(frames)
		return &fakeSession{frames: frames}, nil
	})

	q := domain.Query{Origin: "JFK", Destination: "LHR", DepartureDate: time.Now().Add(48 * time.Hour)}
	_, _ = pool.Search(context.Background(), q, time.Now().Add(time.Second))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("expected the first search to acquire the single pool slot")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, errs2 := pool.Search(ctx, q, time.Now().Add(time.Second))
	err := <-errs2
	if err == nil {
		t.Fatal("expected the second search to time out waiting for the single pool slot")
	}
	close(release)
}
