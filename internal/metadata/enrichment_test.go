package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"solflow/internal/logging"
	"solflow/internal/models"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []models.TokenMetadata
	err     error
}

func (w *fakeWriter) UpsertTokenMetadata(ctx context.Context, md models.TokenMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, md)
	return nil
}

func (w *fakeWriter) snapshot() []models.TokenMetadata {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.TokenMetadata, len(w.written))
	copy(out, w.written)
	return out
}

func newTestTask(t *testing.T, writer Writer, mints func() []string, handler http.HandlerFunc) *Task {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Task{
		writer:  writer,
		client:  srv.Client(),
		mints:   mints,
		log:     logging.New("test"),
		baseURL: srv.URL,
	}
}

func TestTask_RefreshAllWritesFetchedMetadata(t *testing.T) {
	writer := &fakeWriter{}
	task := newTestTask(t, writer, func() []string { return []string{"MintA", "MintB"} },
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"name":"Token %s","symbol":"TK","price_usd":1.5}`, r.URL.Path[len(r.URL.Path)-1:])
		})

	task.refreshAll(context.Background())

	got := writer.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 mints written, got %d", len(got))
	}
	if got[0].Source != "token-registry" {
		t.Errorf("expected source tagged token-registry, got %q", got[0].Source)
	}
}

func TestTask_RefreshAllSkipsFetchFailuresAndKeepsGoing(t *testing.T) {
	writer := &fakeWriter{}
	calls := 0
	task := newTestTask(t, writer, func() []string { return []string{"MintBad", "MintGood"} },
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"name":"Good","symbol":"GOOD","price_usd":2}`)
		})

	task.refreshAll(context.Background())

	got := writer.snapshot()
	if len(got) != 1 || got[0].Symbol != "GOOD" {
		t.Fatalf("expected only the successful fetch to be written, got %v", got)
	}
}

func TestTask_RefreshAllWithEmptyWatchListIsNoop(t *testing.T) {
	writer := &fakeWriter{}
	task := newTestTask(t, writer, func() []string { return nil },
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("fetch should not be called with an empty watch-list")
		})

	task.refreshAll(context.Background())
	if len(writer.snapshot()) != 0 {
		t.Fatalf("expected no writes with an empty watch-list")
	}
}

func TestTask_WriterErrorIsLoggedNotPanicked(t *testing.T) {
	writer := &fakeWriter{err: context.DeadlineExceeded}
	task := newTestTask(t, writer, func() []string { return []string{"MintA"} },
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"name":"A","symbol":"A","price_usd":1}`)
		})

	task.refreshAll(context.Background()) // must not panic even though the writer always errors
}

func TestFetch_TimestampsPriceUpdate(t *testing.T) {
	writer := &fakeWriter{}
	task := newTestTask(t, writer, func() []string { return nil },
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"name":"Token A","symbol":"TKA","price_usd":3.25}`)
		})

	before := time.Now()
	md, err := task.fetch(context.Background(), "MintA")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if md.Mint != "MintA" || md.Symbol != "TKA" || md.PriceUSD != 3.25 {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if md.PriceUpdatedAt.Before(before) {
		t.Errorf("expected PriceUpdatedAt to be set at fetch time")
	}
}
