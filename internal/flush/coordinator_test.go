package flush

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"solflow/internal/blocklist"
	"solflow/internal/engine"
	"solflow/internal/eventbus"
	"solflow/internal/models"
	"solflow/internal/store"
)

type noopBlocklistReader struct{}

func (noopBlocklistReader) ListBlocklist(ctx context.Context) ([]models.BlocklistEntry, error) {
	return nil, nil
}

func newTestCoordinator(t *testing.T, clock func() time.Time) (*Coordinator, *engine.Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "solflow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng := engine.New(clock)
	oracle := blocklist.New(noopBlocklistReader{})
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	c := New(eng, st, oracle, bus, clock, Config{
		DeltaInterval: time.Hour,
		FullInterval:  time.Hour,
		BatchSize:     500,
	})
	return c, eng, st
}

func TestCoordinator_DeltaFlushWritesOnlyTouchedMints(t *testing.T) {
	now := time.Unix(5000, 0)
	clock := func() time.Time { return now }
	c, eng, st := newTestCoordinator(t, clock)

	eng.Ingest(models.TradeEvent{Mint: "MintA", Timestamp: 5000, SolAmount: 1, TokenAmount: 1, UserAccount: "w1"})

	c.deltaFlush(context.Background())

	rows, err := st.ListAggregates(context.Background(), 10)
	if err != nil {
		t.Fatalf("list aggregates: %v", err)
	}
	if len(rows) != 1 || rows[0].Mint != "MintA" {
		t.Fatalf("expected MintA persisted, got %v", rows)
	}

	eng.Lock()
	touched := eng.TouchedLocked()
	eng.Unlock()
	if len(touched) != 0 {
		t.Errorf("expected touched set cleared after delta flush, got %v", touched)
	}
}

func TestCoordinator_FullFlushCoversAllActiveMints(t *testing.T) {
	now := time.Unix(5000, 0)
	clock := func() time.Time { return now }
	c, eng, st := newTestCoordinator(t, clock)

	eng.Ingest(models.TradeEvent{Mint: "MintA", Timestamp: 5000, SolAmount: 1, TokenAmount: 1, UserAccount: "w1"})
	eng.Ingest(models.TradeEvent{Mint: "MintB", Timestamp: 5000, SolAmount: 1, TokenAmount: 1, UserAccount: "w2"})

	c.deltaFlush(context.Background()) // clears touched set
	c.fullFlush(context.Background())  // should still see both mints

	rows, err := st.ListAggregates(context.Background(), 10)
	if err != nil {
		t.Fatalf("list aggregates: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 mints persisted by full flush, got %d", len(rows))
	}
}

func TestCoordinator_BlockedMintSignalIsNotWritten(t *testing.T) {
	now := time.Unix(5000, 0)
	clock := func() time.Time { return now }
	st, err := store.Open(filepath.Join(t.TempDir(), "solflow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	blockedReader := fakeBlockedReader{mint: "MintBlocked"}
	oracle := blocklist.New(blockedReader)
	oracle.Refresh(context.Background())

	eng := engine.New(clock)
	bus := eventbus.New()
	defer bus.Close()
	c := New(eng, st, oracle, bus, clock, Config{DeltaInterval: time.Hour, FullInterval: time.Hour, BatchSize: 500})

	sig := models.Signal{Mint: "MintBlocked", SignalType: models.SignalSurge, WindowSeconds: 60, CreatedAt: now}
	c.write(context.Background(), nil, []models.Signal{sig})

	rows, err := st.ListRecentSignals(context.Background(), "MintBlocked", 10)
	if err != nil {
		t.Fatalf("list signals: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected blocklisted mint's signal to be dropped, got %d rows", len(rows))
	}
}

type fakeBlockedReader struct{ mint string }

func (f fakeBlockedReader) ListBlocklist(ctx context.Context) ([]models.BlocklistEntry, error) {
	return []models.BlocklistEntry{{Mint: f.mint}}, nil
}
