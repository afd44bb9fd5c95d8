package pruner

import (
	"context"
	"testing"
	"time"

	"solflow/internal/engine"
	"solflow/internal/models"
)

func TestPruner_RunEvictsInactiveMints(t *testing.T) {
	now := time.Unix(100000, 0)
	clock := func() time.Time { return now }
	eng := engine.New(clock)
	eng.Ingest(models.TradeEvent{Mint: "MintStale", Timestamp: now.Unix() - 7200, SolAmount: 1, TokenAmount: 1, UserAccount: "w1"})
	eng.Ingest(models.TradeEvent{Mint: "MintFresh", Timestamp: now.Unix(), SolAmount: 1, TokenAmount: 1, UserAccount: "w2"})

	p := New(eng, clock, time.Hour, time.Minute)
	p.run()

	eng.Lock()
	mints := eng.ActiveMintsLocked()
	eng.Unlock()

	if len(mints) != 1 || mints[0] != "MintFresh" {
		t.Fatalf("expected only MintFresh to survive pruning, got %v", mints)
	}
}

func TestPruner_StartStopsOnContextCancel(t *testing.T) {
	now := time.Unix(100000, 0)
	clock := func() time.Time { return now }
	eng := engine.New(clock)

	p := New(eng, clock, time.Hour, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond) // give runLoop time to observe ctx.Done and return
}
