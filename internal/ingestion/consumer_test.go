package ingestion

import (
	"context"
	"testing"
	"time"

	"solflow/internal/engine"
	"solflow/internal/models"
)

func TestConsumer_IngestsTradesFromChannel(t *testing.T) {
	channel := NewChannel(10)
	eng := engine.New(func() time.Time { return time.Unix(1000, 0) })
	consumer := NewConsumer(channel, eng)

	channel.Send(models.TradeEvent{Mint: "MintA", Timestamp: 1000, SolAmount: 1, TokenAmount: 1, UserAccount: "w1"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	consumer.Run(ctx)

	eng.Lock()
	mints := eng.ActiveMintsLocked()
	eng.Unlock()
	if len(mints) != 1 || mints[0] != "MintA" {
		t.Fatalf("expected engine to have ingested MintA, got %v", mints)
	}
}

func TestConsumer_DrainsRemainingOnShutdown(t *testing.T) {
	channel := NewChannel(10)
	eng := engine.New(func() time.Time { return time.Unix(1000, 0) })
	consumer := NewConsumer(channel, eng)

	for i := 0; i < 5; i++ {
		channel.Send(models.TradeEvent{Mint: "MintB", Timestamp: 1000, SolAmount: 1, TokenAmount: 1, UserAccount: "w1"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled: Run should drain then return immediately
	consumer.Run(ctx)

	eng.Lock()
	snap, _, ok := eng.ComputeLocked("MintB", time.Unix(1000, 0))
	eng.Unlock()
	if !ok {
		t.Fatalf("expected MintB to have been ingested via drain")
	}
	if snap.BuyCount[60]+snap.SellCount[60] != 5 {
		t.Errorf("expected 5 trades drained, got %d", snap.BuyCount[60]+snap.SellCount[60])
	}
}
