package producers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"solflow/internal/models"
)

type fakeStream struct {
	updates []TransactionUpdate
	idx     int
}

func (f *fakeStream) Recv() (*TransactionUpdate, error) {
	if f.idx >= len(f.updates) {
		return nil, io.EOF
	}
	u := f.updates[f.idx]
	f.idx++
	return &u, nil
}

type fakeClient struct {
	stream *fakeStream
}

func (f *fakeClient) SubscribeTransactions(ctx context.Context, programID, commitment string) (TransactionStream, error) {
	return f.stream, nil
}

type fakeSink struct {
	mu     sync.Mutex
	trades []models.TradeEvent
}

func (s *fakeSink) Send(trade models.TradeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
}

func (s *fakeSink) all() []models.TradeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TradeEvent, len(s.trades))
	copy(out, s.trades)
	return out
}

func buySwap() TransactionUpdate {
	return TransactionUpdate{
		SignatureBytes: []byte("sig1"),
		BlockTime: 1000,
		Accounts:  []string{"11111111111111111111111111111111"},
		PreBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 5_000_000_000},
			{AccountIndex: 0, Mint: "Mint1111111111111111111111111111111111111", Amount: 0, Decimals: 6},
		},
		PostBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 4_000_000_000},
			{AccountIndex: 0, Mint: "Mint1111111111111111111111111111111111111", Amount: 1_000_000, Decimals: 6},
		},
	}
}

func TestProducer_DecodesBuy(t *testing.T) {
	sink := &fakeSink{}
	client := &fakeClient{stream: &fakeStream{updates: []TransactionUpdate{buySwap()}}}
	p := New(client, models.ProgramPumpSwap, TrackedPrograms[models.ProgramPumpSwap], sink)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	trades := sink.all()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Direction != models.Buy {
		t.Errorf("expected Buy, got %s", tr.Direction)
	}
	if tr.Mint != "Mint1111111111111111111111111111111111111" {
		t.Errorf("unexpected mint: %s", tr.Mint)
	}
	if tr.SolAmount != 1.0 {
		t.Errorf("expected 1.0 SOL, got %f", tr.SolAmount)
	}
	if tr.TokenAmount != 1.0 {
		t.Errorf("expected 1.0 tokens, got %f", tr.TokenAmount)
	}
	if tr.SourceProgram != models.ProgramPumpSwap {
		t.Errorf("unexpected source program: %s", tr.SourceProgram)
	}
}

func sellSwap() TransactionUpdate {
	return TransactionUpdate{
		SignatureBytes: []byte("sig2"),
		BlockTime: 2000,
		Accounts:  []string{"11111111111111111111111111111111"},
		PreBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 4_000_000_000},
			{AccountIndex: 0, Mint: "Mint2222222222222222222222222222222222222", Amount: 1_000_000, Decimals: 6},
		},
		PostBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 4_500_000_000},
			{AccountIndex: 0, Mint: "Mint2222222222222222222222222222222222222", Amount: 500_000, Decimals: 6},
		},
	}
}

func TestProducer_DecodesSell(t *testing.T) {
	sink := &fakeSink{}
	client := &fakeClient{stream: &fakeStream{updates: []TransactionUpdate{sellSwap()}}}
	p := New(client, models.ProgramBonkSwap, TrackedPrograms[models.ProgramBonkSwap], sink)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	trades := sink.all()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Direction != models.Sell {
		t.Errorf("expected Sell, got %s", trades[0].Direction)
	}
}

func TestProducer_WrappedSolOnlyIsNoop(t *testing.T) {
	update := TransactionUpdate{
		SignatureBytes: []byte("sig3"),
		BlockTime: 3000,
		Accounts:  []string{"11111111111111111111111111111111"},
		PreBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 1_000_000_000},
			{AccountIndex: 0, Mint: "So11111111111111111111111111111111111111112", Amount: 2_000_000_000, Decimals: 9},
		},
		PostBalances: []BalanceEntry{
			{AccountIndex: 0, Mint: "", Amount: 2_000_000_000},
			{AccountIndex: 0, Mint: "So11111111111111111111111111111111111111112", Amount: 1_000_000_000, Decimals: 9},
		},
	}
	sink := &fakeSink{}
	client := &fakeClient{stream: &fakeStream{updates: []TransactionUpdate{update}}}
	p := New(client, models.ProgramMoonshot, TrackedPrograms[models.ProgramMoonshot], sink)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if len(sink.all()) != 0 {
		t.Fatalf("expected no trades for wrapped-SOL-only transaction, got %d", len(sink.all()))
	}
}

func TestProducer_ZeroSolDeltaIsNoop(t *testing.T) {
	update := TransactionUpdate{
		SignatureBytes: []byte("sig4"),
		BlockTime:    4000,
		Accounts:     []string{"11111111111111111111111111111111"},
		PreBalances:  []BalanceEntry{{AccountIndex: 0, Mint: "", Amount: 1_000_000_000}},
		PostBalances: []BalanceEntry{{AccountIndex: 0, Mint: "", Amount: 1_000_000_000}},
	}
	sink := &fakeSink{}
	client := &fakeClient{stream: &fakeStream{updates: []TransactionUpdate{update}}}
	p := New(client, models.ProgramMoonshot, TrackedPrograms[models.ProgramMoonshot], sink)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if len(sink.all()) != 0 {
		t.Fatalf("expected no trades for zero sol delta, got %d", len(sink.all()))
	}
}

func TestProducer_MalformedAccountIsSkipped(t *testing.T) {
	update := buySwap()
	update.Accounts = []string{"not-a-valid-base58-pubkey!!"}
	sink := &fakeSink{}
	client := &fakeClient{stream: &fakeStream{updates: []TransactionUpdate{update}}}
	p := New(client, models.ProgramPumpSwap, TrackedPrograms[models.ProgramPumpSwap], sink)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if len(sink.all()) != 0 {
		t.Fatalf("expected malformed account to be skipped, got %d trades", len(sink.all()))
	}
}
