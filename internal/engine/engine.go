// Package engine implements the pipeline engine: the single exclusive-lock
// guarded map of per-mint rolling window state, described in spec section
// 4.2. All mutation — ingestion, metric computation, pruning — happens
// under Engine's lock; callers acquire it explicitly via Lock/Unlock so the
// flush coordinator can cover many mints with one acquisition per tick.
package engine

import (
	"sort"
	"sync"
	"time"

	"solflow/internal/models"
)

const maxWindowSeconds = 14400

// tokenState is the per-mint rolling window state. It is stored by value
// under its owning key in Engine.states; no back-references exist so
// lookup is always by mint id, per the design notes.
type tokenState struct {
	// trades holds every trade still inside the widest (14400s) window, in
	// ascending timestamp order. The six per-window "queues" described by
	// the spec are suffixes of this single slice, sliced on demand by
	// windowSlice rather than maintained as six independently-evicted
	// structures — they are the same multiset of trades viewed at six
	// different cutoffs, so deriving them lazily is equivalent and avoids
	// keeping six copies in sync.
	trades []models.TradeEvent

	lastSeenTs    int64
	sourceProgram models.SourceProgram

	signalActive map[models.SignalType]bool

	prevBotWalletCount    int
	prevNonBotWalletCount int
}

func newTokenState() *tokenState {
	return &tokenState{signalActive: make(map[models.SignalType]bool, len(models.AllSignalTypes))}
}

// Engine owns all TokenRollingState instances and the touched-mints set.
type Engine struct {
	mu      sync.Mutex
	clock   func() time.Time
	states  map[string]*tokenState
	touched map[string]struct{}
}

// New constructs an Engine. clock is injected rather than reading the
// system clock directly so tests can drive deterministic timestamps.
func New(clock func() time.Time) *Engine {
	return &Engine{
		clock:   clock,
		states:  make(map[string]*tokenState),
		touched: make(map[string]struct{}),
	}
}

// Lock and Unlock expose the engine's exclusive lock directly. The flush
// coordinator calls Lock once per tick, performs every ComputeLocked call
// for that tick's mints, then calls Unlock before any store I/O — store
// writes must never happen while the lock is held (spec invariant 6).
func (e *Engine) Lock()   { e.mu.Lock() }
func (e *Engine) Unlock() { e.mu.Unlock() }

// Ingest locates or creates the rolling state for trade.Mint, appends the
// trade, updates bookkeeping and marks the mint touched. Ingest never
// fails; all engine mutation is pure in-memory.
func (e *Engine) Ingest(trade models.TradeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nowSec := e.clock().Unix()
	if trade.Timestamp > nowSec+60 {
		trade.Timestamp = nowSec
	}

	st, ok := e.states[trade.Mint]
	if !ok {
		st = newTokenState()
		e.states[trade.Mint] = st
	}
	// Insert after every trade with an equal or earlier timestamp so
	// st.trades stays in ascending order even when trades arrive late.
	idx := sort.Search(len(st.trades), func(i int) bool {
		return st.trades[i].Timestamp > trade.Timestamp
	})
	st.trades = append(st.trades, models.TradeEvent{})
	copy(st.trades[idx+1:], st.trades[idx:])
	st.trades[idx] = trade
	st.lastSeenTs = trade.Timestamp
	st.sourceProgram = trade.SourceProgram
	e.touched[trade.Mint] = struct{}{}
}

// evictLocked drops the prefix of st.trades older than the widest window.
// Must be called with e.mu held.
func evictLocked(st *tokenState, nowSec int64) {
	cutoff := nowSec - maxWindowSeconds
	idx := sort.Search(len(st.trades), func(i int) bool {
		return st.trades[i].Timestamp >= cutoff
	})
	if idx == 0 {
		return
	}
	trimmed := make([]models.TradeEvent, len(st.trades)-idx)
	copy(trimmed, st.trades[idx:])
	st.trades = trimmed
}

// windowSlice returns the suffix of st.trades whose timestamp is within W
// seconds of nowSec. st.trades must already be evicted to the 14400s
// window so the returned slice is always a valid sub-window of it.
func windowSlice(st *tokenState, w int64, nowSec int64) []models.TradeEvent {
	cutoff := nowSec - w
	idx := sort.Search(len(st.trades), func(i int) bool {
		return st.trades[i].Timestamp >= cutoff
	})
	return st.trades[idx:]
}

// ComputeLocked evicts, computes the aggregate snapshot for mint, runs
// signal detection with hysteresis, and returns any signals that
// transitioned inactive to active this cycle. The caller must hold the
// engine lock. The second return is false if mint is not currently
// tracked.
func (e *Engine) ComputeLocked(mint string, now time.Time) (models.AggregateSnapshot, []models.Signal, bool) {
	st, ok := e.states[mint]
	if !ok {
		return models.AggregateSnapshot{}, nil, false
	}

	nowSec := now.Unix()
	evictLocked(st, nowSec)

	snap := models.AggregateSnapshot{
		Mint:          mint,
		SourceProgram: st.sourceProgram,
		NetFlowSol:    make(map[int64]float64, len(models.RollingWindows)),
		BuyCount:      make(map[int64]int, len(models.CountedWindows)),
		SellCount:     make(map[int64]int, len(models.CountedWindows)),
		DCABuys:       make(map[int64]int, len(models.DCAWindows)),
		LastTradeTimestamp: st.lastSeenTs,
		UpdatedAt:     now,
	}

	for _, w := range models.RollingWindows {
		snap.NetFlowSol[w] = netFlow(windowSlice(st, w, nowSec))
	}
	for _, w := range models.CountedWindows {
		buy, sell := counts(windowSlice(st, w, nowSec))
		snap.BuyCount[w] = buy
		snap.SellCount[w] = sell
	}
	for _, w := range models.DCAWindows {
		snap.DCABuys[w] = dcaBuyCount(windowSlice(st, w, nowSec))
	}

	slice300 := windowSlice(st, 300, nowSec)
	wallets300 := uniqueWallets(slice300)
	botWallets, botTradeCount := classifyBots(slice300)

	snap.UniqueWallets300s = len(wallets300)
	snap.BotWallets300s = len(botWallets)
	snap.BotTrades300s = botTradeCount
	snap.Volume300sSol = volume(slice300)
	if len(slice300) > 0 {
		snap.AvgTradeSize300sSol = snap.Volume300sSol / float64(len(slice300))
	}

	nonBotWalletCount := len(wallets300) - len(botWallets)
	signals := detectSignals(st, snap, slice300, nonBotWalletCount, now)

	st.prevBotWalletCount = len(botWallets)
	st.prevNonBotWalletCount = nonBotWalletCount

	return snap, signals, true
}

// TouchedLocked returns the mints touched since the last ClearTouchedLocked
// call. The caller must hold the engine lock.
func (e *Engine) TouchedLocked() []string {
	out := make([]string, 0, len(e.touched))
	for mint := range e.touched {
		out = append(out, mint)
	}
	return out
}

// ClearTouchedLocked resets the touched-mints set. The caller must hold
// the engine lock.
func (e *Engine) ClearTouchedLocked() {
	e.touched = make(map[string]struct{})
}

// ActiveMintsLocked enumerates every mint currently held in memory. The
// caller must hold the engine lock.
func (e *Engine) ActiveMintsLocked() []string {
	out := make([]string, 0, len(e.states))
	for mint := range e.states {
		out = append(out, mint)
	}
	return out
}

// PruneLocked removes every mint whose last-seen timestamp is older than
// threshold from all engine maps and returns the count removed. The
// caller must hold the engine lock.
func (e *Engine) PruneLocked(now time.Time, threshold time.Duration) int {
	cutoff := now.Unix() - int64(threshold/time.Second)
	n := 0
	for mint, st := range e.states {
		if st.lastSeenTs < cutoff {
			delete(e.states, mint)
			delete(e.touched, mint)
			n++
		}
	}
	return n
}

func netFlow(trades []models.TradeEvent) float64 {
	var total float64
	for _, t := range trades {
		if t.Direction == models.Buy {
			total += t.SolAmount
		} else {
			total -= t.SolAmount
		}
	}
	return total
}

func counts(trades []models.TradeEvent) (buy, sell int) {
	for _, t := range trades {
		if t.Direction == models.Buy {
			buy++
		} else {
			sell++
		}
	}
	return buy, sell
}

func dcaBuyCount(trades []models.TradeEvent) int {
	n := 0
	for _, t := range trades {
		if t.SourceProgram == models.ProgramJupiterDCA && t.Direction == models.Buy {
			n++
		}
	}
	return n
}

func volume(trades []models.TradeEvent) float64 {
	var total float64
	for _, t := range trades {
		total += t.SolAmount
	}
	return total
}

func uniqueWallets(trades []models.TradeEvent) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range trades {
		if t.UserAccount != "" {
			out[t.UserAccount] = struct{}{}
		}
	}
	return out
}
