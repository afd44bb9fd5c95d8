// Package models defines the data types shared between ingestion, the
// pipeline engine, the flush coordinator and the store writer.
package models

import "time"

// SourceProgram identifies the on-chain program that produced a TradeEvent.
type SourceProgram string

const (
	ProgramPumpSwap   SourceProgram = "PumpSwap"
	ProgramBonkSwap   SourceProgram = "BonkSwap"
	ProgramMoonshot   SourceProgram = "Moonshot"
	ProgramJupiterDCA SourceProgram = "JupiterDCA"
	ProgramUnknown    SourceProgram = "Unknown"
)

// Direction is the side of a trade from the perspective of the user account.
type Direction string

const (
	Buy  Direction = "Buy"
	Sell Direction = "Sell"
)

// RollingWindows are the six horizons the engine maintains per mint, in
// ascending order. The engine iterates this array for the per-window
// net-flow loop; the 300s and 14400s windows it also uses directly are
// fixed constants, and no config option changes these durations.
var RollingWindows = [6]int64{60, 300, 900, 3600, 7200, 14400}

// CountedWindows are the windows for which buy/sell counts are tracked.
var CountedWindows = [3]int64{60, 300, 900}

// DCAWindows are the windows for which dca_buys_W is tracked.
var DCAWindows = [5]int64{60, 300, 900, 3600, 14400}

// TradeEvent is the unit of work handed from producers to the ingestion
// channel and, ultimately, to the pipeline engine.
type TradeEvent struct {
	Mint          string
	Signature     string
	SourceProgram SourceProgram
	Direction     Direction
	SolAmount     float64
	TokenAmount   float64
	UserAccount   string
	Timestamp     int64 // seconds since epoch
}

// SignalType enumerates the closed set of qualitative signals the engine
// can emit. Treated as a closed enumeration (see engine/signals.go) rather
// than a pluggable strategy interface.
type SignalType string

const (
	SignalBreakout     SignalType = "BREAKOUT"
	SignalFocused      SignalType = "FOCUSED"
	SignalSurge        SignalType = "SURGE"
	SignalBotDropoff   SignalType = "BOT_DROPOFF"
	SignalDCAConviction SignalType = "DCA_CONVICTION"
)

// AllSignalTypes is the closed set used to seed per-mint hysteresis maps.
var AllSignalTypes = [5]SignalType{
	SignalBreakout, SignalFocused, SignalSurge, SignalBotDropoff, SignalDCAConviction,
}

// AggregateSnapshot is the persisted, per-mint view computed by Engine.ComputeLocked.
type AggregateSnapshot struct {
	Mint          string
	SourceProgram SourceProgram

	NetFlowSol map[int64]float64 // keyed by window seconds, all six windows
	BuyCount   map[int64]int     // keyed by window seconds, 60/300/900 only
	SellCount  map[int64]int     // keyed by window seconds, 60/300/900 only
	DCABuys    map[int64]int     // keyed by window seconds, 60/300/900/3600/14400

	UniqueWallets300s  int
	BotTrades300s      int
	BotWallets300s     int
	AvgTradeSize300sSol float64
	Volume300sSol      float64

	LastTradeTimestamp int64
	UpdatedAt          time.Time
	CreatedAt          time.Time
}

// Signal is an append-only event emitted on an inactive-to-active transition.
type Signal struct {
	ID            int64
	Mint          string
	SignalType    SignalType
	WindowSeconds int64
	Severity      int
	Score         float64
	DetailsJSON   string
	CreatedAt     time.Time
}

// BlocklistEntry marks a mint whose signals must not reach the store.
type BlocklistEntry struct {
	Mint      string
	Reason    string
	BlockedBy string
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = permanent
}

// Active reports whether the entry currently blocks signal writes.
func (b BlocklistEntry) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// TokenMetadata is written only by the enrichment task (internal/metadata)
// and never read or written by the engine or the flush coordinator.
type TokenMetadata struct {
	Mint           string
	Name           string
	Symbol         string
	PriceUSD       float64
	PriceUpdatedAt time.Time
	Source         string
}

// DCABucket is one minute-granularity bucket of the optional DCA sparkline.
type DCABucket struct {
	Mint            string
	BucketTimestamp int64 // floor(t/60)*60
	Count           int
}
