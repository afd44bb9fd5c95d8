// Package producers implements the per-program trade producers of spec
// section 2 item 8: thin processors that turn transaction balance-delta
// metadata into TradeEvents and push them onto the ingestion channel via
// non-blocking send. Full Cadence/Borsh instruction decoding is outside
// this package's scope (spec section 1) — it consumes a pre/post balance
// view already extracted by the upstream gRPC source.
package producers

import "solflow/internal/models"

// TrackedPrograms maps each source program SolFlow recognizes to its
// on-chain program id, grounded on the program-id vocabulary used across
// the pack's Solana indexers (constants.ProgramAddresses in
// aman-zulfiqar-solana-swap-indexer). Producers subscribe per-program, so
// this is also the producer fan-out list.
var TrackedPrograms = map[models.SourceProgram]string{
	models.ProgramPumpSwap:   "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
	models.ProgramBonkSwap:   "BSwp6bEBihVLdqJRKGgzjcGLHkcTuzmSo1TQkHepzH8p",
	models.ProgramMoonshot:   "MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG",
	models.ProgramJupiterDCA: "DCA265Vj8a9CEuX1eb1LWRnDT7uK6q1xMipnNyatn23M",
}

// BalanceEntry is one account's balance for a single mint at one point in
// a transaction (pre or post). Mint == "" represents native SOL.
type BalanceEntry struct {
	AccountIndex int
	Mint         string
	Amount       uint64
	Decimals     uint8
}

// TransactionUpdate is the pre/post balance view the upstream gRPC source
// is assumed to deliver (spec section 6): everything needed to compute a
// BalanceDelta without re-parsing instruction data. SignatureBytes mirrors
// the raw 64-byte signature a Geyser plugin actually hands back over the
// wire; producers re-encode it to the base58 form every downstream
// consumer (store, API, dashboard) expects.
type TransactionUpdate struct {
	SignatureBytes []byte
	Slot           uint64
	BlockTime      int64
	Accounts       []string // base58 pubkeys, index-aligned with balance entries
	PreBalances    []BalanceEntry
	PostBalances   []BalanceEntry
}
