package store

// schema is executed verbatim on startup, the same idempotent
// create-if-not-exists pattern as the teacher's repository.Migrate and
// Klingon-tech-klingdex's storage.initSchema: every statement is safe to
// run against an already-initialized database, so schema creation is run
// unconditionally rather than gated behind a migration-version table.
const schema = `
CREATE TABLE IF NOT EXISTS aggregates (
	mint                 TEXT PRIMARY KEY,
	source_program       TEXT NOT NULL,

	net_flow_60_sol      REAL NOT NULL DEFAULT 0,
	net_flow_300_sol     REAL NOT NULL DEFAULT 0,
	net_flow_900_sol     REAL NOT NULL DEFAULT 0,
	net_flow_3600_sol    REAL NOT NULL DEFAULT 0,
	net_flow_7200_sol    REAL NOT NULL DEFAULT 0,
	net_flow_14400_sol   REAL NOT NULL DEFAULT 0,

	buy_count_60         INTEGER NOT NULL DEFAULT 0,
	sell_count_60        INTEGER NOT NULL DEFAULT 0,
	buy_count_300        INTEGER NOT NULL DEFAULT 0,
	sell_count_300       INTEGER NOT NULL DEFAULT 0,
	buy_count_900        INTEGER NOT NULL DEFAULT 0,
	sell_count_900       INTEGER NOT NULL DEFAULT 0,

	dca_buys_60          INTEGER NOT NULL DEFAULT 0,
	dca_buys_300         INTEGER NOT NULL DEFAULT 0,
	dca_buys_900         INTEGER NOT NULL DEFAULT 0,
	dca_buys_3600        INTEGER NOT NULL DEFAULT 0,
	dca_buys_14400       INTEGER NOT NULL DEFAULT 0,

	unique_wallets_300s      INTEGER NOT NULL DEFAULT 0,
	bot_trades_300s          INTEGER NOT NULL DEFAULT 0,
	bot_wallets_300s         INTEGER NOT NULL DEFAULT 0,
	avg_trade_size_300s_sol  REAL NOT NULL DEFAULT 0,
	volume_300s_sol          REAL NOT NULL DEFAULT 0,

	last_trade_timestamp INTEGER NOT NULL DEFAULT 0,
	updated_at           DATETIME NOT NULL,
	created_at           DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_aggregates_updated_at ON aggregates (updated_at);
CREATE INDEX IF NOT EXISTS idx_aggregates_source_program ON aggregates (source_program);
CREATE INDEX IF NOT EXISTS idx_aggregates_net_flow_300 ON aggregates (net_flow_300_sol DESC);
CREATE INDEX IF NOT EXISTS idx_aggregates_dca_buys_3600 ON aggregates (dca_buys_3600 DESC);

CREATE TABLE IF NOT EXISTS signals (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	mint           TEXT NOT NULL,
	signal_type    TEXT NOT NULL,
	window_seconds INTEGER NOT NULL,
	severity       INTEGER NOT NULL,
	score          REAL NOT NULL,
	details_json   TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_mint_created ON signals (mint, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_type_created ON signals (signal_type, created_at DESC);

CREATE TABLE IF NOT EXISTS blocklist (
	mint       TEXT PRIMARY KEY,
	reason     TEXT NOT NULL DEFAULT '',
	blocked_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS token_metadata (
	mint             TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	symbol           TEXT NOT NULL DEFAULT '',
	price_usd        REAL NOT NULL DEFAULT 0,
	price_updated_at DATETIME,
	source           TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dca_buckets (
	mint             TEXT NOT NULL,
	bucket_timestamp INTEGER NOT NULL,
	count            INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (mint, bucket_timestamp)
);
`
