// Package store implements SolFlow's embedded relational store: a
// single-writer, WAL-mode SQLite database holding the aggregates table
// and the append-only signals log, grounded on
// Klingon-tech-klingdex/internal/storage/storage.go for the embedded-WAL
// connection shape and on the teacher's internal/repository.Repository
// for the batched-UPSERT-inside-a-transaction discipline.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"solflow/internal/logging"
	"solflow/internal/models"
)

// Store wraps a single *sql.DB configured for exactly one writer
// connection. SQLite only supports one writer at a time; WAL mode lets
// readers proceed concurrently with that writer.
type Store struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (creating if necessary) the embedded database at path and
// runs idempotent schema creation. Schema failure at startup is fatal per
// spec section 7 — the caller should treat a non-nil error as
// unrecoverable.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &Store{db: db, log: logging.New("Store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertAggregatesBatch writes snapshots in transactions of at most
// batchSize rows (spec section 4.3/4.8 default 500). Each transaction
// either commits every row in it or none (testable property 8): a
// mid-batch failure rolls back the whole chunk rather than leaving
// partial writes.
func (s *Store) UpsertAggregatesBatch(ctx context.Context, snapshots []models.AggregateSnapshot, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	for start := 0; start < len(snapshots); start += batchSize {
		end := start + batchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		if err := s.upsertChunk(ctx, snapshots[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertChunk(ctx context.Context, chunk []models.AggregateSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertAggregateSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, snap := range chunk {
		createdAt := snap.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := stmt.ExecContext(ctx,
			snap.Mint, string(snap.SourceProgram),
			snap.NetFlowSol[60], snap.NetFlowSol[300], snap.NetFlowSol[900],
			snap.NetFlowSol[3600], snap.NetFlowSol[7200], snap.NetFlowSol[14400],
			snap.BuyCount[60], snap.SellCount[60],
			snap.BuyCount[300], snap.SellCount[300],
			snap.BuyCount[900], snap.SellCount[900],
			snap.DCABuys[60], snap.DCABuys[300], snap.DCABuys[900], snap.DCABuys[3600], snap.DCABuys[14400],
			snap.UniqueWallets300s, snap.BotTrades300s, snap.BotWallets300s,
			snap.AvgTradeSize300sSol, snap.Volume300sSol,
			snap.LastTradeTimestamp, snap.UpdatedAt, createdAt,
		)
		if err != nil {
			return fmt.Errorf("exec upsert for mint %s: %w", snap.Mint, err)
		}
	}

	return tx.Commit()
}

const upsertAggregateSQL = `
INSERT INTO aggregates (
	mint, source_program,
	net_flow_60_sol, net_flow_300_sol, net_flow_900_sol, net_flow_3600_sol, net_flow_7200_sol, net_flow_14400_sol,
	buy_count_60, sell_count_60, buy_count_300, sell_count_300, buy_count_900, sell_count_900,
	dca_buys_60, dca_buys_300, dca_buys_900, dca_buys_3600, dca_buys_14400,
	unique_wallets_300s, bot_trades_300s, bot_wallets_300s, avg_trade_size_300s_sol, volume_300s_sol,
	last_trade_timestamp, updated_at, created_at
) VALUES (?,?, ?,?,?,?,?,?, ?,?,?,?,?,?, ?,?,?,?,?, ?,?,?,?,?, ?,?,?)
ON CONFLICT(mint) DO UPDATE SET
	source_program = excluded.source_program,
	net_flow_60_sol = excluded.net_flow_60_sol,
	net_flow_300_sol = excluded.net_flow_300_sol,
	net_flow_900_sol = excluded.net_flow_900_sol,
	net_flow_3600_sol = excluded.net_flow_3600_sol,
	net_flow_7200_sol = excluded.net_flow_7200_sol,
	net_flow_14400_sol = excluded.net_flow_14400_sol,
	buy_count_60 = excluded.buy_count_60,
	sell_count_60 = excluded.sell_count_60,
	buy_count_300 = excluded.buy_count_300,
	sell_count_300 = excluded.sell_count_300,
	buy_count_900 = excluded.buy_count_900,
	sell_count_900 = excluded.sell_count_900,
	dca_buys_60 = excluded.dca_buys_60,
	dca_buys_300 = excluded.dca_buys_300,
	dca_buys_900 = excluded.dca_buys_900,
	dca_buys_3600 = excluded.dca_buys_3600,
	dca_buys_14400 = excluded.dca_buys_14400,
	unique_wallets_300s = excluded.unique_wallets_300s,
	bot_trades_300s = excluded.bot_trades_300s,
	bot_wallets_300s = excluded.bot_wallets_300s,
	avg_trade_size_300s_sol = excluded.avg_trade_size_300s_sol,
	volume_300s_sol = excluded.volume_300s_sol,
	last_trade_timestamp = excluded.last_trade_timestamp,
	updated_at = excluded.updated_at
`

// WriteSignal inserts a single signal row. Signals are written
// individually (not batched) per spec section 4.3, and only after the
// caller has confirmed the mint is not blocklisted.
func (s *Store) WriteSignal(ctx context.Context, sig models.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (mint, signal_type, window_seconds, severity, score, details_json, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		sig.Mint, string(sig.SignalType), sig.WindowSeconds, sig.Severity, sig.Score, sig.DetailsJSON, sig.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert signal for mint %s: %w", sig.Mint, err)
	}
	return nil
}

// ListBlocklist implements blocklist.Reader.
func (s *Store) ListBlocklist(ctx context.Context) ([]models.BlocklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mint, reason, blocked_by, created_at, expires_at FROM blocklist`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BlocklistEntry
	for rows.Next() {
		var e models.BlocklistEntry
		var expiresAt sql.NullTime
		if err := rows.Scan(&e.Mint, &e.Reason, &e.BlockedBy, &e.CreatedAt, &expiresAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			e.ExpiresAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertTokenMetadata is the enrichment task's sole write path — never
// called by the engine or flush coordinator.
func (s *Store) UpsertTokenMetadata(ctx context.Context, md models.TokenMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_metadata (mint, name, symbol, price_usd, price_updated_at, source)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(mint) DO UPDATE SET
			name = excluded.name,
			symbol = excluded.symbol,
			price_usd = excluded.price_usd,
			price_updated_at = excluded.price_updated_at,
			source = excluded.source`,
		md.Mint, md.Name, md.Symbol, md.PriceUSD, md.PriceUpdatedAt, md.Source)
	return err
}

// UpsertDCABucket writes one minute-granularity DCA sparkline bucket.
func (s *Store) UpsertDCABucket(ctx context.Context, bucket models.DCABucket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dca_buckets (mint, bucket_timestamp, count)
		VALUES (?,?,?)
		ON CONFLICT(mint, bucket_timestamp) DO UPDATE SET count = excluded.count`,
		bucket.Mint, bucket.BucketTimestamp, bucket.Count)
	return err
}

// CleanDCABuckets deletes buckets older than the retention window (spec
// section 4.10, default 7200s).
func (s *Store) CleanDCABuckets(ctx context.Context, now time.Time, retentionSeconds int64) (int64, error) {
	cutoff := now.Unix() - retentionSeconds
	res, err := s.db.ExecContext(ctx, `DELETE FROM dca_buckets WHERE bucket_timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
