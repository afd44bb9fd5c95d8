package store

import (
	"context"

	"solflow/internal/models"
)

// ListAggregates returns up to limit aggregate rows ordered by most
// recently updated, for the dashboard API. This is the one place the
// per-window columns are reassembled back into the map-shaped
// AggregateSnapshot the rest of the codebase works with.
func (s *Store) ListAggregates(ctx context.Context, limit int) ([]models.AggregateSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mint, source_program,
			net_flow_60_sol, net_flow_300_sol, net_flow_900_sol, net_flow_3600_sol, net_flow_7200_sol, net_flow_14400_sol,
			buy_count_60, sell_count_60, buy_count_300, sell_count_300, buy_count_900, sell_count_900,
			dca_buys_60, dca_buys_300, dca_buys_900, dca_buys_3600, dca_buys_14400,
			unique_wallets_300s, bot_trades_300s, bot_wallets_300s, avg_trade_size_300s_sol, volume_300s_sol,
			last_trade_timestamp, updated_at, created_at
		FROM aggregates
		ORDER BY updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AggregateSnapshot
	for rows.Next() {
		var snap models.AggregateSnapshot
		var sourceProgram string
		var nf60, nf300, nf900, nf3600, nf7200, nf14400 float64
		var buy60, sell60, buy300, sell300, buy900, sell900 int
		var dca60, dca300, dca900, dca3600, dca14400 int

		if err := rows.Scan(
			&snap.Mint, &sourceProgram,
			&nf60, &nf300, &nf900, &nf3600, &nf7200, &nf14400,
			&buy60, &sell60, &buy300, &sell300, &buy900, &sell900,
			&dca60, &dca300, &dca900, &dca3600, &dca14400,
			&snap.UniqueWallets300s, &snap.BotTrades300s, &snap.BotWallets300s,
			&snap.AvgTradeSize300sSol, &snap.Volume300sSol,
			&snap.LastTradeTimestamp, &snap.UpdatedAt, &snap.CreatedAt,
		); err != nil {
			return nil, err
		}

		snap.SourceProgram = models.SourceProgram(sourceProgram)
		snap.NetFlowSol = map[int64]float64{60: nf60, 300: nf300, 900: nf900, 3600: nf3600, 7200: nf7200, 14400: nf14400}
		snap.BuyCount = map[int64]int{60: buy60, 300: buy300, 900: buy900}
		snap.SellCount = map[int64]int{60: sell60, 300: sell300, 900: sell900}
		snap.DCABuys = map[int64]int{60: dca60, 300: dca300, 900: dca900, 3600: dca3600, 14400: dca14400}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// ListRecentSignals returns up to limit signal rows, optionally filtered
// to one mint, newest first.
func (s *Store) ListRecentSignals(ctx context.Context, mint string, limit int) ([]models.Signal, error) {
	query := `SELECT id, mint, signal_type, window_seconds, severity, score, details_json, created_at FROM signals`
	args := []interface{}{}
	if mint != "" {
		query += ` WHERE mint = ?`
		args = append(args, mint)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var sig models.Signal
		var signalType string
		if err := rows.Scan(&sig.ID, &sig.Mint, &signalType, &sig.WindowSeconds, &sig.Severity, &sig.Score, &sig.DetailsJSON, &sig.CreatedAt); err != nil {
			return nil, err
		}
		sig.SignalType = models.SignalType(signalType)
		out = append(out, sig)
	}
	return out, rows.Err()
}
