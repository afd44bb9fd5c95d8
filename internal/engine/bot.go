package engine

import "solflow/internal/models"

// classifyBots applies the four bot heuristics of spec section 4.4 to the
// 300s window and returns the classified wallet set plus the count of
// trades belonging to any classified wallet. Rebuilt from scratch on every
// call — not cached across ticks, per spec.
func classifyBots(trades300 []models.TradeEvent) (map[string]struct{}, int) {
	byWallet := make(map[string][]models.TradeEvent)
	for _, t := range trades300 {
		if t.UserAccount == "" {
			continue
		}
		byWallet[t.UserAccount] = append(byWallet[t.UserAccount], t)
	}

	bots := make(map[string]struct{})
	for wallet, trades := range byWallet {
		if isBotWallet(trades) {
			bots[wallet] = struct{}{}
		}
	}

	botTradeCount := 0
	for _, t := range trades300 {
		if t.UserAccount == "" {
			continue
		}
		if _, ok := bots[t.UserAccount]; ok {
			botTradeCount++
		}
	}
	return bots, botTradeCount
}

// isBotWallet reports whether a single wallet's trades (already in
// ascending timestamp order, being a subsequence of the mint's ordered
// trade slice) satisfy any of the four bot heuristics.
func isBotWallet(trades []models.TradeEvent) bool {
	if len(trades) > 10 {
		return true
	}

	for i := 0; i+2 < len(trades); i++ {
		if trades[i+2].Timestamp-trades[i].Timestamp <= 1 {
			return true
		}
	}

	if len(trades) >= 4 {
		pairs := len(trades) - 1

		flips := 0
		identical := 0
		for i := 1; i < len(trades); i++ {
			if trades[i].Direction != trades[i-1].Direction {
				flips++
			}
			if trades[i].SolAmount == trades[i-1].SolAmount {
				identical++
			}
		}
		if float64(flips)/float64(pairs) > 0.7 {
			return true
		}
		if float64(identical)/float64(pairs) > 0.5 {
			return true
		}
	}

	return false
}
