package engine

import (
	"encoding/json"
	"math"
	"time"

	"solflow/internal/models"
)

// signalSpec pairs a signal type with its window and severity, per the
// closed enumeration of spec section 4.5. Signals are a closed set with
// per-variant predicates, not pluggable strategies: adding a new signal
// type means editing this file, not registering a new implementation.
type signalSpec struct {
	window   int64
	severity int
}

var signalSpecs = map[models.SignalType]signalSpec{
	models.SignalBreakout:      {window: 60, severity: 3},
	models.SignalSurge:         {window: 60, severity: 3},
	models.SignalFocused:       {window: 300, severity: 4},
	models.SignalBotDropoff:    {window: 300, severity: 3},
	models.SignalDCAConviction: {window: 60, severity: 2},
}

// detectSignals evaluates every signal predicate against snap (and, for
// BOT_DROPOFF, the previous tick's bot wallet count held on st), applies
// per-mint hysteresis, and returns only the signals whose condition made
// an inactive-to-active transition this cycle.
func detectSignals(st *tokenState, snap models.AggregateSnapshot, trades300 []models.TradeEvent, nonBotWalletCount int, now time.Time) []models.Signal {
	tradeCount300 := len(trades300)

	br60 := branchRatio(snap.BuyCount[60], snap.SellCount[60])

	var concentration, botRatio float64
	if tradeCount300 > 0 {
		concentration = 1 - float64(snap.UniqueWallets300s)/float64(tradeCount300)
		botRatio = float64(snap.BotTrades300s) / float64(tradeCount300)
	}

	dcaTrades, spotTrades := splitDCA(trades300)
	var dcaOverlap float64
	if len(dcaTrades) > 0 {
		matched := 0
		for _, d := range dcaTrades {
			for _, s := range spotTrades {
				if abs64(d.Timestamp-s.Timestamp) <= 60 {
					matched++
					break
				}
			}
		}
		dcaOverlap = float64(matched) / float64(len(dcaTrades))
	}

	nonBotGrowth := nonBotWalletCount - st.prevNonBotWalletCount

	cond := map[models.SignalType]bool{
		models.SignalBreakout: snap.NetFlowSol[60] > 5.0 &&
			snap.UniqueWallets300s >= 5 &&
			br60 > 0.75,

		models.SignalSurge: math.Abs(snap.NetFlowSol[60]) >= 3*(math.Abs(snap.NetFlowSol[300])/5) &&
			snap.BuyCount[60] >= 10 &&
			snap.NetFlowSol[60] > 8.0,

		models.SignalFocused: tradeCount300 > 0 &&
			concentration > 0.7 &&
			snap.Volume300sSol > 3.0 &&
			botRatio < 0.2,

		models.SignalBotDropoff: st.prevBotWalletCount >= 5 &&
			snap.BotWallets300s <= int(float64(st.prevBotWalletCount)*0.5) &&
			nonBotGrowth >= 3,

		models.SignalDCAConviction: len(dcaTrades) > 0 &&
			dcaOverlap > 0.25 &&
			snap.NetFlowSol[60] > 0,
	}

	score := map[models.SignalType]float64{
		models.SignalBreakout:      snap.NetFlowSol[60],
		models.SignalSurge:         snap.NetFlowSol[60],
		models.SignalFocused:       concentration,
		models.SignalBotDropoff:    float64(st.prevBotWalletCount - snap.BotWallets300s),
		models.SignalDCAConviction: dcaOverlap,
	}

	var emitted []models.Signal
	for _, sigType := range models.AllSignalTypes {
		active := st.signalActive[sigType]
		c := cond[sigType]

		switch {
		case c && !active:
			spec := signalSpecs[sigType]
			details, _ := json.Marshal(signalDetails(sigType, snap, concentration, botRatio, dcaOverlap))
			emitted = append(emitted, models.Signal{
				Mint:          snap.Mint,
				SignalType:    sigType,
				WindowSeconds: spec.window,
				Severity:      spec.severity,
				Score:         score[sigType],
				DetailsJSON:   string(details),
				CreatedAt:     now,
			})
			st.signalActive[sigType] = true
		case c && active:
			// condition holds but already active: no emission
		case !c:
			st.signalActive[sigType] = false
		}
	}
	return emitted
}

func signalDetails(sigType models.SignalType, snap models.AggregateSnapshot, concentration, botRatio, dcaOverlap float64) map[string]interface{} {
	switch sigType {
	case models.SignalBreakout, models.SignalSurge:
		return map[string]interface{}{
			"net_flow_60_sol":    snap.NetFlowSol[60],
			"net_flow_300_sol":   snap.NetFlowSol[300],
			"unique_wallets_300": snap.UniqueWallets300s,
		}
	case models.SignalFocused:
		return map[string]interface{}{
			"concentration":    concentration,
			"volume_300_sol":   snap.Volume300sSol,
			"bot_trade_ratio":  botRatio,
		}
	case models.SignalBotDropoff:
		return map[string]interface{}{
			"bot_wallets_300": snap.BotWallets300s,
		}
	case models.SignalDCAConviction:
		return map[string]interface{}{
			"dca_overlap":   dcaOverlap,
			"net_flow_60":   snap.NetFlowSol[60],
		}
	default:
		return nil
	}
}

func splitDCA(trades300 []models.TradeEvent) (dca, spot []models.TradeEvent) {
	for _, t := range trades300 {
		if t.SourceProgram == models.ProgramJupiterDCA {
			dca = append(dca, t)
		} else {
			spot = append(spot, t)
		}
	}
	return dca, spot
}

func branchRatio(buy, sell int) float64 {
	if buy+sell == 0 {
		return 0
	}
	return float64(buy) / float64(buy+sell)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
