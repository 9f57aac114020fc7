package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"TradeCore/internal/domain/models"
)

// GetStats summarizes realized and unrealized performance. Funding records
// count towards the capital base, never towards trades or PnL.
func (l *PaperLedger) GetStats(ctx context.Context) (models.AccountStats, error) {
	view, err := l.GetAccount(ctx)
	if err != nil {
		return models.AccountStats{}, err
	}

	l.mu.Lock()
	trades := append([]models.TradeRecord(nil), l.acct.Trades...)
	initial := l.acct.InitialBalance
	l.mu.Unlock()

	return computeStats(trades, view, initial), nil
}

func computeStats(trades []models.TradeRecord, view models.AccountView, initial float64) models.AccountStats {
	var s models.AccountStats
	realized := decimal.Zero
	funded := decimal.Zero
	for _, t := range trades {
		if t.Kind == models.TradeFunding {
			funded = funded.Add(decFromFloat(t.Value))
			continue
		}
		s.TotalTrades++
		if t.Side != models.SideSell {
			continue
		}
		s.ClosedTrades++
		realized = realized.Add(decFromFloat(t.RealizedPnL))
		switch {
		case t.RealizedPnL > 0:
			s.WinningTrades++
		case t.RealizedPnL < 0:
			s.LosingTrades++
		}
	}
	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosedTrades) * 100
	}

	unrealized := decimal.Zero
	for _, p := range view.Positions {
		unrealized = unrealized.Add(decFromFloat(p.UnrealizedPnL))
	}
	total := realized.Add(unrealized)
	base := decFromFloat(initial).Add(funded)

	s.RealizedPnL = decToFloat(realized)
	s.UnrealizedPnL = decToFloat(unrealized)
	s.TotalPnL = decToFloat(total)
	s.TotalPnLPercent = percentOf(total, base)
	s.TotalFunded = decToFloat(funded)
	s.CurrentValue = view.TotalValue
	return s
}
