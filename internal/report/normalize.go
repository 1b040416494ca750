package report

import (
	"strings"

	"github.com/newthinker/stratboard/internal/core"
)

// Metric keys as they appear in the export.
const (
	keyNetProfit         = "net_profit"
	keyGrossProfit       = "gross_profit"
	keyGrossLoss         = "gross_loss"
	keyBuyHoldReturn     = "buy_&_hold_return"
	keyMaxEquityRunup    = "max_equity_run-up"
	keyMaxEquityDrawdown = "max_equity_drawdown"

	keyProfitFactor = "profit_factor"
	keySharpeRatio  = "sharpe_ratio"
	keySortinoRatio = "sortino_ratio"

	keyTotalTrades           = "total_trades"
	keyWinningTrades         = "winning_trades"
	keyLosingTrades          = "losing_trades"
	keyPercentProfitable     = "percent_profitable"
	keyAvgPnL                = "avg_p&l"
	keyAvgWinningTrade       = "avg_winning_trade"
	keyAvgLosingTrade        = "avg_losing_trade"
	keyLargestWinningTrade   = "largest_winning_trade"
	keyLargestWinningPercent = "largest_winning_trade_percent"
	keyLargestLosingTrade    = "largest_losing_trade"
	keyLargestLosingPercent  = "largest_losing_trade_percent"
	keyAvgBarsInTrades       = "avg_#_bars_in_trades"
	keyAvgBarsInWinning      = "avg_#_bars_in_winning_trades"
	keyAvgBarsInLosing       = "avg_#_bars_in_losing_trades"
)

// NormalizePerformance maps the performance and risk ratio sections.
func NormalizePerformance(doc *Document) core.PerformanceMetrics {
	perf := doc.Performance
	ratios := doc.RiskRatios

	net := perf.Get(keyNetProfit)
	gross := perf.Get(keyGrossProfit)
	loss := perf.Get(keyGrossLoss)
	buyHold := perf.Get(keyBuyHoldReturn)
	runup := perf.Get(keyMaxEquityRunup)
	drawdown := perf.Get(keyMaxEquityDrawdown)

	return core.PerformanceMetrics{
		NetProfitUSDT:            net.AllUSDT.Ptr(),
		NetProfitPercent:         net.AllPercent.Ptr(),
		NetProfitLongUSDT:        net.LongUSDT.Ptr(),
		NetProfitLongPercent:     net.LongPercent.Ptr(),
		NetProfitShortUSDT:       net.ShortUSDT.Ptr(),
		NetProfitShortPercent:    net.ShortPercent.Ptr(),
		GrossProfitUSDT:          gross.AllUSDT.Ptr(),
		GrossProfitPercent:       gross.AllPercent.Ptr(),
		GrossLossUSDT:            loss.AllUSDT.Ptr(),
		GrossLossPercent:         loss.AllPercent.Ptr(),
		BuyHoldReturnUSDT:        buyHold.AllUSDT.Ptr(),
		BuyHoldReturnPercent:     buyHold.AllPercent.Ptr(),
		MaxEquityRunupUSDT:       runup.AllUSDT.Ptr(),
		MaxEquityRunupPercent:    runup.AllPercent.Ptr(),
		MaxEquityDrawdownUSDT:    drawdown.AllUSDT.Ptr(),
		MaxEquityDrawdownPercent: drawdown.AllPercent.Ptr(),
		ProfitFactor:             ratios.Get(keyProfitFactor).AllUSDT.Ptr(),
		SharpeRatio:              ratios.Get(keySharpeRatio).AllUSDT.Ptr(),
		SortinoRatio:             ratios.Get(keySortinoRatio).AllUSDT.Ptr(),
	}
}

// NormalizeTradeMetrics maps the trades analysis section. Counts are carried
// in the *_usdt slots of the export.
func NormalizeTradeMetrics(doc *Document) core.TradeMetrics {
	ta := doc.TradesAnalysis

	total := ta.Get(keyTotalTrades)
	winning := ta.Get(keyWinningTrades)
	losing := ta.Get(keyLosingTrades)
	profitable := ta.Get(keyPercentProfitable)
	avg := ta.Get(keyAvgPnL)
	avgWin := ta.Get(keyAvgWinningTrade)
	avgLoss := ta.Get(keyAvgLosingTrade)
	largestWin := ta.Get(keyLargestWinningTrade)
	largestLoss := ta.Get(keyLargestLosingTrade)

	return core.TradeMetrics{
		TotalTrades:                total.AllUSDT.Int(),
		TotalTradesLong:            total.LongUSDT.Int(),
		TotalTradesShort:           total.ShortUSDT.Int(),
		WinningTrades:              winning.AllUSDT.Int(),
		WinningTradesLong:          winning.LongUSDT.Int(),
		WinningTradesShort:         winning.ShortUSDT.Int(),
		LosingTrades:               losing.AllUSDT.Int(),
		LosingTradesLong:           losing.LongUSDT.Int(),
		LosingTradesShort:          losing.ShortUSDT.Int(),
		PercentProfitable:          profitable.AllPercent.Ptr(),
		PercentProfitableLong:      profitable.LongPercent.Ptr(),
		PercentProfitableShort:     profitable.ShortPercent.Ptr(),
		AvgProfitUSDT:              avg.AllUSDT.Ptr(),
		AvgProfitPercent:           avg.AllPercent.Ptr(),
		AvgProfitLongUSDT:          avg.LongUSDT.Ptr(),
		AvgProfitShortUSDT:         avg.ShortUSDT.Ptr(),
		AvgWinningTradeUSDT:        avgWin.AllUSDT.Ptr(),
		AvgWinningTradePercent:     avgWin.AllPercent.Ptr(),
		AvgLosingTradeUSDT:         avgLoss.AllUSDT.Ptr(),
		AvgLosingTradePercent:      avgLoss.AllPercent.Ptr(),
		LargestWinningTradeUSDT:    largestWin.AllUSDT.Ptr(),
		LargestWinningTradePercent: firstValid(ta.Get(keyLargestWinningPercent).AllPercent, largestWin.AllPercent).Ptr(),
		LargestLosingTradeUSDT:     largestLoss.AllUSDT.Ptr(),
		LargestLosingTradePercent:  firstValid(ta.Get(keyLargestLosingPercent).AllPercent, largestLoss.AllPercent).Ptr(),
		AvgBarsInTrades:            ta.Get(keyAvgBarsInTrades).AllUSDT.Ptr(),
		AvgBarsInWinningTrades:     ta.Get(keyAvgBarsInWinning).AllUSDT.Ptr(),
		AvgBarsInLosingTrades:      ta.Get(keyAvgBarsInLosing).AllUSDT.Ptr(),
	}
}

// NormalizeTrades maps every trade record to one Trade row. Only the first
// entry and first exit leg of a record are represented.
func NormalizeTrades(records []TradeRecord) []core.Trade {
	if len(records) == 0 {
		return nil
	}

	trades := make([]core.Trade, 0, len(records))
	for i, rec := range records {
		t := core.Trade{TradeNumber: i + 1}
		if n := rec.TradeNumber.Int(); n != nil {
			t.TradeNumber = int(*n)
		}

		if len(rec.Entries) > 0 {
			entry := rec.Entries[0]
			t.Direction = directionOf(entry)
			t.EntrySignal = optionalString(entry.Signal)
			t.EntryTime = optionalString(entry.DateTime)
			t.EntryPrice = entry.PriceUSDT.Ptr()
			t.Contracts = entry.Contracts.Ptr()
		}

		if len(rec.Exits) > 0 {
			exit := rec.Exits[0]
			runupUSDT, runupPercent := exit.Runup()
			t.ExitSignal = optionalString(exit.Signal)
			t.ExitTime = optionalString(exit.DateTime)
			t.ExitPrice = exit.PriceUSDT.Ptr()
			t.ProfitUSDT = exit.ProfitUSDT.Ptr()
			t.ProfitPercent = exit.ProfitPercent.Ptr()
			t.CumulativeProfitUSDT = exit.CumulativeProfitUSDT.Ptr()
			t.CumulativeProfitPercent = exit.CumulativeProfitPercent.Ptr()
			t.RunupUSDT = runupUSDT.Ptr()
			t.RunupPercent = runupPercent.Ptr()
			t.DrawdownUSDT = exit.DrawdownUSDT.Ptr()
			t.DrawdownPercent = exit.DrawdownPercent.Ptr()
			if t.Contracts == nil {
				t.Contracts = exit.Contracts.Ptr()
			}
		}

		trades = append(trades, t)
	}
	return trades
}

// Bundle builds the full normalized group for a document.
func Bundle(strategyID string, doc *Document, id Identity) *core.ReportBundle {
	return &core.ReportBundle{
		Report: core.Report{
			StrategyID: strategyID,
			FileName:   id.FileName,
			Symbol:     core.Symbol{Name: id.Symbol, Exchange: id.Exchange},
			Timeframe:  core.Timeframe{Name: id.Timeframe.Name, Minutes: id.Timeframe.Minutes},
		},
		Performance:  NormalizePerformance(doc),
		TradeMetrics: NormalizeTradeMetrics(doc),
		Trades:       NormalizeTrades(doc.Trades),
	}
}

// directionOf infers the side from the entry type, then the signal text.
func directionOf(entry Leg) *core.Direction {
	for _, text := range []string{entry.Type, entry.Signal} {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "long"):
			d := core.DirectionLong
			return &d
		case strings.Contains(lower, "short"):
			d := core.DirectionShort
			return &d
		}
	}
	return nil
}

func firstValid(values ...Number) Number {
	for _, v := range values {
		if v.Valid() {
			return v
		}
	}
	return Number{}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
