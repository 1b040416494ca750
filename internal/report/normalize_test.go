package report

import (
	"testing"

	"github.com/newthinker/stratboard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePerformance(t *testing.T) {
	pm := NormalizePerformance(loadFixture(t))

	assert.Equal(t, 1520.75, *pm.NetProfitUSDT)
	assert.Equal(t, 15.2, *pm.NetProfitPercent)
	assert.Equal(t, 420.25, *pm.NetProfitShortUSDT)
	assert.Equal(t, 5.9, *pm.MaxEquityDrawdownPercent)
	assert.Equal(t, 17.4, *pm.MaxEquityRunupPercent)
	assert.Equal(t, 1.568, *pm.ProfitFactor)
	assert.Equal(t, 0.42, *pm.SharpeRatio)
	assert.Equal(t, 1.12, *pm.SortinoRatio)

	// zero is an earned value, not a missing one
	require.NotNil(t, pm.BuyHoldReturnUSDT)
	assert.Equal(t, 0.0, *pm.BuyHoldReturnUSDT)
}

func TestNormalizePerformance_MissingStaysNil(t *testing.T) {
	doc, err := Parse([]byte(`{
		"performance": {"gross_profit": {"all_usdt": 10}},
		"risk_performance_ratios": {}
	}`))
	require.NoError(t, err)

	pm := NormalizePerformance(doc)
	assert.Nil(t, pm.NetProfitUSDT)
	assert.Nil(t, pm.NetProfitPercent)
	assert.Nil(t, pm.GrossProfitPercent)
	assert.Nil(t, pm.ProfitFactor)
	assert.Equal(t, 10.0, *pm.GrossProfitUSDT)
}

func TestNormalizeTradeMetrics(t *testing.T) {
	tm := NormalizeTradeMetrics(loadFixture(t))

	assert.Equal(t, int64(3), *tm.TotalTrades)
	assert.Equal(t, int64(2), *tm.TotalTradesLong)
	assert.Equal(t, int64(0), *tm.LosingTradesShort)
	assert.Equal(t, 66.67, *tm.PercentProfitable)
	assert.Equal(t, 50.0, *tm.PercentProfitableLong)
	assert.Equal(t, 506.92, *tm.AvgProfitUSDT)
	assert.Equal(t, 420.25, *tm.AvgProfitShortUSDT)
	assert.Equal(t, 3779.75, *tm.LargestWinningTradeUSDT)
	assert.Equal(t, 6.3, *tm.LargestWinningTradePercent)
	// falls back to the percent slot of the base key
	assert.Equal(t, 3.2, *tm.LargestLosingTradePercent)
	assert.Equal(t, 14.0, *tm.AvgBarsInTrades)
	assert.Equal(t, 6.0, *tm.AvgBarsInLosingTrades)
	assert.Equal(t, 4.1, *tm.AvgWinningTradePercent)
}

func TestNormalizeTrades(t *testing.T) {
	trades := NormalizeTrades(loadFixture(t).Trades)
	require.Len(t, trades, 3)

	first := trades[0]
	assert.Equal(t, 1, first.TradeNumber)
	require.NotNil(t, first.Direction)
	assert.Equal(t, core.DirectionLong, *first.Direction)
	assert.Equal(t, "Fisher Long", *first.EntrySignal)
	assert.Equal(t, 42000.5, *first.EntryPrice)
	assert.Equal(t, 0.1, *first.Contracts)
	assert.Equal(t, "TP", *first.ExitSignal)
	assert.Equal(t, 150.0, *first.ProfitUSDT)
	assert.Equal(t, 180.0, *first.RunupUSDT)
	assert.Equal(t, 0.5, *first.DrawdownPercent)

	// only the first entry leg of a scaled-in trade is represented
	second := trades[1]
	assert.Equal(t, core.DirectionShort, *second.Direction)
	assert.Equal(t, "Fisher Short", *second.EntrySignal)
	assert.Equal(t, 44000.0, *second.EntryPrice)
	assert.Equal(t, 10.0, *second.RunupUSDT)
	assert.Equal(t, -80.0, *second.ProfitUSDT)

	third := trades[2]
	require.NotNil(t, third.ProfitUSDT)
	assert.Equal(t, 0.0, *third.ProfitUSDT)
	assert.Nil(t, third.RunupUSDT)
	assert.Nil(t, third.DrawdownUSDT)
}

func TestNormalizeTrades_Edges(t *testing.T) {
	assert.Nil(t, NormalizeTrades(nil))

	doc, err := Parse([]byte(`{"trades": [
		{"entries": [], "exits": []},
		{"trade_number": 7, "entries": [{"signal": "breakout"}]}
	]}`))
	require.NoError(t, err)

	trades := NormalizeTrades(doc.Trades)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, trades[0].TradeNumber)
	assert.Nil(t, trades[0].Direction)
	assert.Nil(t, trades[0].ProfitUSDT)
	assert.Equal(t, 7, trades[1].TradeNumber)
	assert.Nil(t, trades[1].Direction)
	assert.Equal(t, "breakout", *trades[1].EntrySignal)
}

func TestBundle(t *testing.T) {
	doc := loadFixture(t)
	id := Identify(doc.FileName, DefaultTimeframe)

	b := Bundle("strat-1", doc, id)
	assert.Equal(t, "strat-1", b.Report.StrategyID)
	assert.Equal(t, "BTCUSDT.P", b.Report.Symbol.Name)
	assert.Equal(t, "BINANCE", b.Report.Symbol.Exchange)
	assert.Equal(t, "1h", b.Report.Timeframe.Name)
	assert.Equal(t, 60, b.Report.Timeframe.Minutes)
	assert.Len(t, b.Trades, len(doc.Trades))
	assert.NotNil(t, b.Performance.NetProfitUSDT)
	assert.NotNil(t, b.TradeMetrics.TotalTrades)
}
