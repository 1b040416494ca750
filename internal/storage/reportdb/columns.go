package reportdb

import (
	"strings"

	"github.com/newthinker/stratboard/internal/core"
)

var performanceColumns = []string{
	"net_profit_usdt", "net_profit_percent",
	"net_profit_long_usdt", "net_profit_long_percent",
	"net_profit_short_usdt", "net_profit_short_percent",
	"gross_profit_usdt", "gross_profit_percent",
	"gross_loss_usdt", "gross_loss_percent",
	"buy_hold_return_usdt", "buy_hold_return_percent",
	"max_equity_runup_usdt", "max_equity_runup_percent",
	"max_equity_drawdown_usdt", "max_equity_drawdown_percent",
	"profit_factor", "sharpe_ratio", "sortino_ratio",
}

// performanceTargets lists the fields in performanceColumns order.
func performanceTargets(p *core.PerformanceMetrics) []any {
	return []any{
		&p.NetProfitUSDT, &p.NetProfitPercent,
		&p.NetProfitLongUSDT, &p.NetProfitLongPercent,
		&p.NetProfitShortUSDT, &p.NetProfitShortPercent,
		&p.GrossProfitUSDT, &p.GrossProfitPercent,
		&p.GrossLossUSDT, &p.GrossLossPercent,
		&p.BuyHoldReturnUSDT, &p.BuyHoldReturnPercent,
		&p.MaxEquityRunupUSDT, &p.MaxEquityRunupPercent,
		&p.MaxEquityDrawdownUSDT, &p.MaxEquityDrawdownPercent,
		&p.ProfitFactor, &p.SharpeRatio, &p.SortinoRatio,
	}
}

func performanceValues(p *core.PerformanceMetrics) []any {
	return []any{
		p.NetProfitUSDT, p.NetProfitPercent,
		p.NetProfitLongUSDT, p.NetProfitLongPercent,
		p.NetProfitShortUSDT, p.NetProfitShortPercent,
		p.GrossProfitUSDT, p.GrossProfitPercent,
		p.GrossLossUSDT, p.GrossLossPercent,
		p.BuyHoldReturnUSDT, p.BuyHoldReturnPercent,
		p.MaxEquityRunupUSDT, p.MaxEquityRunupPercent,
		p.MaxEquityDrawdownUSDT, p.MaxEquityDrawdownPercent,
		p.ProfitFactor, p.SharpeRatio, p.SortinoRatio,
	}
}

var tradeMetricColumns = []string{
	"total_trades", "total_trades_long", "total_trades_short",
	"winning_trades", "winning_trades_long", "winning_trades_short",
	"losing_trades", "losing_trades_long", "losing_trades_short",
	"percent_profitable", "percent_profitable_long", "percent_profitable_short",
	"avg_profit_usdt", "avg_profit_percent", "avg_profit_long_usdt", "avg_profit_short_usdt",
	"avg_winning_trade_usdt", "avg_winning_trade_percent",
	"avg_losing_trade_usdt", "avg_losing_trade_percent",
	"largest_winning_trade_usdt", "largest_winning_trade_percent",
	"largest_losing_trade_usdt", "largest_losing_trade_percent",
	"avg_bars_in_trades", "avg_bars_in_winning_trades", "avg_bars_in_losing_trades",
}

func tradeMetricTargets(m *core.TradeMetrics) []any {
	return []any{
		&m.TotalTrades, &m.TotalTradesLong, &m.TotalTradesShort,
		&m.WinningTrades, &m.WinningTradesLong, &m.WinningTradesShort,
		&m.LosingTrades, &m.LosingTradesLong, &m.LosingTradesShort,
		&m.PercentProfitable, &m.PercentProfitableLong, &m.PercentProfitableShort,
		&m.AvgProfitUSDT, &m.AvgProfitPercent, &m.AvgProfitLongUSDT, &m.AvgProfitShortUSDT,
		&m.AvgWinningTradeUSDT, &m.AvgWinningTradePercent,
		&m.AvgLosingTradeUSDT, &m.AvgLosingTradePercent,
		&m.LargestWinningTradeUSDT, &m.LargestWinningTradePercent,
		&m.LargestLosingTradeUSDT, &m.LargestLosingTradePercent,
		&m.AvgBarsInTrades, &m.AvgBarsInWinningTrades, &m.AvgBarsInLosingTrades,
	}
}

func tradeMetricValues(m *core.TradeMetrics) []any {
	return []any{
		m.TotalTrades, m.TotalTradesLong, m.TotalTradesShort,
		m.WinningTrades, m.WinningTradesLong, m.WinningTradesShort,
		m.LosingTrades, m.LosingTradesLong, m.LosingTradesShort,
		m.PercentProfitable, m.PercentProfitableLong, m.PercentProfitableShort,
		m.AvgProfitUSDT, m.AvgProfitPercent, m.AvgProfitLongUSDT, m.AvgProfitShortUSDT,
		m.AvgWinningTradeUSDT, m.AvgWinningTradePercent,
		m.AvgLosingTradeUSDT, m.AvgLosingTradePercent,
		m.LargestWinningTradeUSDT, m.LargestWinningTradePercent,
		m.LargestLosingTradeUSDT, m.LargestLosingTradePercent,
		m.AvgBarsInTrades, m.AvgBarsInWinningTrades, m.AvgBarsInLosingTrades,
	}
}

var tradeColumns = []string{
	"trade_number", "direction",
	"entry_signal", "entry_time", "entry_price",
	"exit_signal", "exit_time", "exit_price",
	"contracts",
	"profit_usdt", "profit_percent",
	"cumulative_profit_usdt", "cumulative_profit_percent",
	"runup_usdt", "runup_percent",
	"drawdown_usdt", "drawdown_percent",
}

func tradeTargets(t *core.Trade) []any {
	return []any{
		&t.TradeNumber, &t.Direction,
		&t.EntrySignal, &t.EntryTime, &t.EntryPrice,
		&t.ExitSignal, &t.ExitTime, &t.ExitPrice,
		&t.Contracts,
		&t.ProfitUSDT, &t.ProfitPercent,
		&t.CumulativeProfitUSDT, &t.CumulativeProfitPercent,
		&t.RunupUSDT, &t.RunupPercent,
		&t.DrawdownUSDT, &t.DrawdownPercent,
	}
}

func tradeValues(t *core.Trade) []any {
	var direction any
	if t.Direction != nil {
		direction = string(*t.Direction)
	}
	return []any{
		t.TradeNumber, direction,
		t.EntrySignal, t.EntryTime, t.EntryPrice,
		t.ExitSignal, t.ExitTime, t.ExitPrice,
		t.Contracts,
		t.ProfitUSDT, t.ProfitPercent,
		t.CumulativeProfitUSDT, t.CumulativeProfitPercent,
		t.RunupUSDT, t.RunupPercent,
		t.DrawdownUSDT, t.DrawdownPercent,
	}
}

// insertStatement builds an insert keyed by report_id followed by columns.
func insertStatement(table string, columns []string) string {
	return "INSERT INTO " + table + " (report_id, " + strings.Join(columns, ", ") +
		") VALUES (?" + strings.Repeat(", ?", len(columns)) + ")"
}

func qualified(alias string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}

// reportQuery selects a report joined with its symbol, timeframe and metric
// rows. Metric rows are left joined so a report without them still loads.
var reportQuery = `
	SELECT r.id, r.strategy_id, r.file_name, r.created_at,
		sy.id, sy.name, sy.exchange,
		tf.id, tf.name, tf.minutes,
		` + qualified("pm", performanceColumns) + `,
		` + qualified("tm", tradeMetricColumns) + `
	FROM strategy_reports r
	JOIN symbols sy ON sy.id = r.symbol_id
	JOIN timeframes tf ON tf.id = r.timeframe_id
	LEFT JOIN performance_metrics pm ON pm.report_id = r.id
	LEFT JOIN trade_metrics tm ON tm.report_id = r.id`

func scanReport(row scanner) (core.ReportDetail, error) {
	var d core.ReportDetail
	var created string

	dest := []any{
		&d.ID, &d.StrategyID, &d.FileName, &created,
		&d.Symbol.ID, &d.Symbol.Name, &d.Symbol.Exchange,
		&d.Timeframe.ID, &d.Timeframe.Name, &d.Timeframe.Minutes,
	}
	dest = append(dest, performanceTargets(&d.Performance)...)
	dest = append(dest, tradeMetricTargets(&d.TradeMetrics)...)

	if err := row.Scan(dest...); err != nil {
		return d, err
	}
	d.CreatedAt = parseTime(created)
	return d, nil
}
