package core

import "time"

// Unknown is the sentinel used when a symbol or exchange cannot be derived.
const Unknown = "UNKNOWN"

// Direction is the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Strategy is a named trading strategy owning a set of reports.
type Strategy struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Symbol is a traded instrument on an exchange, unique by (Name, Exchange).
type Symbol struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Timeframe is a bar interval, unique by Name.
type Timeframe struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Minutes int    `json:"minutes"`
}

// Report is one backtest result for a (strategy, symbol, timeframe) combination.
type Report struct {
	ID         string    `json:"id"`
	StrategyID string    `json:"strategy_id"`
	FileName   string    `json:"file_name"`
	Symbol     Symbol    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	CreatedAt  time.Time `json:"created_at"`
}

// PerformanceMetrics holds aggregate profitability figures of a report.
// A nil field means the source document did not carry the value.
type PerformanceMetrics struct {
	NetProfitUSDT            *float64 `json:"net_profit_usdt"`
	NetProfitPercent         *float64 `json:"net_profit_percent"`
	NetProfitLongUSDT        *float64 `json:"net_profit_long_usdt"`
	NetProfitLongPercent     *float64 `json:"net_profit_long_percent"`
	NetProfitShortUSDT       *float64 `json:"net_profit_short_usdt"`
	NetProfitShortPercent    *float64 `json:"net_profit_short_percent"`
	GrossProfitUSDT          *float64 `json:"gross_profit_usdt"`
	GrossProfitPercent       *float64 `json:"gross_profit_percent"`
	GrossLossUSDT            *float64 `json:"gross_loss_usdt"`
	GrossLossPercent         *float64 `json:"gross_loss_percent"`
	BuyHoldReturnUSDT        *float64 `json:"buy_hold_return_usdt"`
	BuyHoldReturnPercent     *float64 `json:"buy_hold_return_percent"`
	MaxEquityRunupUSDT       *float64 `json:"max_equity_runup_usdt"`
	MaxEquityRunupPercent    *float64 `json:"max_equity_runup_percent"`
	MaxEquityDrawdownUSDT    *float64 `json:"max_equity_drawdown_usdt"`
	MaxEquityDrawdownPercent *float64 `json:"max_equity_drawdown_percent"`
	ProfitFactor             *float64 `json:"profit_factor"`
	SharpeRatio              *float64 `json:"sharpe_ratio"`
	SortinoRatio             *float64 `json:"sortino_ratio"`
}

// TradeMetrics holds trade-count and win/loss statistics of a report.
type TradeMetrics struct {
	TotalTrades                *int64   `json:"total_trades"`
	TotalTradesLong            *int64   `json:"total_trades_long"`
	TotalTradesShort           *int64   `json:"total_trades_short"`
	WinningTrades              *int64   `json:"winning_trades"`
	WinningTradesLong          *int64   `json:"winning_trades_long"`
	WinningTradesShort         *int64   `json:"winning_trades_short"`
	LosingTrades               *int64   `json:"losing_trades"`
	LosingTradesLong           *int64   `json:"losing_trades_long"`
	LosingTradesShort          *int64   `json:"losing_trades_short"`
	PercentProfitable          *float64 `json:"percent_profitable"`
	PercentProfitableLong      *float64 `json:"percent_profitable_long"`
	PercentProfitableShort     *float64 `json:"percent_profitable_short"`
	AvgProfitUSDT              *float64 `json:"avg_profit_usdt"`
	AvgProfitPercent           *float64 `json:"avg_profit_percent"`
	AvgProfitLongUSDT          *float64 `json:"avg_profit_long_usdt"`
	AvgProfitShortUSDT         *float64 `json:"avg_profit_short_usdt"`
	AvgWinningTradeUSDT        *float64 `json:"avg_winning_trade_usdt"`
	AvgWinningTradePercent     *float64 `json:"avg_winning_trade_percent"`
	AvgLosingTradeUSDT         *float64 `json:"avg_losing_trade_usdt"`
	AvgLosingTradePercent      *float64 `json:"avg_losing_trade_percent"`
	LargestWinningTradeUSDT    *float64 `json:"largest_winning_trade_usdt"`
	LargestWinningTradePercent *float64 `json:"largest_winning_trade_percent"`
	LargestLosingTradeUSDT     *float64 `json:"largest_losing_trade_usdt"`
	LargestLosingTradePercent  *float64 `json:"largest_losing_trade_percent"`
	AvgBarsInTrades            *float64 `json:"avg_bars_in_trades"`
	AvgBarsInWinningTrades     *float64 `json:"avg_bars_in_winning_trades"`
	AvgBarsInLosingTrades      *float64 `json:"avg_bars_in_losing_trades"`
}

// Trade is one round-trip recorded within a report. Entry and exit detail come
// from the first entry and first exit leg of the source trade.
type Trade struct {
	ID                      string     `json:"id,omitempty"`
	TradeNumber             int        `json:"trade_number"`
	Direction               *Direction `json:"direction"`
	EntrySignal             *string    `json:"entry_signal"`
	EntryTime               *string    `json:"entry_time"`
	EntryPrice              *float64   `json:"entry_price"`
	ExitSignal              *string    `json:"exit_signal"`
	ExitTime                *string    `json:"exit_time"`
	ExitPrice               *float64   `json:"exit_price"`
	Contracts               *float64   `json:"contracts"`
	ProfitUSDT              *float64   `json:"profit_usdt"`
	ProfitPercent           *float64   `json:"profit_percent"`
	CumulativeProfitUSDT    *float64   `json:"cumulative_profit_usdt"`
	CumulativeProfitPercent *float64   `json:"cumulative_profit_percent"`
	RunupUSDT               *float64   `json:"runup_usdt"`
	RunupPercent            *float64   `json:"runup_percent"`
	DrawdownUSDT            *float64   `json:"drawdown_usdt"`
	DrawdownPercent         *float64   `json:"drawdown_percent"`
}

// ReportBundle is the normalized group written for one ingested document.
// It is persisted all-or-nothing.
type ReportBundle struct {
	Report       Report
	Performance  PerformanceMetrics
	TradeMetrics TradeMetrics
	Trades       []Trade
}

// ReportDetail is a report joined with its metrics, trades and ratings.
type ReportDetail struct {
	Report
	Performance  PerformanceMetrics `json:"performance_metrics"`
	TradeMetrics TradeMetrics       `json:"trade_metrics"`
	Trades       []Trade            `json:"trades,omitempty"`
	Rating       *RatingSummary     `json:"rating,omitempty"`
}

// StrategyDetail is a strategy joined with its reports.
type StrategyDetail struct {
	Strategy
	Reports []ReportDetail `json:"reports"`
}

// Rating is one user's score of a report.
type Rating struct {
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingSummary aggregates the ratings of a report.
type RatingSummary struct {
	Average    *float64 `json:"average"`
	Count      int      `json:"count"`
	UserRating *int     `json:"user_rating,omitempty"`
}

// Comment is a user comment on a report.
type Comment struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
