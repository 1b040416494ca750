package reportdb

// Schema is the relational layout of the report store. Metric columns are
// nullable: NULL means the export did not carry the value.
const Schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	search_text TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_strategies_created_at ON strategies(created_at);

CREATE TABLE IF NOT EXISTS symbols (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	exchange TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (name, exchange)
);

CREATE TABLE IF NOT EXISTS timeframes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	minutes INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_reports (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL REFERENCES strategies(id) ON DELETE CASCADE,
	symbol_id TEXT NOT NULL REFERENCES symbols(id),
	timeframe_id TEXT NOT NULL REFERENCES timeframes(id),
	file_name TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_strategy_reports_strategy ON strategy_reports(strategy_id);

CREATE TABLE IF NOT EXISTS performance_metrics (
	report_id TEXT PRIMARY KEY REFERENCES strategy_reports(id) ON DELETE CASCADE,
	net_profit_usdt REAL,
	net_profit_percent REAL,
	net_profit_long_usdt REAL,
	net_profit_long_percent REAL,
	net_profit_short_usdt REAL,
	net_profit_short_percent REAL,
	gross_profit_usdt REAL,
	gross_profit_percent REAL,
	gross_loss_usdt REAL,
	gross_loss_percent REAL,
	buy_hold_return_usdt REAL,
	buy_hold_return_percent REAL,
	max_equity_runup_usdt REAL,
	max_equity_runup_percent REAL,
	max_equity_drawdown_usdt REAL,
	max_equity_drawdown_percent REAL,
	profit_factor REAL,
	sharpe_ratio REAL,
	sortino_ratio REAL
);

CREATE TABLE IF NOT EXISTS trade_metrics (
	report_id TEXT PRIMARY KEY REFERENCES strategy_reports(id) ON DELETE CASCADE,
	total_trades INTEGER,
	total_trades_long INTEGER,
	total_trades_short INTEGER,
	winning_trades INTEGER,
	winning_trades_long INTEGER,
	winning_trades_short INTEGER,
	losing_trades INTEGER,
	losing_trades_long INTEGER,
	losing_trades_short INTEGER,
	percent_profitable REAL,
	percent_profitable_long REAL,
	percent_profitable_short REAL,
	avg_profit_usdt REAL,
	avg_profit_percent REAL,
	avg_profit_long_usdt REAL,
	avg_profit_short_usdt REAL,
	avg_winning_trade_usdt REAL,
	avg_winning_trade_percent REAL,
	avg_losing_trade_usdt REAL,
	avg_losing_trade_percent REAL,
	largest_winning_trade_usdt REAL,
	largest_winning_trade_percent REAL,
	largest_losing_trade_usdt REAL,
	largest_losing_trade_percent REAL,
	avg_bars_in_trades REAL,
	avg_bars_in_winning_trades REAL,
	avg_bars_in_losing_trades REAL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL REFERENCES strategy_reports(id) ON DELETE CASCADE,
	trade_number INTEGER NOT NULL,
	direction TEXT,
	entry_signal TEXT,
	entry_time TEXT,
	entry_price REAL,
	exit_signal TEXT,
	exit_time TEXT,
	exit_price REAL,
	contracts REAL,
	profit_usdt REAL,
	profit_percent REAL,
	cumulative_profit_usdt REAL,
	cumulative_profit_percent REAL,
	runup_usdt REAL,
	runup_percent REAL,
	drawdown_usdt REAL,
	drawdown_percent REAL
);

CREATE INDEX IF NOT EXISTS idx_trades_report ON trades(report_id, trade_number);

CREATE TABLE IF NOT EXISTS ratings (
	report_id TEXT NOT NULL REFERENCES strategy_reports(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	updated_at TEXT NOT NULL,
	PRIMARY KEY (report_id, user_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL REFERENCES strategy_reports(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	username TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_report ON comments(report_id, created_at);
`
