package reportdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/stratboard/internal/core"
)

// timeLayout is fixed width so lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		s.now = now
	}
}

// NewSQLStore creates a store on an open database.
func NewSQLStore(db *DB, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:  db.Conn(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

// searchText folds name and description for case-insensitive search. SQLite's
// lower() only folds ASCII, so folding happens here. The newline keeps a query
// from matching across the two fields.
func searchText(name string, description *string) string {
	text := strings.ToLower(name)
	if description != nil {
		text += "\n" + strings.ToLower(*description)
	}
	return text
}

func errUnknownSort(col string) error {
	return fmt.Errorf("unsupported sort column %q", col)
}

func notFound(kind, id string) error {
	return core.WrapError(core.ErrNotFound, fmt.Errorf("%s %q", kind, id))
}

// CreateStrategy persists a strategy.
func (s *SQLStore) CreateStrategy(ctx context.Context, st *core.Strategy) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.timestamp()
	}
	st.UpdatedAt = st.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, name, description, search_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Description, searchText(st.Name, st.Description),
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting strategy: %w", err)
	}
	return nil
}

// GetStrategy returns a strategy with all of its report detail.
func (s *SQLStore) GetStrategy(ctx context.Context, id string) (*core.StrategyDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM strategies WHERE id = ?`, id)

	st, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("strategy", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading strategy: %w", err)
	}

	reports, err := s.loadReports(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	detail := &core.StrategyDetail{Strategy: st, Reports: reports[id]}
	if detail.Reports == nil {
		detail.Reports = []core.ReportDetail{}
	}

	for i := range detail.Reports {
		r := &detail.Reports[i]
		if r.Trades, err = s.loadTrades(ctx, r.ID); err != nil {
			return nil, err
		}
		summary, err := s.RatingSummary(ctx, r.ID, "")
		if err != nil {
			return nil, err
		}
		r.Rating = &summary
	}

	return detail, nil
}

// ListStrategies returns a page of strategies with their reports.
func (s *SQLStore) ListStrategies(ctx context.Context, filter ListFilter) ([]core.StrategyDetail, int, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, 0, err
	}

	where, args := strategyConditions(filter)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM strategies s"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting strategies: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.name, s.description, s.created_at, s.updated_at
		FROM strategies s%s
		ORDER BY s.%s DESC, s.id DESC
		LIMIT ? OFFSET ?`, where, filter.SortBy)

	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing strategies: %w", err)
	}
	defer rows.Close()

	var strategies []core.StrategyDetail
	var ids []string
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning strategy: %w", err)
		}
		strategies = append(strategies, core.StrategyDetail{Strategy: st})
		ids = append(ids, st.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing strategies: %w", err)
	}

	reports, err := s.loadReports(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range strategies {
		strategies[i].Reports = reports[strategies[i].ID]
		if strategies[i].Reports == nil {
			strategies[i].Reports = []core.ReportDetail{}
		}
	}

	if strategies == nil {
		strategies = []core.StrategyDetail{}
	}
	return strategies, total, nil
}

func strategyConditions(f ListFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		conds = append(conds, `s.search_text LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	if f.Symbol != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM strategy_reports r JOIN symbols sy ON sy.id = r.symbol_id
			WHERE r.strategy_id = s.id AND sy.name = ?)`)
		args = append(args, f.Symbol)
	}
	if f.Timeframe != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM strategy_reports r JOIN timeframes tf ON tf.id = r.timeframe_id
			WHERE r.strategy_id = s.id AND tf.name = ?)`)
		args = append(args, f.Timeframe)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// SaveReport persists one report group in its own transaction.
func (s *SQLStore) SaveReport(ctx context.Context, b *core.ReportBundle) error {
	return WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		return s.saveReport(ctx, tx, b)
	})
}

// SaveReports persists all groups or none.
func (s *SQLStore) SaveReports(ctx context.Context, bs []*core.ReportBundle) error {
	return WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		for i, b := range bs {
			if err := s.saveReport(ctx, tx, b); err != nil {
				return fmt.Errorf("report %d: %w", i, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) saveReport(ctx context.Context, tx *sql.Tx, b *core.ReportBundle) error {
	r := &b.Report
	r.ID = uuid.NewString()
	r.CreatedAt = s.timestamp()

	// touching updated_at doubles as the existence check
	res, err := tx.ExecContext(ctx, `UPDATE strategies SET updated_at = ? WHERE id = ?`,
		formatTime(r.CreatedAt), r.StrategyID)
	if err != nil {
		return fmt.Errorf("touching strategy: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("touching strategy: %w", err)
	} else if n == 0 {
		return notFound("strategy", r.StrategyID)
	}

	if err := s.resolveSymbol(ctx, tx, &r.Symbol); err != nil {
		return err
	}
	if err := s.resolveTimeframe(ctx, tx, &r.Timeframe); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_reports (id, strategy_id, symbol_id, timeframe_id, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StrategyID, r.Symbol.ID, r.Timeframe.ID, r.FileName, formatTime(r.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		insertStatement("performance_metrics", performanceColumns),
		append([]any{r.ID}, performanceValues(&b.Performance)...)...,
	); err != nil {
		return fmt.Errorf("inserting performance metrics: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		insertStatement("trade_metrics", tradeMetricColumns),
		append([]any{r.ID}, tradeMetricValues(&b.TradeMetrics)...)...,
	); err != nil {
		return fmt.Errorf("inserting trade metrics: %w", err)
	}

	if len(b.Trades) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, report_id, `+strings.Join(tradeColumns, ", ")+`)
		VALUES (?, ?`+strings.Repeat(", ?", len(tradeColumns))+`)`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for i := range b.Trades {
		t := &b.Trades[i]
		t.ID = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, append([]any{t.ID, r.ID}, tradeValues(t)...)...); err != nil {
			return fmt.Errorf("inserting trade %d: %w", t.TradeNumber, err)
		}
	}
	return nil
}

// resolveSymbol finds or creates the symbol. The insert is a no-op when a
// concurrent writer created the same (name, exchange) first.
func (s *SQLStore) resolveSymbol(ctx context.Context, tx *sql.Tx, sym *core.Symbol) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO symbols (id, name, exchange, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (name, exchange) DO NOTHING`,
		uuid.NewString(), sym.Name, sym.Exchange, formatTime(s.timestamp()),
	); err != nil {
		return fmt.Errorf("inserting symbol: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM symbols WHERE name = ? AND exchange = ?`, sym.Name, sym.Exchange,
	).Scan(&sym.ID); err != nil {
		return fmt.Errorf("resolving symbol: %w", err)
	}
	return nil
}

// resolveTimeframe finds or creates the timeframe by name. An existing row
// keeps its minutes.
func (s *SQLStore) resolveTimeframe(ctx context.Context, tx *sql.Tx, tf *core.Timeframe) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO timeframes (id, name, minutes, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), tf.Name, tf.Minutes, formatTime(s.timestamp()),
	); err != nil {
		return fmt.Errorf("inserting timeframe: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT id, minutes FROM timeframes WHERE name = ?`, tf.Name,
	).Scan(&tf.ID, &tf.Minutes); err != nil {
		return fmt.Errorf("resolving timeframe: %w", err)
	}
	return nil
}

// GetReport returns one report with detail.
func (s *SQLStore) GetReport(ctx context.Context, id string) (*core.ReportDetail, error) {
	rows, err := s.db.QueryContext(ctx, reportQuery+" WHERE r.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("loading report: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("loading report: %w", err)
		}
		return nil, notFound("report", id)
	}

	detail, err := scanReport(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	rows.Close()

	if detail.Trades, err = s.loadTrades(ctx, id); err != nil {
		return nil, err
	}
	summary, err := s.RatingSummary(ctx, id, "")
	if err != nil {
		return nil, err
	}
	detail.Rating = &summary

	return &detail, nil
}

func (s *SQLStore) loadReports(ctx context.Context, strategyIDs []string) (map[string][]core.ReportDetail, error) {
	result := make(map[string][]core.ReportDetail, len(strategyIDs))
	if len(strategyIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(strategyIDs)), ", ")
	args := make([]any, len(strategyIDs))
	for i, id := range strategyIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		reportQuery+" WHERE r.strategy_id IN ("+placeholders+") ORDER BY r.created_at, r.id", args...)
	if err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		detail, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		result[detail.StrategyID] = append(result[detail.StrategyID], detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading reports: %w", err)
	}
	return result, nil
}

func (s *SQLStore) loadTrades(ctx context.Context, reportID string) ([]core.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, `+strings.Join(tradeColumns, ", ")+`
		FROM trades WHERE report_id = ? ORDER BY trade_number, id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("loading trades: %w", err)
	}
	defer rows.Close()

	trades := []core.Trade{}
	for rows.Next() {
		var t core.Trade
		if err := rows.Scan(append([]any{&t.ID}, tradeTargets(&t)...)...); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListSymbols returns all symbols ordered by name.
func (s *SQLStore) ListSymbols(ctx context.Context) ([]core.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, exchange FROM symbols ORDER BY name, exchange`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	symbols := []core.Symbol{}
	for rows.Next() {
		var sym core.Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.Exchange); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ListTimeframes returns all timeframes ordered by length.
func (s *SQLStore) ListTimeframes(ctx context.Context) ([]core.Timeframe, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, minutes FROM timeframes ORDER BY minutes, name`)
	if err != nil {
		return nil, fmt.Errorf("listing timeframes: %w", err)
	}
	defer rows.Close()

	timeframes := []core.Timeframe{}
	for rows.Next() {
		var tf core.Timeframe
		if err := rows.Scan(&tf.ID, &tf.Name, &tf.Minutes); err != nil {
			return nil, fmt.Errorf("scanning timeframe: %w", err)
		}
		timeframes = append(timeframes, tf)
	}
	return timeframes, rows.Err()
}

func (s *SQLStore) reportExists(ctx context.Context, reportID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM strategy_reports WHERE id = ?`, reportID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("report", reportID)
	}
	if err != nil {
		return fmt.Errorf("checking report: %w", err)
	}
	return nil
}

// UpsertRating records a rating, replacing the user's previous one.
func (s *SQLStore) UpsertRating(ctx context.Context, r *core.Rating) error {
	if err := s.reportExists(ctx, r.ReportID); err != nil {
		return err
	}

	r.UpdatedAt = s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (report_id, user_id, rating, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (report_id, user_id) DO UPDATE SET
			rating = excluded.rating,
			updated_at = excluded.updated_at`,
		r.ReportID, r.UserID, r.Value, formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting rating: %w", err)
	}
	return nil
}

// RatingSummary aggregates the ratings of a report.
func (s *SQLStore) RatingSummary(ctx context.Context, reportID, userID string) (core.RatingSummary, error) {
	var summary core.RatingSummary
	var avg sql.NullFloat64

	if err := s.reportExists(ctx, reportID); err != nil {
		return summary, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(rating), COUNT(*) FROM ratings WHERE report_id = ?`, reportID,
	).Scan(&avg, &summary.Count); err != nil {
		return summary, fmt.Errorf("summarizing ratings: %w", err)
	}
	if avg.Valid {
		summary.Average = &avg.Float64
	}

	if userID == "" {
		return summary, nil
	}

	var own int
	err := s.db.QueryRowContext(ctx,
		`SELECT rating FROM ratings WHERE report_id = ? AND user_id = ?`, reportID, userID,
	).Scan(&own)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return summary, fmt.Errorf("loading user rating: %w", err)
	default:
		summary.UserRating = &own
	}
	return summary, nil
}

// AddComment persists a comment.
func (s *SQLStore) AddComment(ctx context.Context, c *core.Comment) error {
	if err := s.reportExists(ctx, c.ReportID); err != nil {
		return err
	}

	c.ID = uuid.NewString()
	c.CreatedAt = s.timestamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, report_id, user_id, username, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ReportID, c.UserID, c.Username, c.Content, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

// ListComments returns the comments of a report, newest first.
func (s *SQLStore) ListComments(ctx context.Context, reportID string) ([]core.Comment, error) {
	if err := s.reportExists(ctx, reportID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, user_id, username, content, created_at
		FROM comments WHERE report_id = ?
		ORDER BY created_at DESC, id DESC`, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	comments := []core.Comment{}
	for rows.Next() {
		var c core.Comment
		var created string
		if err := rows.Scan(&c.ID, &c.ReportID, &c.UserID, &c.Username, &c.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		c.CreatedAt = parseTime(created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row scanner) (core.Strategy, error) {
	var st core.Strategy
	var created, updated string
	if err := row.Scan(&st.ID, &st.Name, &st.Description, &created, &updated); err != nil {
		return st, err
	}
	st.CreatedAt = parseTime(created)
	st.UpdatedAt = parseTime(updated)
	return st, nil
}
