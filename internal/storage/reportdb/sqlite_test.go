package reportdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/stratboard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock advances one second per call so insertion order is visible in
// timestamps.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db, WithClock(tickingClock()))
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func createStrategy(t *testing.T, s *SQLStore, name string) *core.Strategy {
	t.Helper()
	st := &core.Strategy{Name: name}
	require.NoError(t, s.CreateStrategy(context.Background(), st))
	return st
}

func sampleBundle(strategyID, symbol string) *core.ReportBundle {
	long := core.DirectionLong
	return &core.ReportBundle{
		Report: core.Report{
			StrategyID: strategyID,
			FileName:   "BINANCE_" + symbol + ".json",
			Symbol:     core.Symbol{Name: symbol, Exchange: "BINANCE"},
			Timeframe:  core.Timeframe{Name: "1h", Minutes: 60},
		},
		Performance: core.PerformanceMetrics{
			NetProfitUSDT:        f64(1520.75),
			BuyHoldReturnPercent: f64(0),
		},
		TradeMetrics: core.TradeMetrics{
			TotalTrades: i64(3),
		},
		Trades: []core.Trade{
			{TradeNumber: 1, Direction: &long, ProfitUSDT: f64(12.5)},
			{TradeNumber: 2, ProfitUSDT: f64(0)},
		},
	}
}

func TestSQLStore_CreateAndGetStrategy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	desc := "trend follower"
	st := &core.Strategy{Name: "Fisher", Description: &desc}
	require.NoError(t, s.CreateStrategy(ctx, st))
	assert.NotEmpty(t, st.ID)
	assert.False(t, st.CreatedAt.IsZero())

	got, err := s.GetStrategy(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fisher", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Empty(t, got.Reports)
	assert.NotNil(t, got.Reports)
}

func TestSQLStore_GetStrategy_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetStrategy(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_SaveReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	b := sampleBundle(st.ID, "BTCUSDT.P")
	require.NoError(t, s.SaveReport(ctx, b))
	assert.NotEmpty(t, b.Report.ID)
	assert.NotEmpty(t, b.Report.Symbol.ID)
	assert.NotEmpty(t, b.Report.Timeframe.ID)

	got, err := s.GetReport(ctx, b.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.StrategyID)
	assert.Equal(t, "BTCUSDT.P", got.Symbol.Name)
	assert.Equal(t, "BINANCE", got.Symbol.Exchange)
	assert.Equal(t, "1h", got.Timeframe.Name)
	assert.Equal(t, 60, got.Timeframe.Minutes)

	require.NotNil(t, got.Performance.NetProfitUSDT)
	assert.Equal(t, 1520.75, *got.Performance.NetProfitUSDT)
	require.NotNil(t, got.Performance.BuyHoldReturnPercent)
	assert.Equal(t, 0.0, *got.Performance.BuyHoldReturnPercent)
	assert.Nil(t, got.Performance.SharpeRatio)

	require.NotNil(t, got.TradeMetrics.TotalTrades)
	assert.Equal(t, int64(3), *got.TradeMetrics.TotalTrades)
	assert.Nil(t, got.TradeMetrics.WinningTrades)

	require.Len(t, got.Trades, 2)
	assert.Equal(t, 1, got.Trades[0].TradeNumber)
	require.NotNil(t, got.Trades[0].Direction)
	assert.Equal(t, core.DirectionLong, *got.Trades[0].Direction)
	assert.Nil(t, got.Trades[1].Direction)
	require.NotNil(t, got.Trades[1].ProfitUSDT)
	assert.Equal(t, 0.0, *got.Trades[1].ProfitUSDT)
	assert.Nil(t, got.Trades[1].EntryPrice)

	require.NotNil(t, got.Rating)
	assert.Equal(t, 0, got.Rating.Count)
	assert.Nil(t, got.Rating.Average)
}

func TestSQLStore_SaveReport_UnknownStrategy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveReport(ctx, sampleBundle("missing", "BTCUSDT"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	symbols, err := s.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestSQLStore_SaveReport_DeduplicatesSymbolAndTimeframe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	first := sampleBundle(st.ID, "BTCUSDT")
	second := sampleBundle(st.ID, "BTCUSDT")
	second.Report.Timeframe.Minutes = 999
	third := sampleBundle(st.ID, "ETHUSDT")

	require.NoError(t, s.SaveReport(ctx, first))
	require.NoError(t, s.SaveReport(ctx, second))
	require.NoError(t, s.SaveReport(ctx, third))

	assert.Equal(t, first.Report.Symbol.ID, second.Report.Symbol.ID)
	assert.NotEqual(t, first.Report.Symbol.ID, third.Report.Symbol.ID)
	assert.Equal(t, first.Report.Timeframe.ID, third.Report.Timeframe.ID)
	assert.Equal(t, 60, second.Report.Timeframe.Minutes)

	symbols, err := s.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, symbols, 2)

	timeframes, err := s.ListTimeframes(ctx)
	require.NoError(t, err)
	assert.Len(t, timeframes, 1)
}

func TestSQLStore_SaveReport_ConcurrentDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.SaveReport(ctx, sampleBundle(st.ID, "SOLUSDT"))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	symbols, err := s.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, symbols, 1)

	timeframes, err := s.ListTimeframes(ctx)
	require.NoError(t, err)
	assert.Len(t, timeframes, 1)

	detail, err := s.GetStrategy(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Reports, workers)
}

func TestSQLStore_SaveReport_SameSymbolDifferentExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	a := sampleBundle(st.ID, "BTCUSDT")
	b := sampleBundle(st.ID, "BTCUSDT")
	b.Report.Symbol.Exchange = core.Unknown

	require.NoError(t, s.SaveReport(ctx, a))
	require.NoError(t, s.SaveReport(ctx, b))
	assert.NotEqual(t, a.Report.Symbol.ID, b.Report.Symbol.ID)
}

func TestSQLStore_SaveReports_Atomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	err := s.SaveReports(ctx, []*core.ReportBundle{
		sampleBundle(st.ID, "BTCUSDT"),
		sampleBundle("missing", "ETHUSDT"),
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetStrategy(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Reports)

	require.NoError(t, s.SaveReports(ctx, []*core.ReportBundle{
		sampleBundle(st.ID, "BTCUSDT"),
		sampleBundle(st.ID, "ETHUSDT"),
	}))
	got, err = s.GetStrategy(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reports, 2)
	assert.Len(t, got.Reports[0].Trades, 2)
}

func TestSQLStore_SaveReport_TouchesStrategy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")

	require.NoError(t, s.SaveReport(ctx, sampleBundle(st.ID, "BTCUSDT")))

	got, err := s.GetStrategy(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestSQLStore_ListStrategies_Paging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		createStrategy(t, s, fmt.Sprintf("Strategy %d", i))
	}

	page, total, err := s.ListStrategies(ctx, ListFilter{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	require.Len(t, page, 5)

	// newest first: page 2 holds the five oldest
	assert.Equal(t, "Strategy 5", page[0].Name)
	assert.Equal(t, "Strategy 1", page[4].Name)

	first, _, err := s.ListStrategies(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, first, DefaultLimit)
	assert.Equal(t, "Strategy 15", first[0].Name)
}

func TestSQLStore_ListStrategies_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createStrategy(t, s, "Fisher Transform")
	createStrategy(t, s, "RSI Divergence")
	desc := "uses a fisher filter"
	require.NoError(t, s.CreateStrategy(ctx, &core.Strategy{Name: "Other", Description: &desc}))
	createStrategy(t, s, "100%_literal")

	got, total, err := s.ListStrategies(ctx, ListFilter{Search: "FISHER"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, got, 2)

	got, _, err = s.ListStrategies(ctx, ListFilter{Search: "%_"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100%_literal", got[0].Name)
}

func TestSQLStore_ListStrategies_SearchFoldsNonASCII(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createStrategy(t, s, "Übermensch Fisher")
	desc := "Élan momentum"
	require.NoError(t, s.CreateStrategy(ctx, &core.Strategy{Name: "Scalper", Description: &desc}))
	createStrategy(t, s, "RSI Divergence")

	tests := []struct {
		search string
		want   string
	}{
		{"Über", "Übermensch Fisher"},
		{"über", "Übermensch Fisher"},
		{"ÜBERMENSCH", "Übermensch Fisher"},
		{"fisher", "Übermensch Fisher"},
		{"élan", "Scalper"},
		{"ÉLAN", "Scalper"},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			got, total, err := s.ListStrategies(ctx, ListFilter{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Name)
		})
	}

	// name and description are matched separately
	got, _, err := s.ListStrategies(ctx, ListFilter{Search: "scalper élan"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLStore_ListStrategies_FilterBySymbolAndTimeframe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	btc := createStrategy(t, s, "BTC only")
	eth := createStrategy(t, s, "ETH only")
	require.NoError(t, s.SaveReport(ctx, sampleBundle(btc.ID, "BTCUSDT")))
	require.NoError(t, s.SaveReport(ctx, sampleBundle(eth.ID, "ETHUSDT")))

	got, total, err := s.ListStrategies(ctx, ListFilter{Symbol: "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, eth.ID, got[0].ID)
	require.Len(t, got[0].Reports, 1)
	assert.Equal(t, "ETHUSDT", got[0].Reports[0].Symbol.Name)

	_, total, err = s.ListStrategies(ctx, ListFilter{Timeframe: "4h"})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestSQLStore_ListStrategies_SortByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createStrategy(t, s, "alpha")
	createStrategy(t, s, "charlie")
	createStrategy(t, s, "bravo")

	got, _, err := s.ListStrategies(ctx, ListFilter{SortBy: SortName})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "charlie", got[0].Name)
	assert.Equal(t, "alpha", got[2].Name)
}

func TestSQLStore_ListStrategies_UnknownSort(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.ListStrategies(context.Background(), ListFilter{SortBy: "id; DROP TABLE strategies"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSQLStore_Ratings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")
	b := sampleBundle(st.ID, "BTCUSDT")
	require.NoError(t, s.SaveReport(ctx, b))
	reportID := b.Report.ID

	require.NoError(t, s.UpsertRating(ctx, &core.Rating{ReportID: reportID, UserID: "alice", Value: 2}))
	require.NoError(t, s.UpsertRating(ctx, &core.Rating{ReportID: reportID, UserID: "bob", Value: 4}))
	require.NoError(t, s.UpsertRating(ctx, &core.Rating{ReportID: reportID, UserID: "alice", Value: 5}))

	summary, err := s.RatingSummary(ctx, reportID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	require.NotNil(t, summary.Average)
	assert.InDelta(t, 4.5, *summary.Average, 1e-9)
	require.NotNil(t, summary.UserRating)
	assert.Equal(t, 5, *summary.UserRating)

	summary, err = s.RatingSummary(ctx, reportID, "carol")
	require.NoError(t, err)
	assert.Nil(t, summary.UserRating)

	err = s.UpsertRating(ctx, &core.Rating{ReportID: "missing", UserID: "alice", Value: 3})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = s.RatingSummary(ctx, "missing", "")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.RatingSummary(ctx, "missing", "alice")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_Comments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	st := createStrategy(t, s, "Fisher")
	b := sampleBundle(st.ID, "BTCUSDT")
	require.NoError(t, s.SaveReport(ctx, b))

	require.NoError(t, s.AddComment(ctx, &core.Comment{ReportID: b.Report.ID, UserID: "u1", Username: "alice", Content: "first"}))
	require.NoError(t, s.AddComment(ctx, &core.Comment{ReportID: b.Report.ID, UserID: "u2", Username: "bob", Content: "second"}))

	comments, err := s.ListComments(ctx, b.Report.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Content)
	assert.Equal(t, "first", comments[1].Content)

	_, err = s.ListComments(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	err = s.AddComment(ctx, &core.Comment{ReportID: "missing", UserID: "u1", Content: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListFilter_Normalize(t *testing.T) {
	f, err := ListFilter{Limit: 500}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, SortCreatedAt, f.SortBy)
	assert.Equal(t, DefaultPage, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)

	f, err = ListFilter{Page: 3, Limit: 10}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 20, f.Offset())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.db")

	db, err := Open(Config{Path: path})
	require.NoError(t, err)
	store := NewSQLStore(db)
	require.NoError(t, store.CreateStrategy(context.Background(), &core.Strategy{Name: "kept"}))
	require.NoError(t, db.Close())

	db, err = Open(Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	_, total, err := NewSQLStore(db).ListStrategies(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestOpen_BackfillsSearchText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`
		CREATE TABLE strategies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		INSERT INTO strategies VALUES ('s1', 'Übermensch Fisher', NULL, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z');`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	db, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer db.Close()

	got, total, err := NewSQLStore(db).ListStrategies(context.Background(), ListFilter{Search: "über"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}
