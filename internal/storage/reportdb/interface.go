package reportdb

import (
	"context"

	"github.com/newthinker/stratboard/internal/core"
)

// Store defines the persistence contract of the dashboard. It is the sole
// owner of every record; callers only hold copies.
type Store interface {
	// CreateStrategy persists a strategy and assigns its ID and timestamps.
	CreateStrategy(ctx context.Context, s *core.Strategy) error

	// GetStrategy returns a strategy with its reports, trades and ratings.
	GetStrategy(ctx context.Context, id string) (*core.StrategyDetail, error)

	// ListStrategies returns one page of strategies with their reports and the
	// total number of strategies matching the filter.
	ListStrategies(ctx context.Context, filter ListFilter) ([]core.StrategyDetail, int, error)

	// SaveReport persists a report group atomically, resolving its symbol
	// and timeframe.
	SaveReport(ctx context.Context, b *core.ReportBundle) error

	// SaveReports persists several report groups in a single transaction.
	SaveReports(ctx context.Context, bs []*core.ReportBundle) error

	// GetReport returns one report with its metrics, trades and rating summary.
	GetReport(ctx context.Context, id string) (*core.ReportDetail, error)

	ListSymbols(ctx context.Context) ([]core.Symbol, error)
	ListTimeframes(ctx context.Context) ([]core.Timeframe, error)

	// UpsertRating records or replaces a user's rating of a report.
	UpsertRating(ctx context.Context, r *core.Rating) error

	// RatingSummary aggregates the ratings of a report. userID may be empty.
	// An unknown report is NOT_FOUND.
	RatingSummary(ctx context.Context, reportID, userID string) (core.RatingSummary, error)

	AddComment(ctx context.Context, c *core.Comment) error

	// ListComments returns the comments of a report, newest first.
	ListComments(ctx context.Context, reportID string) ([]core.Comment, error)
}

// Sortable strategy columns.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortName      = "name"
)

// Paging defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListFilter defines criteria for listing strategies.
type ListFilter struct {
	Search    string // case-insensitive substring of name or description
	Symbol    string // only strategies with a report on this symbol
	Timeframe string // only strategies with a report on this timeframe
	SortBy    string
	Page      int // 1-indexed
	Limit     int
}

// Normalize applies defaults and validates the sort column.
func (f ListFilter) Normalize() (ListFilter, error) {
	if f.SortBy == "" {
		f.SortBy = SortCreatedAt
	}
	switch f.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortName:
	default:
		return f, core.WrapError(core.ErrInvalidInput, errUnknownSort(f.SortBy))
	}

	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f, nil
}

// Offset returns the number of rows skipped before the page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
