// Package analytics derives cross-report aggregates for strategy comparison.
package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/newthinker/stratboard/internal/core"
	"gonum.org/v1/gonum/stat"
)

// MaxCompare is the most strategies shown side by side.
const MaxCompare = 4

// Summary aggregates the reports of one strategy. Averages only include
// reports that carry the value; a metric no report carries stays nil.
type Summary struct {
	StrategyID             string   `json:"strategy_id"`
	Name                   string   `json:"name"`
	Reports                int      `json:"reports"`
	AvgNetProfitPercent    *float64 `json:"avg_net_profit_percent"`
	NetProfitPercentStdDev *float64 `json:"net_profit_percent_stddev"`
	AvgProfitFactor        *float64 `json:"avg_profit_factor"`
	AvgPercentProfitable   *float64 `json:"avg_percent_profitable"`
	AvgMaxDrawdownPercent  *float64 `json:"avg_max_drawdown_percent"`
	TotalTrades            *int64   `json:"total_trades"`
	BestReportID           *string  `json:"best_report_id"`
}

// Summarize aggregates a strategy's reports.
func Summarize(s core.StrategyDetail) Summary {
	sum := Summary{
		StrategyID: s.ID,
		Name:       s.Name,
		Reports:    len(s.Reports),
	}

	var netProfit, profitFactor, profitable, drawdown []float64
	var best *core.ReportDetail

	for i := range s.Reports {
		r := &s.Reports[i]
		pm, tm := r.Performance, r.TradeMetrics

		if v := pm.NetProfitPercent; v != nil {
			netProfit = append(netProfit, *v)
			if best == nil || *v > *best.Performance.NetProfitPercent {
				best = r
			}
		}
		profitFactor = appendPresent(profitFactor, pm.ProfitFactor)
		profitable = appendPresent(profitable, tm.PercentProfitable)
		drawdown = appendPresent(drawdown, pm.MaxEquityDrawdownPercent)

		if tm.TotalTrades != nil {
			if sum.TotalTrades == nil {
				sum.TotalTrades = new(int64)
			}
			*sum.TotalTrades += *tm.TotalTrades
		}
	}

	sum.AvgNetProfitPercent = mean(netProfit)
	sum.AvgProfitFactor = mean(profitFactor)
	sum.AvgPercentProfitable = mean(profitable)
	sum.AvgMaxDrawdownPercent = mean(drawdown)
	if len(netProfit) > 1 {
		sd := stat.StdDev(netProfit, nil)
		sum.NetProfitPercentStdDev = &sd
	}
	if best != nil {
		id := best.ID
		sum.BestReportID = &id
	}

	return sum
}

func appendPresent(xs []float64, v *float64) []float64 {
	if v == nil {
		return xs
	}
	return append(xs, *v)
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	m := stat.Mean(xs, nil)
	return &m
}

// EquityPoint is the cumulative profit after one trade.
type EquityPoint struct {
	TradeNumber          int     `json:"trade_number"`
	CumulativeProfitUSDT float64 `json:"cumulative_profit_usdt"`
}

// EquityCurve orders trades by number and accumulates profit. A recorded
// cumulative profit resets the running total; trades without either figure
// are left out.
func EquityCurve(trades []core.Trade) []EquityPoint {
	ordered := make([]core.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TradeNumber < ordered[j].TradeNumber
	})

	points := make([]EquityPoint, 0, len(ordered))
	var running float64
	for _, t := range ordered {
		switch {
		case t.CumulativeProfitUSDT != nil:
			running = *t.CumulativeProfitUSDT
		case t.ProfitUSDT != nil:
			running += *t.ProfitUSDT
		default:
			continue
		}
		points = append(points, EquityPoint{TradeNumber: t.TradeNumber, CumulativeProfitUSDT: running})
	}
	return points
}

// MaxDrawdown is the largest peak-to-trough decline of a curve in USDT,
// measured from a starting equity of zero.
func MaxDrawdown(points []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range points {
		if p.CumulativeProfitUSDT > peak {
			peak = p.CumulativeProfitUSDT
		}
		if dd := peak - p.CumulativeProfitUSDT; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Comparison lines up strategy summaries. Leaders maps a metric name to the
// strategy that leads it; metrics no strategy carries are absent.
type Comparison struct {
	Strategies []Summary         `json:"strategies"`
	Leaders    map[string]string `json:"leaders"`
}

// Compare summarizes between one and MaxCompare strategies.
func Compare(strategies []core.StrategyDetail) (*Comparison, error) {
	if len(strategies) == 0 {
		return nil, core.WrapError(core.ErrInvalidInput, errors.New("no strategies to compare"))
	}
	if len(strategies) > MaxCompare {
		return nil, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("at most %d strategies can be compared, got %d", MaxCompare, len(strategies)))
	}

	cmp := &Comparison{
		Strategies: make([]Summary, 0, len(strategies)),
		Leaders:    make(map[string]string),
	}
	for _, s := range strategies {
		cmp.Strategies = append(cmp.Strategies, Summarize(s))
	}

	cmp.lead("net_profit_percent", func(s Summary) *float64 { return s.AvgNetProfitPercent }, higher)
	cmp.lead("profit_factor", func(s Summary) *float64 { return s.AvgProfitFactor }, higher)
	cmp.lead("percent_profitable", func(s Summary) *float64 { return s.AvgPercentProfitable }, higher)
	// drawdown is reported as a positive percentage; smaller is better
	cmp.lead("max_drawdown_percent", func(s Summary) *float64 { return s.AvgMaxDrawdownPercent }, lower)

	return cmp, nil
}

func higher(a, b float64) bool { return a > b }
func lower(a, b float64) bool  { return a < b }

func (c *Comparison) lead(metric string, value func(Summary) *float64, better func(a, b float64) bool) {
	var leader *Summary
	for i := range c.Strategies {
		v := value(c.Strategies[i])
		if v == nil {
			continue
		}
		if leader == nil || better(*v, *value(*leader)) {
			leader = &c.Strategies[i]
		}
	}
	if leader != nil {
		c.Leaders[metric] = leader.StrategyID
	}
}
