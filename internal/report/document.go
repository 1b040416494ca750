// Package report decodes backtest export documents and normalizes them into
// the relational shape persisted by the report store.
package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/stratboard/internal/core"
)

// Number is an optional numeric value. Absent keys, null, and values that are
// not numbers decode to missing. Zero is a valid value and stays zero.
type Number struct {
	value float64
	valid bool
}

// NewNumber returns a present value.
func NewNumber(v float64) Number {
	return Number{value: v, valid: true}
}

// Valid reports whether the value was present in the source document.
func (n Number) Valid() bool {
	return n.valid
}

// Ptr returns the value or nil when missing.
func (n Number) Ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

// Int returns the value rounded to an integer, or nil when missing.
func (n Number) Int() *int64 {
	if !n.valid {
		return nil
	}
	v := int64(math.Round(n.value))
	return &v
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		n.set(v)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		n.set(v)
	}
	// objects, arrays and booleans are not numbers: leave missing
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

func (n *Number) set(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	n.value = v
	n.valid = true
}

// Scoped is one metric split by the all/long/short scope suffixes.
type Scoped struct {
	AllUSDT      Number `json:"all_usdt"`
	AllPercent   Number `json:"all_percent"`
	LongUSDT     Number `json:"long_usdt"`
	LongPercent  Number `json:"long_percent"`
	ShortUSDT    Number `json:"short_usdt"`
	ShortPercent Number `json:"short_percent"`
}

// UnmarshalJSON accepts either the scoped object or a bare number, which is
// taken as the all_usdt slot.
func (s *Scoped) UnmarshalJSON(data []byte) error {
	*s = Scoped{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '{' {
		return s.AllUSDT.UnmarshalJSON(trimmed)
	}

	type plain Scoped
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*s = Scoped(p)
	return nil
}

// Section is a named group of scoped metrics, keyed by the export's
// natural-language-derived names such as "max_equity_drawdown" or "avg_p&l".
type Section map[string]Scoped

// Get returns the scoped metric for key; a missing key yields all-missing slots.
func (s Section) Get(key string) Scoped {
	if s == nil {
		return Scoped{}
	}
	return s[key]
}

// Leg is one entry or exit event of a trade.
type Leg struct {
	Type                    string `json:"type"`
	Signal                  string `json:"signal"`
	DateTime                string `json:"date_time"`
	PriceUSDT               Number `json:"price_usdt"`
	Contracts               Number `json:"contracts"`
	ProfitUSDT              Number `json:"profit_usdt"`
	ProfitPercent           Number `json:"profit_percent"`
	CumulativeProfitUSDT    Number `json:"cumulative_profit_usdt"`
	CumulativeProfitPercent Number `json:"cumulative_profit_percent"`
	RunupUSDT               Number `json:"runup_usdt"`
	RunupPercent            Number `json:"runup_percent"`
	RunUpUSDT               Number `json:"run-up_usdt"`
	RunUpPercent            Number `json:"run-up_percent"`
	DrawdownUSDT            Number `json:"drawdown_usdt"`
	DrawdownPercent         Number `json:"drawdown_percent"`
}

// Runup returns the run-up pair, accepting both key spellings.
func (l Leg) Runup() (usdt, percent Number) {
	usdt, percent = l.RunupUSDT, l.RunupPercent
	if !usdt.Valid() {
		usdt = l.RunUpUSDT
	}
	if !percent.Valid() {
		percent = l.RunUpPercent
	}
	return usdt, percent
}

// TradeRecord is one trade of the export with its entry and exit legs.
type TradeRecord struct {
	TradeNumber Number `json:"trade_number"`
	Entries     []Leg  `json:"entries"`
	Exits       []Leg  `json:"exits"`
}

// Document is a backtest export as produced by the charting platform.
type Document struct {
	FileName       string        `json:"file_name"`
	Performance    Section       `json:"performance"`
	TradesAnalysis Section       `json:"trades_analysis"`
	RiskRatios     Section       `json:"risk_performance_ratios"`
	Trades         []TradeRecord `json:"trades"`
}

// Parse decodes one export document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, core.WrapError(core.ErrParseFailed, err)
	}
	return &doc, nil
}
