package report

import (
	"regexp"
	"strings"

	"github.com/newthinker/stratboard/internal/core"
)

var tickerPattern = regexp.MustCompile(`[A-Z]+USDT(?:\.P)?`)

// knownExchanges is checked in order; the first literal match wins.
var knownExchanges = []string{
	"BINANCE",
	"BYBIT",
	"OKX",
	"BITGET",
	"KUCOIN",
	"COINBASE",
	"KRAKEN",
}

// Timeframe is the bar interval assigned to a report.
type Timeframe struct {
	Name    string
	Minutes int
}

// DefaultTimeframe is assigned when no timeframe is configured.
var DefaultTimeframe = Timeframe{Name: "1h", Minutes: 60}

// Identity is the flat identification key of a document.
type Identity struct {
	FileName  string
	Symbol    string
	Exchange  string
	Timeframe Timeframe
}

// Identify derives symbol, exchange and timeframe from an export file name.
//
// The timeframe is not read from the file name: every report gets tf. Parsing
// it from the name needs a confirmed naming convention for exports.
func Identify(fileName string, tf Timeframe) Identity {
	if tf.Name == "" {
		tf = DefaultTimeframe
	}

	id := Identity{
		FileName:  fileName,
		Symbol:    core.Unknown,
		Exchange:  core.Unknown,
		Timeframe: tf,
	}

	if m := tickerPattern.FindString(fileName); m != "" {
		id.Symbol = m
	}

	for _, ex := range knownExchanges {
		if strings.Contains(fileName, ex) {
			id.Exchange = ex
			break
		}
	}

	return id
}
