package model

import "time"

// DateLayout is the date format used in results and logs.
const DateLayout = "2006-01-02"

// ForecastRecord is the next-session OHLCV prediction.
type ForecastRecord struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Historical carries trailing closes for charting.
type Historical struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
}

// Predicted is the wire form of a ForecastRecord. Date and Price are null on failure.
type Predicted struct {
	Date   *string  `json:"date"`
	Price  *float64 `json:"price"`
	Open   float64  `json:"open,omitempty"`
	High   float64  `json:"high,omitempty"`
	Low    float64  `json:"low,omitempty"`
	Close  float64  `json:"close,omitempty"`
	Volume int64    `json:"volume,omitempty"`
}

// ForecastResult is what the inference pipeline hands to its callers, successful or not.
type ForecastResult struct {
	Symbol       string     `json:"symbol,omitempty"`
	Error        string     `json:"error,omitempty"`
	Historical   Historical `json:"historical"`
	Predicted    Predicted  `json:"predicted"`
	ModelVersion string     `json:"model_version,omitempty"`

	// Record and LastClose are kept for in-process callers (CLI summary, recorder).
	Record    *ForecastRecord `json:"-"`
	LastClose float64         `json:"-"`
	LastDate  time.Time       `json:"-"`
}

// OK reports whether the result carries a forecast.
func (r ForecastResult) OK() bool { return r.Error == "" && r.Record != nil }

// ErrorResult builds a failed result with empty placeholders so callers can render uniformly.
func ErrorResult(symbol, msg string) ForecastResult {
	return ForecastResult{
		Symbol:     symbol,
		Error:      msg,
		Historical: Historical{Dates: []string{}, Prices: []float64{}},
	}
}

// Direction classifies the expected move.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
)

// Summary compares a forecast against the last observed close.
type Summary struct {
	LastDate      time.Time
	LastClose     float64
	Forecast      ForecastRecord
	Change        float64
	ChangePercent float64
	Direction     Direction
}
