package model

import (
	"fmt"
	"sort"
	"time"
)

// Bar represents one trading day of an instrument.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TradingDay truncates t to its calendar day in UTC.
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HistoryWindow holds the daily bars of a single symbol, ascending by date.
type HistoryWindow struct {
	Symbol    string
	Bars      []Bar
	FetchedAt time.Time
}

// NewHistoryWindow sorts bars by date and rejects duplicate trading days.
func NewHistoryWindow(symbol string, bars []Bar) (*HistoryWindow, error) {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = TradingDay(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, fmt.Errorf("duplicate bar for %s on %s", symbol, sorted[i].Date.Format(DateLayout))
		}
	}
	return &HistoryWindow{Symbol: symbol, Bars: sorted, FetchedAt: time.Now()}, nil
}

// Len returns the number of bars.
func (w *HistoryWindow) Len() int { return len(w.Bars) }

// Closes extracts the closing prices in order.
func (w *HistoryWindow) Closes() []float64 {
	closes := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar. ok is false for an empty window.
func (w *HistoryWindow) Last() (Bar, bool) {
	if len(w.Bars) == 0 {
		return Bar{}, false
	}
	return w.Bars[len(w.Bars)-1], true
}
