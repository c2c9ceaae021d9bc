package pipeline

import "PriceForecaster/internal/model"

// Summarize compares a successful forecast with the last observed close.
// A non-negative expected change is bullish.
func Summarize(res model.ForecastResult) (model.Summary, bool) {
	if !res.OK() {
		return model.Summary{}, false
	}
	s := model.Summary{
		LastDate:  res.LastDate,
		LastClose: res.LastClose,
		Forecast:  *res.Record,
		Change:    res.Record.Close - res.LastClose,
		Direction: model.Bullish,
	}
	if res.LastClose != 0 {
		s.ChangePercent = s.Change / res.LastClose * 100
	}
	if s.Change < 0 {
		s.Direction = model.Bearish
	}
	return s, true
}
