package model

// Feature indices. The order is persisted with every scaler state and must not change.
const (
	FeatureOpen = iota
	FeatureHigh
	FeatureLow
	FeatureClose
	FeatureVolume
	FeatureMAShort
	FeatureMALong
	FeatureReturn

	FeatureCount
)

// FeatureNames lists the engineered features in vector order.
var FeatureNames = []string{"open", "high", "low", "close", "volume", "ma_short", "ma_long", "return"}

// FeatureRow is a bar extended with its derived technical features.
type FeatureRow struct {
	Bar
	MAShort float64 `json:"ma_short"`
	MALong  float64 `json:"ma_long"`
	Return  float64 `json:"return"` // fractional close-to-close change
}

// Vector returns the row in FeatureNames order.
func (r FeatureRow) Vector() []float64 {
	return []float64{r.Open, r.High, r.Low, r.Close, r.Volume, r.MAShort, r.MALong, r.Return}
}
