package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoryWindow_SortsAndTruncates(t *testing.T) {
	d := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 30, 0, 0, time.UTC) }
	w, err := NewHistoryWindow("X", []Bar{
		{Date: d(6, 14), Close: 3},
		{Date: d(4, 14), Close: 1},
		{Date: d(5, 14), Close: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, w.Closes())
	assert.Equal(t, 0, w.Bars[0].Date.Hour())

	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, 3.0, last.Close)
}

func TestNewHistoryWindow_RejectsDuplicates(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := NewHistoryWindow("X", []Bar{{Date: day}, {Date: day.Add(3 * time.Hour)}})
	assert.Error(t, err)
}

func TestHistoryWindow_Empty(t *testing.T) {
	w, err := NewHistoryWindow("X", nil)
	require.NoError(t, err)
	_, ok := w.Last()
	assert.False(t, ok)
	assert.Equal(t, 0, w.Len())
}

func TestFeatureRow_VectorOrder(t *testing.T) {
	r := FeatureRow{
		Bar:     Bar{Open: 1, High: 2, Low: 3, Close: 4, Volume: 5},
		MAShort: 6, MALong: 7, Return: 8,
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, r.Vector())
	assert.Len(t, FeatureNames, FeatureCount)
}

func TestErrorResult_EmptyPlaceholders(t *testing.T) {
	r := ErrorResult("X", "boom")
	assert.False(t, r.OK())
	assert.NotNil(t, r.Historical.Dates)
	assert.NotNil(t, r.Historical.Prices)
	assert.Empty(t, r.Historical.Dates)
	assert.Nil(t, r.Predicted.Date)
	assert.Nil(t, r.Predicted.Price)
}
