package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	r, err := NewSQLiteRecorder(path, zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordTrainingRun(&TrainingRun{
		RunID: "run-1", Symbol: "SBIN.NS", Status: StatusSuccess,
		Rows: 2300, Samples: 2240, TrainLoss: 0.0012, ValLoss: 0.0031,
		StartedAt: time.Now(), Duration: 3 * time.Second,
	}))
	require.NoError(t, r.RecordTrainingRun(&TrainingRun{
		RunID: "run-2", Symbol: "SBIN.NS", Status: StatusFailed,
		FailedStage: "Fetching", StartedAt: time.Now(), Error: "fetch SBIN.NS from yahoo: timeout",
	}))
	require.NoError(t, r.RecordForecast(&ForecastEvent{
		Symbol: "SBIN.NS", ModelVersion: "run-1", LastDate: "2024-03-15", LastClose: 750.1,
		ForecastDate: "2024-03-18", Open: 751, High: 760, Low: 745, Close: 755.5, Volume: 12000000,
	}))

	var runs, failed int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM training_runs`).Scan(&runs))
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM training_runs WHERE status = ?`, StatusFailed).Scan(&failed))
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, failed)

	var date string
	var close float64
	var volume int64
	require.NoError(t, r.db.QueryRow(`SELECT forecast_date, close, volume FROM forecasts`).Scan(&date, &close, &volume))
	assert.Equal(t, "2024-03-18", date)
	assert.Equal(t, 755.5, close)
	assert.Equal(t, int64(12000000), volume)
}

func TestSQLiteRecorder_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	r, err := NewSQLiteRecorder(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, r.RecordForecast(&ForecastEvent{Symbol: "X", Error: "persisted model state not found"}))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path, zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()
	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM forecasts`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordTrainingRun(&TrainingRun{}))
	assert.NoError(t, r.RecordForecast(&ForecastEvent{}))
	assert.NoError(t, r.Close())
}
