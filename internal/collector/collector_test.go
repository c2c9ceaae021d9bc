package collector

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"PriceForecaster/internal/cache"
	"PriceForecaster/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestCollect_FiltersAndOrders(t *testing.T) {
	f := &MockFetcher{Bars: []model.Bar{
		{Date: day(2024, 1, 4), Open: 1, High: 1, Low: 1, Close: 11, Volume: 1},
		{Date: day(2024, 1, 2), Open: 1, High: 1, Low: 1, Close: 10, Volume: 1},
		// invalid
		{Date: day(2024, 1, 3), Close: 0},
		{Date: day(2024, 1, 5), Open: 1, High: 1, Low: 1, Close: math.NaN()},
		// same day as the first bar, last one wins
		{Date: day(2024, 1, 4).Add(5 * time.Hour), Open: 1, High: 1, Low: 1, Close: 12},
		// outside [from, to)
		{Date: day(2023, 12, 29), Open: 1, High: 1, Low: 1, Close: 9},
		{Date: day(2024, 1, 8), Open: 1, High: 1, Low: 1, Close: 13},
	}}
	c := NewCollector(f, zerolog.Nop())

	w, err := c.Collect(context.Background(), "X", day(2024, 1, 1), day(2024, 1, 8))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 12}, w.Closes())
	assert.Equal(t, "X", w.Symbol)
}

func TestCollect_UpstreamErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	c := NewCollector(&MockFetcher{Err: boom}, zerolog.Nop())
	_, err := c.Collect(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	var upstream *model.UpstreamFetchError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "mock", upstream.Source)
	assert.ErrorIs(t, err, boom)

	c = NewCollector(&MockFetcher{Bars: []model.Bar{}}, zerolog.Nop())
	_, err = c.Collect(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, errNoData)
}

func TestTrainingWindow_EndsYesterday(t *testing.T) {
	c := NewCollector(&MockFetcher{Price: 50}, zerolog.Nop())
	c.now = func() time.Time { return time.Date(2024, 3, 14, 15, 0, 0, 0, time.UTC) } // Thursday

	w, err := c.TrainingWindow(context.Background(), "X", 30*24*time.Hour)
	require.NoError(t, err)
	last, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, day(2024, 3, 13), last.Date)

	w, err = c.LatestWindow(context.Background(), "X", 30*24*time.Hour)
	require.NoError(t, err)
	last, _ = w.Last()
	assert.Equal(t, day(2024, 3, 14), last.Date)
}

func TestGenerateBars_WeekdaysOnly(t *testing.T) {
	bars := GenerateBars(100, day(2024, 1, 1), day(2024, 1, 15))
	require.Len(t, bars, 10)
	for _, b := range bars {
		assert.NotEqual(t, time.Saturday, b.Date.Weekday())
		assert.NotEqual(t, time.Sunday, b.Date.Weekday())
		assert.Greater(t, b.Close, 0.0)
	}
}

const yahooBody = `{"chart":{"result":[{"meta":{"gmtoffset":19800},
"timestamp":[1704253500,1704339900,1704426300],
"indicators":{"quote":[{
 "open":[600.5,null,610.0],
 "high":[605.0,null,615.5],
 "low":[598.0,null,607.25],
 "close":[603.1,null,612.4],
 "volume":[1500000,null,1700000]}]}}],"error":null}}`

func TestYahooFetcher(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/SBIN.NS", r.URL.Path)
		query = map[string]string{
			"interval": r.URL.Query().Get("interval"),
			"period1":  r.URL.Query().Get("period1"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(yahooBody))
	}))
	defer srv.Close()

	f := newYahooFetcher(srv.URL, "", 5*time.Second)
	bars, err := f.FetchDailyBars(context.Background(), "SBIN.NS", day(2024, 1, 1), day(2024, 1, 6))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day(2024, 1, 3), bars[0].Date)
	assert.Equal(t, 603.1, bars[0].Close)
	assert.Equal(t, 1500000.0, bars[0].Volume)
	assert.Equal(t, day(2024, 1, 5), bars[1].Date)
	assert.Equal(t, "1d", query["interval"])
	assert.Equal(t, "1704067200", query["period1"])
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := newYahooFetcher(srv.URL, "", 5*time.Second).FetchDailyBars(context.Background(), "NOPE", day(2024, 1, 1), day(2024, 2, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestYahooFetcher_SymbolMap(t *testing.T) {
	f := NewYahooFetcher("", time.Second)
	assert.Equal(t, "^GSPC", f.yahooSymbol("SPX500"))
	assert.Equal(t, "SBIN.NS", f.yahooSymbol("SBIN.NS"))
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bars/daily", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"timestamp":1704240000,"open":1,"high":2,"low":0.5,"close":1.5,"volume":10}]`))
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", "", 5*time.Second)
	bars, err := f.FetchDailyBars(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, day(2024, 1, 3), bars[0].Date)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestRESTFetcher_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewRESTFetcher(srv.URL, "", "", time.Second).FetchDailyBars(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCachedFetcher(t *testing.T) {
	ctx := context.Background()
	inner := &MockFetcher{Price: 10}
	f := NewCachedFetcher(inner, cache.NewMemoryCache(8), time.Hour, zerolog.Nop())
	assert.Equal(t, "mock", f.Name())

	a, err := f.FetchDailyBars(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	b, err := f.FetchDailyBars(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls())
	require.Len(t, b, len(a))
	assert.True(t, a[0].Date.Equal(b[0].Date))
	assert.Equal(t, a[len(a)-1].Close, b[len(b)-1].Close)

	_, err = f.FetchDailyBars(ctx, "Y", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestCachedFetcher_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	inner := &MockFetcher{Err: errors.New("down")}
	f := NewCachedFetcher(inner, cache.NewMemoryCache(8), time.Hour, zerolog.Nop())

	_, err := f.FetchDailyBars(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	require.Error(t, err)
	inner.Err = nil
	_, err = f.FetchDailyBars(ctx, "X", day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestMockFetcher_ConcurrentCalls(t *testing.T) {
	m := &MockFetcher{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.FetchDailyBars(context.Background(), "X", day(2024, 1, 1), day(2024, 1, 10))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, m.Calls())
}
