package runner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/heatcheck/internal/climatology"
	"github.com/lox/heatcheck/internal/heatmap"
	"github.com/lox/heatcheck/internal/models"
	"github.com/lox/heatcheck/internal/store"
)

// 12:00 local on 15 June 2024 in Sydney.
var testInstant = time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	cond *models.CurrentConditions
	err  error
}

func (f *fakeFetcher) FetchCurrent(station models.Station, loc *time.Location, now time.Time) (*models.CurrentConditions, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cond, nil
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	require.NoError(t, st.Migrate())
	return st
}

func seedStation(t *testing.T, st *store.Store, id string) models.Station {
	t.Helper()
	station := models.Station{
		StationID:   id,
		Name:        "Sydney Observatory Hill",
		Label:       "Sydney",
		Timezone:    "Australia/Sydney",
		RecordStart: 1910,
		RecordEnd:   2024,
		Active:      true,
	}
	require.NoError(t, st.UpsertStation(station))
	return station
}

// seedHistory inserts one June 15 per year with Tavg 10,12,...,28, the
// ten-value worked sample.
func seedHistory(t *testing.T, st *store.Store, id string) {
	t.Helper()
	for i := 0; i < 10; i++ {
		tavg := float64(10 + 2*i)
		obs := models.DailyObservation{
			StationID: id,
			Year:      2010 + i,
			Month:     6,
			Day:       15,
			Date:      time.Date(2010+i, 6, 15, 0, 0, 0, 0, time.UTC),
			TempMax:   sql.NullFloat64{Float64: tavg + 5, Valid: true},
			TempMin:   sql.NullFloat64{Float64: tavg - 5, Valid: true},
		}
		require.NoError(t, st.InsertDailyObservation(obs))
	}
}

func newTestRunner(t *testing.T, st *store.Store, fetcher CurrentFetcher) (*Runner, *heatmap.Store, *Output) {
	t.Helper()
	hm := heatmap.NewStore(t.TempDir())
	out := NewOutput(t.TempDir())
	r := New(st, hm, fetcher, out, clockwork.NewFakeClockAt(testInstant))
	r.SetWorkers(1)
	return r, hm, out
}

func currentConditions(tmax, tmin float64) *models.CurrentConditions {
	return &models.CurrentConditions{
		StationID: "066062",
		TempMax:   sql.NullFloat64{Float64: tmax, Valid: true},
		TempMin:   sql.NullFloat64{Float64: tmin, Valid: true},
	}
}

func TestProcessStation_EndToEnd(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	seedHistory(t, st, "066062")

	r, hm, out := newTestRunner(t, st, &fakeFetcher{cond: currentConditions(20, 10)})
	require.NoError(t, r.ProcessStation(context.Background(), station))

	data, err := os.ReadFile(out.ResultPath("066062"))
	require.NoError(t, err)

	var result models.StationResult
	require.NoError(t, json.Unmarshal(data, &result))

	// Tavg 15 lands in [p10, p40) of the worked sample.
	assert.Equal(t, "No", result.Answer)
	assert.Equal(t, "It's colder than average", result.Comment)
	require.NotNil(t, result.CurrentAverage)
	assert.Equal(t, 15.0, *result.CurrentAverage)
	require.NotNil(t, result.AveragePercent)
	assert.Equal(t, 36, *result.AveragePercent)
	assert.Equal(t, "1910-2024", result.RecordSpan)

	rows, err := hm.Load("066062", 2024)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-06-15", rows[0].Date)
	assert.Equal(t, 36.0, *rows[0].Percentile)

	// The distribution-plot stats and the rendered calendar go out together.
	_, err = os.Stat(out.ResultPath("066062"))
	assert.NoError(t, err)
	assert.FileExists(t, out.dir+"/percentiles_066062.json")
	assert.FileExists(t, out.dir+"/heatmap_066062.png")
}

func TestProcessStation_Converges(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	seedHistory(t, st, "066062")

	r, hm, _ := newTestRunner(t, st, &fakeFetcher{cond: currentConditions(20, 10)})
	require.NoError(t, r.ProcessStation(context.Background(), station))
	require.NoError(t, r.ProcessStation(context.Background(), station))

	rows, err := hm.Load("066062", 2024)
	require.NoError(t, err)
	require.Len(t, rows, 1, "re-running the same day must not duplicate the row")
}

func TestProcessStation_MissingCurrentObservation(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	seedHistory(t, st, "066062")

	fetcher := &fakeFetcher{cond: &models.CurrentConditions{StationID: "066062"}}
	r, hm, out := newTestRunner(t, st, fetcher)
	require.NoError(t, r.ProcessStation(context.Background(), station))

	data, err := os.ReadFile(out.ResultPath("066062"))
	require.NoError(t, err)

	var result models.StationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "NA", result.Answer)
	assert.Nil(t, result.CurrentAverage)
	assert.Nil(t, result.AveragePercent)

	// Never persist a missing percentile.
	rows, err := hm.Load("066062", 2024)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestProcessStation_FeedErrorDegradesToMissing(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	seedHistory(t, st, "066062")

	r, _, out := newTestRunner(t, st, &fakeFetcher{err: errors.New("feed down")})
	require.NoError(t, r.ProcessStation(context.Background(), station))

	data, err := os.ReadFile(out.ResultPath("066062"))
	require.NoError(t, err)

	var result models.StationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "NA", result.Answer)
}

func TestProcessStation_NoHistory(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")

	r, _, out := newTestRunner(t, st, &fakeFetcher{cond: currentConditions(20, 10)})
	err := r.ProcessStation(context.Background(), station)
	require.Error(t, err)

	// A failing station publishes nothing.
	_, statErr := os.Stat(out.ResultPath("066062"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestProcessStation_BadTimezone(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	station.Timezone = "Nowhere/Invalid"

	r, _, _ := newTestRunner(t, st, &fakeFetcher{cond: currentConditions(20, 10)})
	err := r.ProcessStation(context.Background(), station)
	require.Error(t, err)
	assert.Equal(t, "date_alignment", failureCause(err))
}

func TestProcessAll_IsolatesFailures(t *testing.T) {
	st := setupStore(t)
	good := seedStation(t, st, "066062")
	seedHistory(t, st, good.StationID)

	// Second station has no historical record at all.
	bad := models.Station{StationID: "094029", Name: "Hobart", Label: "Hobart", Timezone: "Australia/Hobart", Active: true}
	require.NoError(t, st.UpsertStation(bad))

	r, hm, out := newTestRunner(t, st, &fakeFetcher{cond: currentConditions(20, 10)})
	require.NoError(t, r.ProcessAll(context.Background()))

	// The good station's outputs exist despite the bad one failing.
	_, err := os.Stat(out.ResultPath("066062"))
	assert.NoError(t, err)

	rows, err := hm.Load("066062", 2024)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = os.Stat(out.ResultPath("094029"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestProcessStation_StaleOutputPreserved(t *testing.T) {
	st := setupStore(t)
	station := seedStation(t, st, "066062")
	seedHistory(t, st, "066062")

	fetcher := &fakeFetcher{cond: currentConditions(20, 10)}
	r, _, out := newTestRunner(t, st, fetcher)
	require.NoError(t, r.ProcessStation(context.Background(), station))

	before, err := os.ReadFile(out.ResultPath("066062"))
	require.NoError(t, err)

	// Break the station (timezone) and re-run: the old result must survive.
	station.Timezone = "Nowhere/Invalid"
	require.Error(t, r.ProcessStation(context.Background(), station))

	after, err := os.ReadFile(out.ResultPath("066062"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFailureCause(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrap: %w", climatology.ErrInsufficientData), "insufficient_data"},
		{fmt.Errorf("wrap: %w", climatology.ErrMissingCurrentObservation), "missing_current_observation"},
		{fmt.Errorf("wrap: %w", heatmap.ErrMalformedStore), "malformed_store"},
		{errors.New("anything else"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, failureCause(tt.err))
	}
}
