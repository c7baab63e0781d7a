package climatology

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/heatcheck/internal/models"
)

func day(year int, month time.Month, dom int, tavg float64) models.DailyObservation {
	return models.DailyObservation{
		Year:    year,
		Month:   int(month),
		Day:     dom,
		Date:    time.Date(year, month, dom, 0, 0, 0, 0, time.UTC),
		TempMax: sql.NullFloat64{Float64: tavg + 5, Valid: true},
		TempMin: sql.NullFloat64{Float64: tavg - 5, Valid: true},
		TempAvg: sql.NullFloat64{Float64: tavg, Valid: true},
	}
}

func TestSelectWindow_PoolsAcrossYears(t *testing.T) {
	record := []models.DailyObservation{
		day(2020, time.June, 10, 12),
		day(2021, time.June, 15, 14),
		day(2022, time.June, 20, 16),
		day(2022, time.December, 15, 28), // far outside the window
	}

	target := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	selected, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	require.Len(t, selected, 3)
	for _, d := range selected {
		assert.Equal(t, int(time.June), d.Month)
	}
}

func TestSelectWindow_WrapsYearBoundary(t *testing.T) {
	record := []models.DailyObservation{
		day(2019, time.December, 28, 20),
		day(2020, time.December, 31, 22),
		day(2021, time.January, 2, 24),
		day(2021, time.January, 10, 26),
		day(2021, time.February, 1, 30), // outside
	}

	// Jan 3 ± 7 reaches back to Dec 27 of the prior year.
	target := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	selected, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	require.Len(t, selected, 4)
}

func TestSelectWindow_BoundaryDayIncluded(t *testing.T) {
	record := []models.DailyObservation{
		day(2020, time.June, 8, 10),  // exactly 7 days out
		day(2020, time.June, 23, 12), // 8 days out
	}

	target := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	selected, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, 8, selected[0].Day)
}

func TestSelectWindow_LeapDayTolerated(t *testing.T) {
	record := []models.DailyObservation{
		day(2020, time.February, 29, 18),
	}

	// Non-leap target year: Feb 29 normalises to Mar 1, still inside ± 7 of Feb 25.
	target := time.Date(2023, time.February, 25, 0, 0, 0, 0, time.UTC)
	selected, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	require.Len(t, selected, 1)
}

func TestSelectWindow_EmptySelection(t *testing.T) {
	record := []models.DailyObservation{
		day(2020, time.December, 25, 28),
	}

	target := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	_, err := SelectWindow(record, target, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestSelectWindow_Deterministic(t *testing.T) {
	record := []models.DailyObservation{
		day(2018, time.June, 12, 11),
		day(2019, time.June, 14, 13),
		day(2020, time.June, 18, 15),
	}
	target := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	first, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	second, err := SelectWindow(record, target, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
