// Package runner orchestrates one processing pass: for each station it loads
// today's observations and the historical record, computes the climatological
// baseline, classifies today's average temperature, reconciles the heatmap
// store and publishes the result record.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/heatcheck/internal/climatology"
	"github.com/lox/heatcheck/internal/heatmap"
	"github.com/lox/heatcheck/internal/metrics"
	"github.com/lox/heatcheck/internal/models"
	"github.com/lox/heatcheck/internal/render"
	"github.com/lox/heatcheck/internal/store"
)

// CurrentFetcher supplies today's running extremes for a station.
type CurrentFetcher interface {
	FetchCurrent(station models.Station, loc *time.Location, now time.Time) (*models.CurrentConditions, error)
}

type Runner struct {
	store      *store.Store
	heatmap    *heatmap.Store
	current    CurrentFetcher
	output     *Output
	clock      clockwork.Clock
	windowDays int
	workers    int
}

func New(st *store.Store, hm *heatmap.Store, current CurrentFetcher, output *Output, clock clockwork.Clock) *Runner {
	return &Runner{
		store:      st,
		heatmap:    hm,
		current:    current,
		output:     output,
		clock:      clock,
		windowDays: climatology.DefaultWindowDays,
		workers:    4,
	}
}

// SetWindowDays overrides the climatology window half-width.
func (r *Runner) SetWindowDays(days int) { r.windowDays = days }

// SetWorkers bounds how many stations are processed concurrently.
func (r *Runner) SetWorkers(n int) {
	if n > 0 {
		r.workers = n
	}
}

// ProcessAll runs every active station. Stations are independent, so they run
// on a bounded worker pool, and a failure in one never aborts the others: it
// is logged with the station's identity and cause, its writes are skipped,
// and previously published output stays in place.
func (r *Runner) ProcessAll(ctx context.Context) error {
	started := r.clock.Now()

	stations, err := r.store.GetActiveStations()
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, station := range stations {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(station models.Station) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := r.ProcessStation(ctx, station); err != nil {
				log.Printf("runner: station %s (%s): %v", station.StationID, station.Label, err)
				metrics.StationsProcessed.WithLabelValues(station.StationID, "error").Inc()
				metrics.StationFailures.WithLabelValues(station.StationID, failureCause(err)).Inc()
				return
			}
			metrics.StationsProcessed.WithLabelValues(station.StationID, "ok").Inc()
		}(station)
	}
	wg.Wait()

	metrics.RunDuration.Observe(r.clock.Since(started).Seconds())
	return ctx.Err()
}

func failureCause(err error) string {
	var alignErr *climatology.DateAlignmentError
	switch {
	case errors.Is(err, climatology.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, climatology.ErrMissingCurrentObservation):
		return "missing_current_observation"
	case errors.Is(err, heatmap.ErrMalformedStore):
		return "malformed_store"
	case errors.As(err, &alignErr):
		return "date_alignment"
	default:
		return "other"
	}
}

// ProcessStation computes and publishes everything for one station. All
// computation happens before any write, so a failing station leaves no
// partial output behind.
func (r *Runner) ProcessStation(ctx context.Context, station models.Station) error {
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		return &climatology.DateAlignmentError{StationID: station.StationID, Reason: fmt.Sprintf("load timezone %q: %v", station.Timezone, err)}
	}

	now := r.clock.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	// A dead feed degrades to an explicit missing observation rather than
	// failing the station: the public site keeps its last-good numbers.
	cond := &models.CurrentConditions{StationID: station.StationID, Date: today}
	if fetched, err := r.current.FetchCurrent(station, loc, now); err != nil {
		log.Printf("runner: station %s: current feed unavailable: %v", station.StationID, err)
	} else {
		cond = fetched
	}

	record, err := r.store.GetHistoricalRecord(station.StationID)
	if err != nil {
		return fmt.Errorf("load historical record: %w", err)
	}
	if len(record) == 0 {
		return fmt.Errorf("no historical record: %w", climatology.ErrInsufficientData)
	}

	window, err := climatology.SelectWindow(record, today, r.windowDays)
	if err != nil {
		return err
	}

	table := climatology.ComputeTable(window)
	cuts, err := table.CutpointsFor("Tavg")
	if err != nil {
		return err
	}

	tavg := cond.TempAvg()

	result := models.StationResult{
		StationID:    station.StationID,
		StationName:  station.Name,
		StationLabel: station.Label,
		RecordSpan:   station.RecordSpan(),
		UpdatedAt:    now,
	}

	percent := sql.NullFloat64{}
	category, err := climatology.Classify(tavg, *cuts)
	switch {
	case err == nil:
		result.Answer = category.Answer()
		result.Comment = category.Comment()
		result.Maximum = nullPtr(cond.TempMax)
		result.Minimum = nullPtr(cond.TempMin)
		result.CurrentAverage = nullPtr(tavg)

		// Ranked against the full record, not the windowed subset.
		sample := tavgSample(record)
		if len(sample) > 0 {
			pct := climatology.AveragePercent(sample, tavg.Float64)
			result.AveragePercent = &pct
			percent = sql.NullFloat64{Float64: float64(pct), Valid: true}
		}
	case errors.Is(err, climatology.ErrMissingCurrentObservation):
		result.Answer = "NA"
		result.Comment = "No current observations"
		result.Maximum = nullPtr(cond.TempMax)
		result.Minimum = nullPtr(cond.TempMin)
	default:
		return err
	}

	// Writes start here. The heatmap reconcile is a no-op for a missing
	// percentile, so an outage never erases a published value.
	rows, err := r.heatmap.Reconcile(station.StationID, today.Year(), today, percent)
	if err != nil {
		return fmt.Errorf("reconcile heatmap: %w", err)
	}
	if percent.Valid {
		metrics.HeatmapRowsWritten.WithLabelValues(station.StationID).Inc()
	}

	grid, err := heatmap.BuildGrid(rows, today.Year())
	if err != nil {
		return err
	}

	if err := r.output.WriteResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := r.output.WritePercentiles(station.StationID, table.Display()); err != nil {
		return fmt.Errorf("write percentiles: %w", err)
	}
	if err := r.output.WriteHeatmapImage(station.StationID, render.Calendar(grid, today.Year())); err != nil {
		return fmt.Errorf("write heatmap image: %w", err)
	}

	return nil
}

func tavgSample(record []models.DailyObservation) []float64 {
	var sample []float64
	for _, day := range record {
		if day.TempAvg.Valid {
			sample = append(sample, day.TempAvg.Float64)
		}
	}
	return sample
}

func nullPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
