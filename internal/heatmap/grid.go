package heatmap

import (
	"database/sql"
	"fmt"
	"time"
)

// Grid is the dense day-of-month × month matrix of percentiles for one year.
// Cells with no row stay invalid, which the renderer draws as empty rather
// than zero. Index as [day-1][month-1].
type Grid [31][12]sql.NullFloat64

// Cell returns the value for a 1-based (day, month).
func (g *Grid) Cell(day, month int) sql.NullFloat64 {
	return g[day-1][month-1]
}

// BuildGrid projects a (station, year) row set onto the dense grid. Rows from
// other years are skipped; the per-year store should not contain any, but a
// hand-edited document must not corrupt the grid.
func BuildGrid(rows []Row, year int) (*Grid, error) {
	grid := &Grid{}
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, fmt.Errorf("grid: bad date %q: %w", row.Date, ErrMalformedStore)
		}
		if date.Year() != year || row.Percentile == nil {
			continue
		}
		grid[date.Day()-1][date.Month()-1] = sql.NullFloat64{Float64: *row.Percentile, Valid: true}
	}
	return grid, nil
}
