// Package heatmap maintains the durable per-station, per-year table of daily
// percentile ranks behind the calendar heatmap.
package heatmap

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrMalformedStore means a row-store document does not have the expected shape.
var ErrMalformedStore = errors.New("malformed heatmap store")

// Row is one day's percentile rank. Percentile is a pointer so that a missing
// value round-trips as JSON null instead of collapsing to zero.
type Row struct {
	Date       string   `json:"date"` // local calendar date, YYYY-MM-DD
	Percentile *float64 `json:"percentile"`
}

// Store persists one JSON document of rows per (station, year). Every write
// replaces the whole document via write-to-temp plus atomic rename, and a
// per-key advisory lock serialises read-modify-write cycles within the
// process, so overlapping runs cannot interleave partial state.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) path(stationID string, year int) string {
	return filepath.Join(s.dir, fmt.Sprintf("heatmap_%s_%d.json", stationID, year))
}

func (s *Store) lockFor(stationID string, year int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d", stationID, year)
	if s.locks[key] == nil {
		s.locks[key] = &sync.Mutex{}
	}
	return s.locks[key]
}

// Load reads the row set for a (station, year). A store that does not exist
// yet is an empty row set, not an error.
func (s *Store) Load(stationID string, year int) ([]Row, error) {
	data, err := os.ReadFile(s.path(stationID, year))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read heatmap store %s/%d: %w", stationID, year, err)
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode heatmap store %s/%d: %w", stationID, year, ErrMalformedStore)
	}
	for _, row := range rows {
		if _, err := time.Parse("2006-01-02", row.Date); err != nil {
			return nil, fmt.Errorf("heatmap store %s/%d: bad date %q: %w", stationID, year, row.Date, ErrMalformedStore)
		}
		if row.Percentile != nil && (*row.Percentile < 0 || *row.Percentile > 100) {
			return nil, fmt.Errorf("heatmap store %s/%d: percentile %v out of range: %w", stationID, year, *row.Percentile, ErrMalformedStore)
		}
	}
	return rows, nil
}

// Reconcile applies today's percentile to the (station, year) row set and
// rewrites it durably:
//   - an existing row for the date is overwritten in place;
//   - otherwise a new row is appended;
//   - a missing percentile mutates nothing, so a feed outage never erases a
//     previously published value.
//
// It returns the full row set as persisted.
func (s *Store) Reconcile(stationID string, year int, date time.Time, percentile sql.NullFloat64) ([]Row, error) {
	lock := s.lockFor(stationID, year)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.Load(stationID, year)
	if err != nil {
		return nil, err
	}

	if !percentile.Valid {
		return rows, nil
	}
	if percentile.Float64 < 0 || percentile.Float64 > 100 {
		return nil, fmt.Errorf("percentile %v out of range [0,100]", percentile.Float64)
	}

	dateKey := date.Format("2006-01-02")
	value := percentile.Float64

	updated := false
	for i := range rows {
		if rows[i].Date == dateKey {
			rows[i].Percentile = &value
			updated = true
			break
		}
	}
	if !updated {
		rows = append(rows, Row{Date: dateKey, Percentile: &value})
	}

	if err := s.write(stationID, year, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) write(stationID string, year int, rows []Row) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create heatmap dir: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode heatmap store %s/%d: %w", stationID, year, err)
	}

	final := s.path(stationID, year)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace heatmap store %s/%d: %w", stationID, year, err)
	}
	return nil
}
