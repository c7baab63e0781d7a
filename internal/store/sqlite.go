package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/heatcheck/internal/models"
)

// Store wraps the SQLite database holding station configuration and the
// read-only historical daily-observation record.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertStation(st models.Station) error {
	_, err := s.db.Exec(`
		INSERT INTO stations (station_id, name, label, timezone, latitude, longitude, record_start, record_end, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			name = excluded.name,
			label = excluded.label,
			timezone = excluded.timezone,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			record_start = excluded.record_start,
			record_end = excluded.record_end,
			active = excluded.active
	`, st.StationID, st.Name, st.Label, st.Timezone, st.Latitude, st.Longitude, st.RecordStart, st.RecordEnd, st.Active)
	return err
}

func (s *Store) GetActiveStations() ([]models.Station, error) {
	rows, err := s.db.Query(`
		SELECT station_id, name, label, timezone, latitude, longitude, record_start, record_end, active
		FROM stations WHERE active = TRUE ORDER BY station_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.StationID, &st.Name, &st.Label, &st.Timezone, &st.Latitude, &st.Longitude, &st.RecordStart, &st.RecordEnd, &st.Active); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func (s *Store) GetStation(stationID string) (*models.Station, error) {
	row := s.db.QueryRow(`
		SELECT station_id, name, label, timezone, latitude, longitude, record_start, record_end, active
		FROM stations WHERE station_id = ?
	`, stationID)

	var st models.Station
	err := row.Scan(&st.StationID, &st.Name, &st.Label, &st.Timezone, &st.Latitude, &st.Longitude, &st.RecordStart, &st.RecordEnd, &st.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// InsertDailyObservation writes one historical day, replacing any earlier row
// for the same (station, date) so backfills are idempotent.
func (s *Store) InsertDailyObservation(obs models.DailyObservation) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_observations (station_id, date, year, month, day, temp_max, temp_min)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, date) DO UPDATE SET
			temp_max = excluded.temp_max,
			temp_min = excluded.temp_min
	`, obs.StationID, obs.Date.Format("2006-01-02"), obs.Year, obs.Month, obs.Day, obs.TempMax, obs.TempMin)
	return err
}

// GetHistoricalRecord returns a station's full daily record in date order.
// Tavg is derived as (max+min)/2 and stays missing unless both extremes are
// present; it is never zero-filled.
func (s *Store) GetHistoricalRecord(stationID string) ([]models.DailyObservation, error) {
	rows, err := s.db.Query(`
		SELECT station_id, date, year, month, day, temp_max, temp_min
		FROM daily_observations
		WHERE station_id = ?
		ORDER BY date ASC
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var record []models.DailyObservation
	for rows.Next() {
		var obs models.DailyObservation
		var dateStr string
		if err := rows.Scan(&obs.StationID, &dateStr, &obs.Year, &obs.Month, &obs.Day, &obs.TempMax, &obs.TempMin); err != nil {
			return nil, err
		}
		obs.Date, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse observation date %q: %w", dateStr, err)
		}
		if obs.TempMax.Valid && obs.TempMin.Valid {
			obs.TempAvg = sql.NullFloat64{Float64: (obs.TempMax.Float64 + obs.TempMin.Float64) / 2, Valid: true}
		}
		record = append(record, obs)
	}
	return record, rows.Err()
}

// CountDailyObservations reports how many historical days a station has, used
// by the backfill command for progress logging.
func (s *Store) CountDailyObservations(stationID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_observations WHERE station_id = ?`, stationID).Scan(&count)
	return count, err
}
