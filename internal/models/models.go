package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Station is the immutable configuration for one observation site.
type Station struct {
	StationID   string
	Name        string
	Label       string
	Timezone    string
	Latitude    float64
	Longitude   float64
	RecordStart int // first year of the historical record
	RecordEnd   int // last year of the historical record
	Active      bool
}

// RecordSpan formats the historical record coverage for display, e.g. "1910-2024".
func (s Station) RecordSpan() string {
	if s.RecordStart == 0 || s.RecordEnd == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", s.RecordStart, s.RecordEnd)
}

// Observation is a raw sub-daily station reading as delivered by the current feed.
type Observation struct {
	StationID  string
	ObservedAt time.Time
	AirTemp    sql.NullFloat64
}

// DailyObservation is one historical day in a station's record. TempAvg is the
// mean of max and min, not a time-integrated average.
type DailyObservation struct {
	StationID string
	Year      int
	Month     int
	Day       int
	Date      time.Time
	TempMax   sql.NullFloat64
	TempMin   sql.NullFloat64
	TempAvg   sql.NullFloat64
}

// CurrentConditions holds today's running extremes from the current feed.
// Either field may be missing if the feed is down or the day has no readings yet.
type CurrentConditions struct {
	StationID string
	Date      time.Time
	TempMax   sql.NullFloat64
	TempMin   sql.NullFloat64
}

// TempAvg returns the mean of max and min, missing if either is missing.
func (c CurrentConditions) TempAvg() sql.NullFloat64 {
	if !c.TempMax.Valid || !c.TempMin.Valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: (c.TempMax.Float64 + c.TempMin.Float64) / 2, Valid: true}
}

// StationResult is the per-station output record handed to the public site.
// Missing inputs surface as null JSON fields, never as zero values.
type StationResult struct {
	StationID      string    `json:"station_id"`
	StationName    string    `json:"station_name"`
	StationLabel   string    `json:"station_label"`
	RecordSpan     string    `json:"record_span"`
	Answer         string    `json:"isit_answer"`
	Comment        string    `json:"isit_comment"`
	Maximum        *float64  `json:"isit_maximum"`
	Minimum        *float64  `json:"isit_minimum"`
	CurrentAverage *float64  `json:"isit_average"`
	AveragePercent *int      `json:"average_percent"`
	UpdatedAt      time.Time `json:"updated_at"`
}
