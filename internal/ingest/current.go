package ingest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/heatcheck/internal/models"
)

// CurrentClient fetches today's running observations for a station from the
// public observation feed.
type CurrentClient struct {
	baseURL string
	client  *http.Client
}

func NewCurrentClient(baseURL string) *CurrentClient {
	return &CurrentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type currentResponse struct {
	Observations struct {
		Data []currentReading `json:"data"`
	} `json:"observations"`
}

type currentReading struct {
	LocalDateTime string   `json:"local_date_time_full"` // yyyymmddHHMMSS, station-local
	AirTemp       *float64 `json:"air_temp"`
}

// FetchCurrent downloads the feed for a station and reduces it to today's
// max/min in the station's local calendar date. Transient feed errors are
// retried with exponential backoff; client errors are permanent.
func (c *CurrentClient) FetchCurrent(station models.Station, loc *time.Location, now time.Time) (*models.CurrentConditions, error) {
	url := fmt.Sprintf("%s/%s.json", c.baseURL, station.StationID)

	var body []byte
	operation := func() error {
		resp, err := c.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch current: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("fetch current: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch current: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	return ParseCurrentFeed(body, station.StationID, loc, now)
}

// ParseCurrentFeed reduces raw feed JSON to today's extremes. Days other than
// today's local date are skipped, so a feed that straddles midnight cannot
// leak yesterday's readings into today's Tavg. Readings with null air_temp
// are excluded rather than treated as zero.
func ParseCurrentFeed(body []byte, stationID string, loc *time.Location, now time.Time) (*models.CurrentConditions, error) {
	var feed currentResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse current feed: %w", err)
	}

	today := now.In(loc)
	todayKey := today.Format("20060102")

	cond := &models.CurrentConditions{
		StationID: stationID,
		Date:      time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc),
	}

	for _, reading := range feed.Observations.Data {
		if reading.AirTemp == nil || len(reading.LocalDateTime) < 8 {
			continue
		}
		if reading.LocalDateTime[:8] != todayKey {
			continue
		}

		temp := *reading.AirTemp
		if !cond.TempMax.Valid || temp > cond.TempMax.Float64 {
			cond.TempMax = sql.NullFloat64{Float64: temp, Valid: true}
		}
		if !cond.TempMin.Valid || temp < cond.TempMin.Float64 {
			cond.TempMin = sql.NullFloat64{Float64: temp, Valid: true}
		}
	}

	return cond, nil
}
