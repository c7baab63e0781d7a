package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/heatcheck/internal/models"
)

const defaultArchiveHost = "ftp.bom.gov.au:21"

// ArchiveClient retrieves a station's historical daily temperature record
// from the climate archive over FTP.
type ArchiveClient struct {
	host string
	dir  string
}

func NewArchiveClient(host, dir string) *ArchiveClient {
	if host == "" {
		host = defaultArchiveHost
	}
	return &ArchiveClient{host: host, dir: dir}
}

// FetchDailyRecord downloads and parses daily_<station>.csv from the archive.
func (a *ArchiveClient) FetchDailyRecord(stationID string) ([]models.DailyObservation, error) {
	conn, err := ftp.Dial(a.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("dial archive %s: %w", a.host, err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("archive login: %w", err)
	}

	path := fmt.Sprintf("%s/daily_%s.csv", a.dir, stationID)
	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", path, err)
	}
	defer resp.Close()

	record, err := ParseDailyCSV(resp, stationID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return record, nil
}

// ParseDailyCSV parses archive CSV rows of year,month,day,tmax,tmin into
// daily observations. A header row is tolerated, blank temperature cells stay
// missing, and rows with an unparseable date are rejected outright since they
// indicate a corrupt archive rather than a gap in the record.
func ParseDailyCSV(r io.Reader, stationID string) ([]models.DailyObservation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 5
	reader.TrimLeadingSpace = true

	var record []models.DailyObservation
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		if line == 1 && fields[0] == "year" {
			continue
		}

		year, err1 := strconv.Atoi(fields[0])
		month, err2 := strconv.Atoi(fields[1])
		day, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("line %d: bad date fields %q", line, fields[:3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return nil, fmt.Errorf("line %d: date %d-%d-%d out of range", line, year, month, day)
		}

		obs := models.DailyObservation{
			StationID: stationID,
			Year:      year,
			Month:     month,
			Day:       day,
			Date:      time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
			TempMax:   parseTemp(fields[3]),
			TempMin:   parseTemp(fields[4]),
		}
		if obs.TempMax.Valid && obs.TempMin.Valid {
			obs.TempAvg = sql.NullFloat64{Float64: (obs.TempMax.Float64 + obs.TempMin.Float64) / 2, Valid: true}
		}
		record = append(record, obs)
	}
	return record, nil
}

func parseTemp(field string) sql.NullFloat64 {
	if field == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
