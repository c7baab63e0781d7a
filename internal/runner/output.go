package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/lox/heatcheck/internal/models"
)

// Output publishes per-station artifacts for the site: the result record, the
// percentile table behind the distribution plot, and the rendered calendar
// heatmap. Every file is replaced atomically so a reader never sees a torn
// document, and a failed run leaves the previous good file in place.
type Output struct {
	dir string
}

func NewOutput(dir string) *Output {
	return &Output{dir: dir}
}

func (o *Output) WriteResult(result models.StationResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return o.replace(fmt.Sprintf("stats_%s.json", result.StationID), data)
}

func (o *Output) WritePercentiles(stationID string, table map[string]map[string]float64) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	return o.replace(fmt.Sprintf("percentiles_%s.json", stationID), data)
}

func (o *Output) WriteHeatmapImage(stationID string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return o.replace(fmt.Sprintf("heatmap_%s.png", stationID), buf.Bytes())
}

// ResultPath returns where a station's result record lands, for callers that
// serve or inspect the published files.
func (o *Output) ResultPath(stationID string) string {
	return filepath.Join(o.dir, fmt.Sprintf("stats_%s.json", stationID))
}

func (o *Output) replace(name string, data []byte) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	final := filepath.Join(o.dir, name)
	tmp, err := os.CreateTemp(o.dir, name+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
