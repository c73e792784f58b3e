package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"klinecollector/internal/memorystore"
)

var csvHeader = []string{"date", "time", "open", "high", "low", "close", "volume"}

// CSVExporter writes one row per candle with the open time split into a UTC
// date and an HH:MM time.
type CSVExporter struct{}

func (CSVExporter) Extension() string   { return FormatCSV }
func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVExporter) Write(w io.Writer, candles []memorystore.Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range candles {
		t := c.Time()
		if err := cw.Write([]string{
			t.Format("2006-01-02"),
			t.Format("15:04"),
			floatStr(c.Open),
			floatStr(c.High),
			floatStr(c.Low),
			floatStr(c.Close),
			floatStr(c.Volume),
		}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
