package export

import (
	"fmt"
	"io"

	"klinecollector/internal/memorystore"

	"github.com/parquet-go/parquet-go"
)

// Row is the parquet schema of an exported candle.
type Row struct {
	Timestamp int64   `parquet:"timestamp"`
	Date      string  `parquet:"date"`
	Time      string  `parquet:"time"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

type ParquetExporter struct{}

func (ParquetExporter) Extension() string   { return FormatParquet }
func (ParquetExporter) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetExporter) Write(w io.Writer, candles []memorystore.Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	if err := parquet.Write(w, toRows(candles)); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

func toRows(candles []memorystore.Candle) []Row {
	rows := make([]Row, len(candles))
	for i, c := range candles {
		t := c.Time()
		rows[i] = Row{
			Timestamp: c.Timestamp,
			Date:      t.Format("2006-01-02"),
			Time:      t.Format("15:04"),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return rows
}
