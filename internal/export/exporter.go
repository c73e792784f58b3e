package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"klinecollector/internal/memorystore"
	"klinecollector/pkg/binance"
)

var (
	ErrEmptySeries       = errors.New("nothing to export: series is empty")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Exporter writes a collected series in one file format.
type Exporter interface {
	Write(w io.Writer, candles []memorystore.Candle) error
	Extension() string
	ContentType() string
}

// NewExporter returns the exporter for format (csv or parquet).
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatCSV:
		return CSVExporter{}, nil
	case FormatParquet:
		return ParquetExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (use csv or parquet)", ErrUnsupportedFormat, format)
	}
}

// FileName is the download name of a dataset, e.g. BTCUSDT_1h_dataset.csv.
func FileName(symbol string, tf binance.Timeframe, ext string) string {
	return fmt.Sprintf("%s_%s_dataset.%s", symbol, tf, ext)
}

// SaveFile writes candles into dir under FileName and returns the file path.
func SaveFile(dir string, ex Exporter, symbol string, tf binance.Timeframe,
	candles []memorystore.Candle) (path string, err error) {
	if len(candles) == 0 {
		return "", ErrEmptySeries
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path = filepath.Join(dir, FileName(symbol, tf, ex.Extension()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()

	if err := ex.Write(f, candles); err != nil {
		return "", err
	}
	return path, nil
}
