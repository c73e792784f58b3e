package binance

import (
	"math"
	"strconv"
	"strings"

	"klinecollector/internal/memorystore"

	"github.com/tidwall/gjson"
)

// ParseKlinePage converts a klines response body into candles.
//
// Rows are read positionally: [openTime, open, high, low, close, volume, ...].
// Price and volume fields that do not parse become NaN instead of failing the
// page. Rows without a usable open time are skipped since they cannot be
// ordered.
func ParseKlinePage(body []byte) ([]memorystore.Candle, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, ErrMalformedResponse
	}

	rows := root.Array()
	out := make([]memorystore.Candle, 0, len(rows))
	for _, row := range rows {
		if !row.IsArray() {
			continue
		}
		fields := row.Array()
		if len(fields) == 0 {
			continue
		}
		ts, ok := parseInt(fields[0])
		if !ok {
			continue
		}
		out = append(out, memorystore.Candle{
			Timestamp: ts,
			Open:      parseFloat(field(fields, 1)),
			High:      parseFloat(field(fields, 2)),
			Low:       parseFloat(field(fields, 3)),
			Close:     parseFloat(field(fields, 4)),
			Volume:    parseFloat(field(fields, 5)),
		})
	}
	return out, nil
}

func field(fields []gjson.Result, i int) gjson.Result {
	if i < len(fields) {
		return fields[i]
	}
	return gjson.Result{}
}

func parseInt(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func parseFloat(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
