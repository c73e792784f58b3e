package binance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKlinePageLooseFields(t *testing.T) {
	body := []byte(`[
		["1672531200000", 1.5, "2.5", "x", "1.75", "10"],
		[1672534800000, "1", "2"],
		{"not": "a row"},
		["bad-ts", "1", "1", "1", "1", "1"],
		[]
	]`)

	page, err := ParseKlinePage(body)
	require.NoError(t, err)
	require.Len(t, page, 2)

	assert.Equal(t, int64(1672531200000), page[0].Timestamp)
	assert.Equal(t, 1.5, page[0].Open)
	assert.Equal(t, 2.5, page[0].High)
	assert.True(t, math.IsNaN(page[0].Low))
	assert.Equal(t, 1.75, page[0].Close)
	assert.Equal(t, float64(10), page[0].Volume)

	assert.Equal(t, int64(1672534800000), page[1].Timestamp)
	assert.True(t, math.IsNaN(page[1].Low))
	assert.True(t, math.IsNaN(page[1].Close))
	assert.True(t, math.IsNaN(page[1].Volume))
}

func TestParseKlinePageMalformed(t *testing.T) {
	for _, body := range []string{``, `{`, `{"code":0}`, `"text"`} {
		_, err := ParseKlinePage([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedResponse, "body %q", body)
	}

	page, err := ParseKlinePage([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, page)
}
