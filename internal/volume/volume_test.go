package volume

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2021, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2021-04-01", "Apr 01, 2021", "Apr 1, 2021", " 2021-04-01 "} {
		d, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, day(time.April, 1), d, in)
	}
	_, err := ParseDate("01.04.2021")
	assert.Error(t, err)
}

func TestParseVolume(t *testing.T) {
	v, err := ParseVolume("1,234,567")
	require.NoError(t, err)
	assert.Equal(t, 1234567.0, v)

	for _, in := range []string{"", "-", "NaN", "null"} {
		v, err := ParseVolume(in)
		require.NoError(t, err)
		assert.True(t, timeseries.Missing(v), in)
	}

	_, err = ParseVolume("lots")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	in := `Date,AAPL,TSLA
"Apr 02, 2021",200,
2021-04-01,"1,000",50
2021-04-05,,
2021-04-06,300,70
`
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "TSLA"}, tbl.Columns())
	// 04-05 has no values and is dropped; rows come out ascending
	assert.Equal(t, []time.Time{day(time.April, 1), day(time.April, 2), day(time.April, 6)}, tbl.Dates())

	v, _ := tbl.Value(0, "AAPL")
	assert.Equal(t, 1000.0, v)
	v, _ = tbl.Value(1, "TSLA")
	assert.True(t, timeseries.Missing(v))
	v, _ = tbl.Value(2, "TSLA")
	assert.Equal(t, 70.0, v)
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no tickers", "Date\n2021-04-01\n"},
		{"bad date", "Date,AAPL\nyesterday,1\n"},
		{"bad value", "Date,AAPL\n2021-04-01,many\n"},
		{"duplicate date", "Date,AAPL\n2021-04-01,1\n\"Apr 01, 2021\",2\n"},
		{"duplicate column", "Date,AAPL,AAPL\n2021-04-01,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV_ReadBack(t *testing.T) {
	in := "Date,AAPL,TSLA\n2021-04-01,1000,50\n2021-04-02,200,\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t, in, buf.String())
}

const historyPage = `<html><body><table><thead><tr><th>Date</th><th>Open</th></tr></thead><tbody>
<tr><td>Apr 06, 2021</td><td>1</td><td>1</td><td>1</td><td>1</td><td>1</td><td>80,000</td></tr>
<tr><td>Apr 05, 2021</td><td>0.205 Dividend</td></tr>
<tr><td>Apr 01, 2021</td><td>1</td><td>1</td><td>1</td><td>1</td><td>1</td><td>75,000</td></tr>
<tr><td>Mar 31, 2021</td><td>1</td><td>1</td><td>1</td><td>1</td><td>1</td><td>70,000</td></tr>
<tr><td>Mar 30, 2021</td><td>1</td><td>1</td><td>1</td><td>1</td><td>1</td><td>-</td></tr>
</tbody></table></body></html>`

func TestYahooClient_FetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/AAPL/history", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("p"))
		_, _ = w.Write([]byte(historyPage))
	}))
	defer srv.Close()

	c := NewYahooClient(srv.URL, time.Second, 0)
	s, err := c.FetchHistory(context.Background(), "AAPL", day(time.March, 30), day(time.April, 6))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(time.March, 31), day(time.April, 1), day(time.April, 6)}, s.Dates)
	assert.Equal(t, []float64{70000, 75000, 80000}, s.Values)
}

func TestYahooClient_FetchTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote/AAPL/history", "/quote/BRK-B/history":
			_, _ = w.Write([]byte(historyPage))
		case "/quote/EMPTY/history":
			_, _ = w.Write([]byte("<html><body></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewYahooClient(srv.URL, time.Second, 0)
	tbl, err := c.FetchTable(context.Background(), []string{"AAPL", "GONE", "EMPTY", "BRK-B"}, day(time.April, 1), day(time.April, 30))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, tbl.Columns())
	assert.Equal(t, 2, tbl.Len())

	_, err = c.FetchTable(context.Background(), []string{"GONE"}, day(time.April, 1), day(time.April, 30))
	assert.Error(t, err)
}
