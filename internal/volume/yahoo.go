package volume

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/tickerpulse/internal/logger"
	"github.com/rewired-gh/tickerpulse/internal/timeseries"
)

// DefaultYahooURL is the Yahoo Finance site root.
const DefaultYahooURL = "https://finance.yahoo.com"

// volumeCell is the index of the volume column in a history row
// (Date, Open, High, Low, Close, Adj Close, Volume).
const volumeCell = 6

// YahooClient scrapes daily volume from Yahoo Finance history pages.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYahooClient creates a client issuing at most one request per interval.
func NewYahooClient(baseURL string, timeout, interval time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &YahooClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// FetchHistory returns the daily volume of ticker between start and end
// inclusive, oldest first. Rows without a volume cell (dividends, splits)
// are skipped.
func (c *YahooClient) FetchHistory(ctx context.Context, ticker string, start, end time.Time) (timeseries.Series, error) {
	start, end = timeseries.Day(start), timeseries.Day(end)

	q := url.Values{}
	q.Set("p", ticker)
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Add(24*time.Hour).Unix(), 10))
	u := c.baseURL + "/quote/" + url.PathEscape(ticker) + "/history?" + q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return timeseries.Series{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return timeseries.Series{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tickerpulse/1.0)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("failed to fetch %s history: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return timeseries.Series{}, fmt.Errorf("failed to fetch %s history: status %d", ticker, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("failed to parse %s history: %w", ticker, err)
	}
	return parseHistory(doc, start, end), nil
}

func parseHistory(doc *goquery.Document, start, end time.Time) timeseries.Series {
	byDay := make(map[time.Time]float64)
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= volumeCell {
			return
		}
		d, err := ParseDate(cells.Eq(0).Text())
		if err != nil || d.Before(start) || d.After(end) {
			return
		}
		v, err := ParseVolume(cells.Eq(volumeCell).Text())
		if err != nil || timeseries.Missing(v) {
			return
		}
		byDay[d] = v
	})

	s := timeseries.Series{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if v, ok := byDay[d]; ok {
			s.Dates = append(s.Dates, d)
			s.Values = append(s.Values, v)
		}
	}
	return s
}

// FetchTable fetches every ticker and joins the results into one table.
// Tickers that fail or return no rows are logged and left out; the call
// fails only when no ticker succeeds.
func (c *YahooClient) FetchTable(ctx context.Context, tickers []string, start, end time.Time) (*timeseries.Table, error) {
	columns := make(map[string]timeseries.Series, len(tickers))
	for _, ticker := range tickers {
		s, err := c.FetchHistory(ctx, ticker, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Skipping volume for %s: %v", ticker, err)
			continue
		}
		if s.Len() == 0 {
			logger.Warn("No volume rows for %s", ticker)
			continue
		}
		columns[ticker] = s
	}
	if len(columns) == 0 {
		return nil, errors.New("no volume history could be fetched")
	}
	logger.Info("Fetched volume for %d of %d tickers", len(columns), len(tickers))
	return timeseries.FromSeries(columns), nil
}
