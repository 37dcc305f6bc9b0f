package tickers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rewired-gh/tickerpulse/internal/logger"
)

// DefaultSourceURL lists the S&P 500 constituents.
const DefaultSourceURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// FetchConstituents scrapes the constituents table (symbol in the first
// column, security name in the second) from url.
func FetchConstituents(ctx context.Context, client *http.Client, url string) ([]Constituent, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tickerpulse/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch constituents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch constituents: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse constituents page: %w", err)
	}
	return parseConstituents(doc)
}

func parseConstituents(doc *goquery.Document) ([]Constituent, error) {
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, errors.New("constituents table not found")
	}

	var out []Constituent
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		sym := strings.TrimSpace(cells.Eq(0).Text())
		if sym == "" {
			return
		}
		out = append(out, Constituent{
			Symbol:   sym,
			Security: strings.TrimSpace(cells.Eq(1).Text()),
		})
	})
	if len(out) == 0 {
		return nil, errors.New("constituents table is empty")
	}
	return out, nil
}

// SaveCache writes constituents to path as JSON.
func SaveCache(path string, constituents []Constituent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(constituents, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCache reads constituents previously written by SaveCache.
func LoadCache(path string) ([]Constituent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []Constituent
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode constituents cache: %w", err)
	}
	return out, nil
}

// Load fetches the constituents and refreshes the cache, falling back to the
// cache when the fetch fails. An empty cachePath disables caching.
func Load(ctx context.Context, client *http.Client, url, cachePath string) ([]Constituent, error) {
	list, err := FetchConstituents(ctx, client, url)
	if err == nil {
		if cachePath != "" {
			if cerr := SaveCache(cachePath, list); cerr != nil {
				logger.Warn("Failed to cache constituents: %v", cerr)
			}
		}
		logger.Debug("Fetched %d constituents from %s", len(list), url)
		return list, nil
	}
	if cachePath == "" {
		return nil, err
	}
	logger.Warn("Falling back to constituents cache %s: %v", cachePath, err)
	cached, cerr := LoadCache(cachePath)
	if cerr != nil {
		return nil, fmt.Errorf("%w (cache: %v)", err, cerr)
	}
	return cached, nil
}
