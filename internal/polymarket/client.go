package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	PolymarketGammaURL = "https://gamma-api.polymarket.com"

	// Gamma allows 300 requests per 10s; stay well below it.
	gammaRatePerSec = 10
	maxRetries      = 3
	baseRetryWait   = 500 * time.Millisecond
)

// PolymarketClient reads public market data from the Gamma API
type PolymarketClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

type PolymarketMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Description   string  `json:"description"`
	Outcomes      string  `json:"outcomes"`      // JSON string like "[\"Yes\",\"No\"]"
	OutcomePrices string  `json:"outcomePrices"` // JSON string like "[\"0.65\",\"0.35\"]"
	Volume        string  `json:"volume"`
	Liquidity     string  `json:"liquidity"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
	EndDate       string  `json:"endDate"`
	CreatedAt     string  `json:"createdAt"`
	VolumeNum     float64 `json:"-"` // computed field
}

// ParseOutcomes parses the outcomes JSON string into a slice
func (m *PolymarketMarket) ParseOutcomes() []string {
	var outcomes []string
	if m.Outcomes != "" {
		json.Unmarshal([]byte(m.Outcomes), &outcomes)
	}
	return outcomes
}

// ParseOutcomePrices parses the outcome prices JSON string. Entries that are
// not numbers come back as 0.
func (m *PolymarketMarket) ParseOutcomePrices() []float64 {
	var raw []string
	if m.OutcomePrices == "" || json.Unmarshal([]byte(m.OutcomePrices), &raw) != nil {
		return nil
	}
	prices := make([]float64, len(raw))
	for i, s := range raw {
		prices[i], _ = strconv.ParseFloat(s, 64)
	}
	return prices
}

// GetVolumeFloat parses volume string to float64
func (m *PolymarketMarket) GetVolumeFloat() float64 {
	vol, _ := strconv.ParseFloat(m.Volume, 64)
	return vol
}

// EndTime parses EndDate, returning the zero time when absent or malformed
func (m *PolymarketMarket) EndTime() time.Time {
	t, err := time.Parse(time.RFC3339, m.EndDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsBinary reports whether the market has exactly two outcomes
func (m *PolymarketMarket) IsBinary() bool {
	return len(m.ParseOutcomes()) == 2
}

// NewPolymarketClient creates a client against baseURL, or the public Gamma
// API when baseURL is empty
func NewPolymarketClient(baseURL string) *PolymarketClient {
	if baseURL == "" {
		baseURL = PolymarketGammaURL
	}
	return &PolymarketClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(gammaRatePerSec, 5),
	}
}

// GetActiveMarkets fetches open markets, highest volume first
func (c *PolymarketClient) GetActiveMarkets(ctx context.Context, limit int) ([]PolymarketMarket, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("closed", "false")
	q.Set("active", "true")

	var markets []PolymarketMarket
	if err := c.get(ctx, "/markets?"+q.Encode(), &markets); err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	for i := range markets {
		markets[i].VolumeNum = markets[i].GetVolumeFloat()
	}
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].VolumeNum > markets[j].VolumeNum
	})
	return markets, nil
}

// GetMarketByID fetches a specific market by ID
func (c *PolymarketClient) GetMarketByID(ctx context.Context, marketID string) (*PolymarketMarket, error) {
	var market PolymarketMarket
	if err := c.get(ctx, "/markets/"+url.PathEscape(marketID), &market); err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", marketID, err)
	}
	return &market, nil
}

// get performs a rate limited GET with retries on 429 and 5xx
func (c *PolymarketClient) get(ctx context.Context, path string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("polymarket API error: %d after %d attempts", resp.StatusCode, attempt+1)
			}
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("[Polymarket] retrying")
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return fmt.Errorf("polymarket API error: %d - %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *PolymarketClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
