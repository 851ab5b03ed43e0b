package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Client is a Yahoo Finance API client
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the chart API payload: OHLCV arrays aligned to a
// timestamp array.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// GetHistoricalPrices fetches historical OHLCV data from the chart endpoint.
//
// Supports periods: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol, period string) ([]HistoricalPrice, error) {
	baseURL := "https://query1.finance.yahoo.com/v8/finance/chart/" + url.QueryEscape(symbol)

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", period)
	params.Add("includePrePost", "false")

	body, err := c.fetch(ctx, baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error for %s: %v", symbol, result.Chart.Error)
	}

	if len(result.Chart.Result) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return []HistoricalPrice{}, nil
	}

	chartData := result.Chart.Result[0]
	if len(chartData.Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No quote data in response")
		return []HistoricalPrice{}, nil
	}

	timestamps := chartData.Timestamp
	quote := chartData.Indicators.Quote[0]

	var adjCloseData []float64
	if len(chartData.Indicators.AdjClose) > 0 {
		adjCloseData = chartData.Indicators.AdjClose[0].AdjClose
	}

	var prices []HistoricalPrice
	for i := range timestamps {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			continue
		}

		// Yahoo sometimes returns null bars
		if quote.Open[i] == 0 && quote.High[i] == 0 && quote.Low[i] == 0 && quote.Close[i] == 0 {
			continue
		}

		adjClose := quote.Close[i]
		if i < len(adjCloseData) && adjCloseData[i] != 0 {
			adjClose = adjCloseData[i]
		}

		volume := int64(0)
		if i < len(quote.Volume) {
			volume = quote.Volume[i]
		}

		prices = append(prices, HistoricalPrice{
			Date:     time.Unix(timestamps[i], 0),
			Open:     quote.Open[i],
			High:     quote.High[i],
			Low:      quote.Low[i],
			Close:    quote.Close[i],
			Volume:   volume,
			AdjClose: adjClose,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("count", len(prices)).
		Msg("Fetched historical prices")

	return prices, nil
}

// quoteResponse represents the response from the quote API
type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// GetSector returns the sector (falling back to industry) for a symbol.
// Returns an empty string when the provider has no classification.
func (c *Client) GetSector(ctx context.Context, symbol string) (string, error) {
	baseURL := "https://query1.finance.yahoo.com/v7/finance/quote"

	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,sector,industry")

	body, err := c.fetch(ctx, baseURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if result.QuoteResponse.Error != nil {
		return "", fmt.Errorf("quote API error for %s: %v", symbol, result.QuoteResponse.Error)
	}

	if len(result.QuoteResponse.Result) == 0 {
		return "", nil
	}

	info := result.QuoteResponse.Result[0]
	if sector, ok := info["sector"].(string); ok && sector != "" {
		return sector, nil
	}
	if industry, ok := info["industry"].(string); ok && industry != "" {
		return industry, nil
	}

	return "", nil
}

// historicalStorePattern locates the embedded price store in the quote
// history page. Last-resort fallback when both API methods fail.
var historicalStorePattern = regexp.MustCompile(`"HistoricalPriceStore":\{"prices":(\[.*?\])`)

type scrapedPrice struct {
	Date   int64   `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// ScrapeHistoricalPrices extracts the embedded JSON price blob from the
// symbol's history page.
func (c *Client) ScrapeHistoricalPrices(ctx context.Context, symbol string) ([]HistoricalPrice, error) {
	pageURL := "https://finance.yahoo.com/quote/" + url.PathEscape(symbol) + "/history"

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	match := historicalStorePattern.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("%w: no embedded price data for %s", ErrMalformedResponse, symbol)
	}

	var scraped []scrapedPrice
	if err := json.Unmarshal(match[1], &scraped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	prices := make([]HistoricalPrice, 0, len(scraped))
	// Page lists newest first; reverse into chronological order
	for i := len(scraped) - 1; i >= 0; i-- {
		p := scraped[i]
		if p.Close == 0 {
			// Dividend/split rows carry no OHLCV
			continue
		}
		prices = append(prices, HistoricalPrice{
			Date:     time.Unix(p.Date, 0),
			Open:     p.Open,
			High:     p.High,
			Low:      p.Low,
			Close:    p.Close,
			Volume:   p.Volume,
			AdjClose: p.Close,
		})
	}

	c.log.Info().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Scraped historical prices from quote page")

	return prices, nil
}

// fetch performs a GET with browser-like headers and maps status codes to
// the package error taxonomy.
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
