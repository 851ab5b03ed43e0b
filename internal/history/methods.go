package history

import (
	"context"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
)

// DefaultMethods builds the standard fetch chain: bulk download first, the
// raw chart endpoint second, the quote-page scrape last.
func DefaultMethods(native *yahoo.NativeClient, client *yahoo.Client) []Method {
	return []Method{
		{
			Name: "yfinance_download",
			Fetch: func(_ context.Context, symbol, period string) ([]yahoo.HistoricalPrice, error) {
				return native.GetHistoricalPrices(symbol, period)
			},
		},
		{
			Name: "chart_api",
			Fetch: func(ctx context.Context, symbol, period string) ([]yahoo.HistoricalPrice, error) {
				return client.GetHistoricalPrices(ctx, symbol, period)
			},
		},
		{
			Name: "page_scrape",
			Fetch: func(ctx context.Context, symbol, _ string) ([]yahoo.HistoricalPrice, error) {
				return client.ScrapeHistoricalPrices(ctx, symbol)
			},
		},
	}
}
