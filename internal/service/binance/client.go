package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"EarlyPump/internal/domain/models"
	drepo "EarlyPump/internal/domain/repository"
	xhttp "EarlyPump/pkg/http"
)

const DefaultBaseURL = "https://api.binance.com"

// Client reads public market data from the Binance spot REST API.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// New creates a ticker source for baseURL (DefaultBaseURL when empty).
func New(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    xhttp.NewClient(opts...),
	}
}

// Tickers returns the 24h rolling ticker of every symbol.
func (c *Client) Tickers(ctx context.Context) ([]models.Ticker, error) {
	var out []models.Ticker
	if err := c.http.GetJSON(ctx, c.baseURL+"/api/v3/ticker/24hr", &out); err != nil {
		return nil, fmt.Errorf("binance tickers: %w", err)
	}
	return out, nil
}

var _ drepo.TickerSource = (*Client)(nil)
