// Package dataapi implements a read-only client for the Polymarket Data-API.
//
// The mirror engine uses two endpoints:
//   - GET /trades   — the target wallet's historical fills (poller + warm-start)
//   - GET /activity — fallback for resolving an EOA to its proxy wallet
//
// Responses come back newest-first; callers that need chronological order
// iterate the slice in reverse.
package dataapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"polymirror/pkg/types"
)

// Client is the Polymarket Data-API REST client.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a Data-API client with retry on 5xx.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Trades fetches the most recent fills for a wallet, newest first.
// takerOnly=false is required: the API's default hides the wallet's
// maker-side fills.
func (c *Client) Trades(ctx context.Context, user string, limit int) ([]types.TradeRecord, error) {
	var result []types.TradeRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":      user,
			"limit":     strconv.Itoa(limit),
			"takerOnly": "false",
		}).
		SetResult(&result).
		Get("/trades")
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get trades: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// Activity fetches recent account activity for a wallet, newest first.
func (c *Client) Activity(ctx context.Context, user string, limit int) ([]types.ActivityRecord, error) {
	var result []types.ActivityRecord
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":  user,
			"limit": strconv.Itoa(limit),
		}).
		SetResult(&result).
		Get("/activity")
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get activity: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}
