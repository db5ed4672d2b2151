// Package exchange implements the Polymarket CLOB REST client used to place
// mirrored orders.
//
//   - PlaceOrder:   POST /order               — sign and submit one order
//   - DeriveAPIKey: GET  /auth/derive-api-key — bootstrap L2 creds from L1 wallet
//
// Every request is rate-limited via per-category TokenBuckets, automatically
// retried on 5xx errors, and authenticated with L2 HMAC headers.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"polymirror/internal/config"
	"polymirror/pkg/types"
)

// Client is the Polymarket CLOB REST API client.
// It wraps a resty HTTP client with rate limiting, retry, and auth.
type Client struct {
	http   *resty.Client // HTTP client with retry + base URL
	auth   *Auth         // L1/L2 auth provider for request signing
	rl     *RateLimiter  // per-endpoint-category rate limiting
	dryRun bool          // when true, PlaceOrder logs and returns fake success
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry.
func NewClient(cfg config.Config, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.API.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(),
		dryRun: cfg.DryRun,
		logger: logger,
	}
}

// buildOrderPayload converts a high-level UserOrder into the on-chain
// SignedOrder + metadata the REST API expects. It converts human-readable
// price/size to big.Int maker/taker amounts, sets the maker to the funder
// wallet (proxy), the signer to the EOA, and the taker to the zero address
// (open order, anyone can fill).
func (c *Client) buildOrderPayload(order types.UserOrder) types.OrderPayload {
	makerAmt, takerAmt := PriceToAmounts(order.Price, order.Size, order.Side)

	return types.OrderPayload{
		Order: types.SignedOrder{
			Maker:         c.auth.FunderAddress().Hex(),
			Signer:        c.auth.Address().Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       order.TokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          order.Side,
			Expiration:    fmt.Sprintf("%d", order.Expiration),
			Nonce:         "0",
			FeeRateBps:    fmt.Sprintf("%d", order.FeeRateBps),
			SignatureType: c.auth.sigType,
		},
		Owner:     c.auth.creds.ApiKey,
		OrderType: order.OrderType,
		PostOnly:  order.PostOnly,
	}
}

// PlaceOrder signs and submits a single order to the CLOB.
// Mirrored orders go out one at a time, so there is no batch path.
func (c *Client) PlaceOrder(ctx context.Context, order types.UserOrder) (*types.OrderResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order",
			"side", order.Side, "token_id", order.TokenID,
			"price", order.Price, "size", order.Size)
		return &types.OrderResponse{Success: true, OrderID: "dry-run", Status: "live"}, nil
	}
	if err := c.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payload := c.buildOrderPayload(order)
	if err := c.auth.SignOrder(&payload.Order); err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/order", string(body))
	if err != nil {
		return nil, fmt.Errorf("l2 headers: %w", err)
	}

	var result types.OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return nil, fmt.Errorf("post order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("post order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if !result.Success {
		return &result, fmt.Errorf("post order rejected: %s", result.ErrorMsg)
	}

	return &result, nil
}

// DeriveAPIKey derives L2 API credentials via L1 authentication.
func (c *Client) DeriveAPIKey(ctx context.Context) (*Credentials, error) {
	if err := c.rl.Auth.Wait(ctx); err != nil {
		return nil, err
	}

	headers, err := c.auth.L1Headers(0)
	if err != nil {
		return nil, fmt.Errorf("l1 headers: %w", err)
	}

	var result Credentials
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/auth/derive-api-key")
	if err != nil {
		return nil, fmt.Errorf("derive api key: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("derive api key: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.auth.SetCredentials(result)
	c.logger.Info("API key derived", "api_key", result.ApiKey)
	return &result, nil
}
