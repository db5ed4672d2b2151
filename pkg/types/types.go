// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the mirror bot — fill events,
// order types, Data-API trade records, and WebSocket event payloads. It has
// no dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"math/big"
	"strconv"
	"strings"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// ParseSide maps an arbitrary API-provided side string onto a Side.
// Anything containing "sell" (case-insensitive) is SELL; everything else
// defaults to BUY, matching how the trade feeds report direction.
func ParseSide(s string) Side {
	if strings.Contains(strings.ToUpper(s), "SELL") {
		return SELL
	}
	return BUY
}

// OrderType enumerates the supported order lifecycles.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Til-Cancelled: stays on book until filled or cancelled
)

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0 // externally-owned account (standard wallet)
	SigProxy      SignatureType = 1 // Polymarket proxy / Magic wallet
	SigGnosisSafe SignatureType = 2 // Gnosis Safe multisig
)

// ————————————————————————————————————————————————————————————————————————
// Fill events
// ————————————————————————————————————————————————————————————————————————

// FillEvent is the canonical fill shape every feed adapter produces.
// Side is the direction from the target wallet's perspective. ID is the
// dedup key and must be stable across repeated observation of the same
// fill (Data-API id, or txHash:logIndex for on-chain logs).
type FillEvent struct {
	ID        string
	Side      Side
	TokenID   string
	Price     float64 // probability price in (0, 1)
	Size      float64 // outcome tokens filled
	Timestamp int64   // unix seconds, ordering hint only
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// UserOrder is the high-level order representation produced by the mirror
// policy. The exchange client converts it to a SignedOrder for the CLOB API.
type UserOrder struct {
	TokenID    string    // which token to trade
	Price      float64   // limit price (0.001 to 0.999)
	Size       float64   // quantity in tokens
	Side       Side      // BUY or SELL
	OrderType  OrderType // GTC
	PostOnly   bool      // false for mirror orders: they must be able to cross
	Expiration int64     // unix timestamp, 0 = no expiry
	FeeRateBps int       // fee rate in basis points
}

// Notional returns the USD value of the order (price × size).
func (o UserOrder) Notional() float64 {
	return o.Price * o.Size
}

// SignedOrder is the on-chain order format the CLOB API expects.
// MakerAmount and TakerAmount are in 6-decimal USDC units (1e6 = $1).
//
// For BUY:  maker gives MakerAmount USDC, receives TakerAmount tokens
// For SELL: maker gives MakerAmount tokens, receives TakerAmount USDC
type SignedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`       // funder/proxy wallet address
	Signer        string        `json:"signer"`      // EOA that signs the order
	Taker         string        `json:"taker"`       // zero address = open order
	TokenID       string        `json:"tokenId"`     // CTF token ID
	MakerAmount   *big.Int      `json:"makerAmount"` // what maker gives (scaled to 1e6)
	TakerAmount   *big.Int      `json:"takerAmount"` // what maker receives (scaled to 1e6)
	Side          Side          `json:"side"`
	Expiration    string        `json:"expiration"`    // unix timestamp as string
	Nonce         string        `json:"nonce"`         // replay protection
	FeeRateBps    string        `json:"feeRateBps"`    // fee in basis points as string
	SignatureType SignatureType `json:"signatureType"` // 0 = EOA
	Signature     string        `json:"signature"`     // EIP-712 signature hex
}

// OrderPayload is the REST API request body for POST /orders.
type OrderPayload struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`              // API key of the order owner
	OrderType OrderType   `json:"orderType"`          // GTC
	PostOnly  bool        `json:"postOnly,omitempty"` // if true, rejects if it would cross
}

// OrderResponse is the REST API response for a posted order.
type OrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"` // e.g. "live", "matched"
}

// ————————————————————————————————————————————————————————————————————————
// Data-API records
// ————————————————————————————————————————————————————————————————————————

// TradeRecord is the JSON shape of one entry from GET /trades on the
// Data-API. Different deployments have shipped the outcome token under
// different keys, so every observed spelling is mapped and TokenIdentifier
// resolves them in priority order.
type TradeRecord struct {
	ID              string  `json:"id"`
	TransactionHash string  `json:"transactionHash"`
	TxHash          string  `json:"tx_hash"`
	LogIndex        *int64  `json:"log_index"`
	Side            string  `json:"side"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	Timestamp       int64   `json:"timestamp"`
	ProxyWallet     string  `json:"proxyWallet"`

	Asset          string `json:"asset"`
	TokenUnder     string `json:"token_id"`
	TokenCamel     string `json:"tokenId"`
	TokenUpper     string `json:"tokenID"`
	AssetUnder     string `json:"asset_id"`
	AssetCamel     string `json:"assetId"`
	MarketID       string `json:"marketId"`
	OutcomeTokenID string `json:"outcome_token_id"`
}

// FillID returns the stable dedup identifier for this trade: the API id
// when present, else transaction hash + log index. Empty means the record
// cannot be identified and must be skipped.
func (t TradeRecord) FillID() string {
	if t.ID != "" {
		return t.ID
	}
	hash := t.TransactionHash
	if hash == "" {
		hash = t.TxHash
	}
	if hash == "" {
		return ""
	}
	idx := ""
	if t.LogIndex != nil {
		idx = strconv.FormatInt(*t.LogIndex, 10)
	}
	return hash + ":" + idx
}

// TokenIdentifier resolves the outcome token id from the prioritized list
// of field spellings. Returns "" if none is set.
func (t TradeRecord) TokenIdentifier() string {
	for _, cand := range []string{
		t.Asset,
		t.TokenUnder,
		t.TokenCamel,
		t.TokenUpper,
		t.AssetUnder,
		t.AssetCamel,
		t.MarketID,
		t.OutcomeTokenID,
	} {
		if cand != "" {
			return cand
		}
	}
	return ""
}

// ActivityRecord is the JSON shape of one entry from GET /activity.
// Only the proxy wallet matters to the mirror engine: it is how a
// user-facing smart-contract account is resolved from an EOA.
type ActivityRecord struct {
	ProxyWallet string `json:"proxyWallet"`
	Type        string `json:"type"`
	Timestamp   int64  `json:"timestamp"`
}

// ————————————————————————————————————————————————————————————————————————
// WebSocket events
// ————————————————————————————————————————————————————————————————————————
// These structs map 1:1 to the JSON messages on the Polymarket user WebSocket.

// WSTradeEvent is a fill notification from the user WS channel. Numeric
// fields arrive as strings to preserve decimal precision.
type WSTradeEvent struct {
	EventType string `json:"event_type"` // "trade" on current deployments
	Type      string `json:"type"`       // "TRADE" on legacy deployments
	ID        string `json:"id"`         // trade ID
	Market    string `json:"market"`     // condition ID
	AssetID   string `json:"asset_id"`   // token ID that was traded
	Side      string `json:"side"`       // "BUY" or "SELL"
	Size      string `json:"size"`       // filled quantity
	Price     string `json:"price"`      // fill price
	Timestamp string `json:"timestamp"`
}

// IsTrade reports whether the message denotes an executed trade under
// either the current or the legacy envelope spelling.
func (e WSTradeEvent) IsTrade() bool {
	return e.EventType == "trade" || e.Type == "TRADE"
}

// WSSubscribeMsg is the initial subscription message sent when connecting
// to the user WebSocket channel.
type WSSubscribeMsg struct {
	Auth    *WSAuth  `json:"auth,omitempty"`
	Type    string   `json:"type"`    // always "user"
	Markets []string `json:"markets"` // empty = all of the account's markets
}

// WSAuth contains the L2 API credentials for authenticating the user WS channel.
type WSAuth struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}
