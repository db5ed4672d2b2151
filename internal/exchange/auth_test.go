package exchange

import (
	"encoding/base64"
	"math/big"
	"strings"
	"testing"

	"polymirror/internal/config"
	"polymirror/pkg/types"
)

// Well-known test vector: hardhat account #1.
const (
	testPrivateKey  = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	testAddress     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func testAuthConfig() config.Config {
	cfg := config.Config{}
	cfg.Wallet.PrivateKey = testPrivateKey
	cfg.Wallet.ChainID = 137
	cfg.Feeds.ExchangeAddress = config.DefaultExchangeAddress
	return cfg
}

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	auth, err := NewAuth(testAuthConfig())
	if err != nil {
		t.Fatalf("NewAuth() error: %v", err)
	}
	return auth
}

func TestNewAuthDerivesAddress(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)

	if auth.Address().Hex() != testAddress {
		t.Errorf("address = %s, want %s", auth.Address().Hex(), testAddress)
	}
	// No funder configured: funder defaults to the EOA itself.
	if auth.FunderAddress() != auth.Address() {
		t.Errorf("funder = %s, want the signer address", auth.FunderAddress().Hex())
	}
	if auth.ChainID().Cmp(big.NewInt(137)) != 0 {
		t.Errorf("chainID = %v, want 137", auth.ChainID())
	}
}

func TestNewAuthRejectsBadKey(t *testing.T) {
	t.Parallel()
	cfg := testAuthConfig()
	cfg.Wallet.PrivateKey = "zz"
	if _, err := NewAuth(cfg); err == nil {
		t.Error("expected error for malformed private key")
	}
}

func TestBuildHMACDeterministic(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)
	auth.SetCredentials(Credentials{
		ApiKey:     "key",
		Secret:     base64.URLEncoding.EncodeToString([]byte("test-secret")),
		Passphrase: "pass",
	})

	sig1, err := auth.buildHMAC("1700000000", "POST", "/order", `{"a":1}`)
	if err != nil {
		t.Fatalf("buildHMAC() error: %v", err)
	}
	sig2, err := auth.buildHMAC("1700000000", "POST", "/order", `{"a":1}`)
	if err != nil {
		t.Fatalf("buildHMAC() error: %v", err)
	}
	if sig1 != sig2 {
		t.Error("same inputs must produce the same signature")
	}

	sig3, _ := auth.buildHMAC("1700000000", "POST", "/order", `{"a":2}`)
	if sig1 == sig3 {
		t.Error("different bodies must produce different signatures")
	}
}

func TestL2HeadersFields(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)
	auth.SetCredentials(Credentials{
		ApiKey:     "key",
		Secret:     base64.URLEncoding.EncodeToString([]byte("test-secret")),
		Passphrase: "pass",
	})

	headers, err := auth.L2Headers("POST", "/order", "{}")
	if err != nil {
		t.Fatalf("L2Headers() error: %v", err)
	}
	for _, h := range []string{"POLY_ADDRESS", "POLY_SIGNATURE", "POLY_TIMESTAMP", "POLY_API_KEY", "POLY_PASSPHRASE"} {
		if headers[h] == "" {
			t.Errorf("header %s is empty", h)
		}
	}
	if headers["POLY_ADDRESS"] != testAddress {
		t.Errorf("POLY_ADDRESS = %s, want %s", headers["POLY_ADDRESS"], testAddress)
	}
}

func TestL1HeadersFields(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)

	headers, err := auth.L1Headers(0)
	if err != nil {
		t.Fatalf("L1Headers() error: %v", err)
	}
	if headers["POLY_NONCE"] != "0" {
		t.Errorf("POLY_NONCE = %q, want 0", headers["POLY_NONCE"])
	}
	sig := headers["POLY_SIGNATURE"]
	// 65-byte signature hex-encoded with 0x prefix
	if !strings.HasPrefix(sig, "0x") || len(sig) != 132 {
		t.Errorf("signature %q has unexpected shape", sig)
	}
}

func TestSignOrder(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)

	order := types.SignedOrder{
		Maker:       testAddress,
		Signer:      testAddress,
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "123456",
		MakerAmount: big.NewInt(5_000_000),
		TakerAmount: big.NewInt(10_000_000),
		Side:        types.BUY,
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
	}

	if err := auth.SignOrder(&order); err != nil {
		t.Fatalf("SignOrder() error: %v", err)
	}
	if order.Salt == "" {
		t.Error("salt not set")
	}
	if !strings.HasPrefix(order.Signature, "0x") || len(order.Signature) != 132 {
		t.Errorf("signature %q has unexpected shape", order.Signature)
	}

	// A second signing draws a new salt, so orders stay unique.
	second := order
	second.Salt, second.Signature = "", ""
	if err := auth.SignOrder(&second); err != nil {
		t.Fatalf("SignOrder() error: %v", err)
	}
	if second.Salt == order.Salt {
		t.Error("salt reused across orders")
	}
}

func TestWSAuthPayload(t *testing.T) {
	t.Parallel()
	auth := newTestAuth(t)

	if auth.WSAuthPayload() != nil {
		t.Error("expected nil payload without credentials")
	}

	auth.SetCredentials(Credentials{ApiKey: "k", Secret: "s", Passphrase: "p"})
	payload := auth.WSAuthPayload()
	if payload == nil || payload.ApiKey != "k" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPriceToAmounts(t *testing.T) {
	t.Parallel()

	maker, taker := PriceToAmounts(0.5, 10, types.BUY)
	if maker.Int64() != 5_000_000 {
		t.Errorf("BUY makerAmount = %d, want 5000000 (cost in USDC)", maker.Int64())
	}
	if taker.Int64() != 10_000_000 {
		t.Errorf("BUY takerAmount = %d, want 10000000 (tokens)", taker.Int64())
	}

	maker, taker = PriceToAmounts(0.5, 10, types.SELL)
	if maker.Int64() != 10_000_000 {
		t.Errorf("SELL makerAmount = %d, want 10000000 (tokens)", maker.Int64())
	}
	if taker.Int64() != 5_000_000 {
		t.Errorf("SELL takerAmount = %d, want 5000000 (revenue in USDC)", taker.Int64())
	}
}

func TestPriceToAmountsTruncatesSize(t *testing.T) {
	t.Parallel()
	// Sizes are truncated to 2 decimals before scaling.
	_, taker := PriceToAmounts(0.5, 10.009, types.BUY)
	if taker.Int64() != 10_000_000 {
		t.Errorf("takerAmount = %d, want 10000000", taker.Int64())
	}
}
