package wallet

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"
)

const testKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

func TestNewAcceptsKeyWithAndWithoutPrefix(t *testing.T) {
	t.Parallel()

	plain, err := New(testKey, nil, 137, "")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	prefixed, err := New("0x"+testKey, nil, 137, "")
	if err != nil {
		t.Fatalf("New() with prefix error: %v", err)
	}
	if plain.Address() != prefixed.Address() {
		t.Errorf("addresses differ: %s vs %s", plain.Address().Hex(), prefixed.Address().Hex())
	}
	if plain.Address().Hex() != "0x70997970C51812dc3A010C7d01b50e0d17dc79C8" {
		t.Errorf("address = %s", plain.Address().Hex())
	}
}

func TestNewRejectsMalformedKey(t *testing.T) {
	t.Parallel()
	if _, err := New("not-hex", nil, 137, ""); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	keyHex, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.HasPrefix(keyHex, "0x") || len(keyHex) != 66 {
		t.Fatalf("generated key %q has unexpected shape", keyHex)
	}
	// The generated key must round-trip through import.
	if _, err := New(keyHex, nil, 137, ""); err != nil {
		t.Errorf("generated key not importable: %v", err)
	}
}

func TestERC20Selectors(t *testing.T) {
	t.Parallel()
	// Canonical ERC20 four-byte selectors.
	if got := hex.EncodeToString(selBalanceOf); got != "70a08231" {
		t.Errorf("balanceOf selector = %s, want 70a08231", got)
	}
	if got := hex.EncodeToString(selTransfer); got != "a9059cbb" {
		t.Errorf("transfer selector = %s, want a9059cbb", got)
	}
}

func TestOnchainOpsRequireClient(t *testing.T) {
	t.Parallel()
	w, err := New(testKey, nil, 137, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.USDCBalance(context.Background()); err == nil {
		t.Error("USDCBalance without a client should fail")
	}
	if _, err := w.TransferUSDC(context.Background(), "0x0000000000000000000000000000000000000001", 1); err == nil {
		t.Error("TransferUSDC without a client should fail")
	}
	if _, err := w.NativeBalance(context.Background()); err == nil {
		t.Error("NativeBalance without a client should fail")
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()
	w, err := New(testKey, nil, 137, "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.TransferUSDC(context.Background(), "0x0000000000000000000000000000000000000001", 0); err == nil {
		t.Error("zero amount should be rejected")
	}
}
