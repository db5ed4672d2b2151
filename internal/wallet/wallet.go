// Package wallet handles key custody and the on-chain USDC operations the
// mirror engine needs: balance checks and best-effort commission transfers.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// Wallet wraps an EOA private key and an RPC connection.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	client  *ethclient.Client
	chainID *big.Int
	usdc    common.Address
}

// New imports a private key (with or without 0x prefix) and binds it to an
// RPC client. The client may be nil for signing-only use.
func New(privateKeyHex string, client *ethclient.Client, chainID int64, usdcAddress string) (*Wallet, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		client:  client,
		chainID: big.NewInt(chainID),
		usdc:    common.HexToAddress(usdcAddress),
	}, nil
}

// Generate creates a fresh private key and returns it hex-encoded with a
// 0x prefix, suitable for POLY_PRIVATE_KEY.
func Generate() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hexutil.Encode(crypto.FromECDSA(key)), nil
}

// Address returns the wallet's Ethereum address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// NativeBalance returns the wallet's native token balance (POL on Polygon)
// in whole units.
func (w *Wallet) NativeBalance(ctx context.Context) (float64, error) {
	if w.client == nil {
		return 0, fmt.Errorf("no RPC client configured")
	}
	wei, err := w.client.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch native balance: %w", err)
	}
	bal, _ := decimal.NewFromBigInt(wei, -18).Float64()
	return bal, nil
}
