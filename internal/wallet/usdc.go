package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// ERC20 function selectors, first 4 bytes of the keccak256 signature hash.
var (
	selBalanceOf = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selTransfer  = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
)

const usdcDecimals = 6

// transferGasLimit covers a standard ERC20 transfer with margin.
const transferGasLimit = 90_000

// USDCBalance returns the wallet's USDC balance in whole dollars.
func (w *Wallet) USDCBalance(ctx context.Context) (float64, error) {
	if w.client == nil {
		return 0, fmt.Errorf("no rpc client")
	}

	calldata := append(append([]byte{}, selBalanceOf...), common.LeftPadBytes(w.address.Bytes(), 32)...)
	result, err := w.client.CallContract(ctx, ethereum.CallMsg{
		To:   &w.usdc,
		Data: calldata,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("balanceOf call: %w", err)
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("short balanceOf result: %d bytes", len(result))
	}

	raw := new(big.Int).SetBytes(result[:32])
	bal, _ := decimal.NewFromBigInt(raw, -usdcDecimals).Float64()
	return bal, nil
}

// TransferUSDC sends amountUSD of USDC to the given address and returns the
// transaction hash. The caller treats failures as best-effort: a commission
// that cannot be paid never unwinds the mirrored order.
func (w *Wallet) TransferUSDC(ctx context.Context, to string, amountUSD float64) (string, error) {
	if w.client == nil {
		return "", fmt.Errorf("no rpc client")
	}
	if amountUSD <= 0 {
		return "", fmt.Errorf("non-positive amount %v", amountUSD)
	}

	amount := decimal.NewFromFloat(amountUSD).Shift(usdcDecimals).BigInt()
	recipient := common.HexToAddress(to)

	calldata := append(append([]byte{}, selTransfer...), common.LeftPadBytes(recipient.Bytes(), 32)...)
	calldata = append(calldata, common.LeftPadBytes(amount.Bytes(), 32)...)

	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &w.usdc,
		Value:    big.NewInt(0),
		Gas:      transferGasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash().Hex(), nil
}
