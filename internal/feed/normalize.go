package feed

import (
	"fmt"
	"math/big"
	"strconv"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"polymirror/pkg/types"
)

// Role distinguishes which side of an on-chain OrderFilled event the target
// wallet occupied. The same event payload decodes to a different trade
// direction depending on the role.
type Role int

const (
	RoleMaker Role = iota
	RoleTaker
)

func (r Role) String() string {
	if r == RoleMaker {
		return "maker"
	}
	return "taker"
}

// wordSize is the width of one ABI-packed field in the event data.
const wordSize = 32

// DecodeFillLog decodes an OrderFilled event payload into a FillEvent.
//
// The data section packs four 32-byte words: makerAssetId, takerAssetId,
// makerAmountFilled, takerAmountFilled. Asset id zero is the collateral
// (USDC); a non-zero id is an outcome token. Amounts are 6-decimal fixed
// point. Price is makerAmount/takerAmount and size is takerAmount's decimal
// value, per the exchange contract's fill accounting.
//
// Side and token id depend on the target's role:
//   - taker: BUY if takerAssetId != 0 (taker received outcome tokens),
//     else SELL; token is whichever asset id is non-zero.
//   - maker: SELL if makerAssetId != 0 (maker gave outcome tokens),
//     else BUY; symmetric token resolution.
func DecodeFillLog(log ethtypes.Log, role Role) (types.FillEvent, error) {
	if len(log.Data) < 4*wordSize {
		return types.FillEvent{}, fmt.Errorf("order filled data too short: %d bytes", len(log.Data))
	}

	makerAssetID := new(big.Int).SetBytes(log.Data[0:wordSize])
	takerAssetID := new(big.Int).SetBytes(log.Data[wordSize : 2*wordSize])
	makerAmt := new(big.Int).SetBytes(log.Data[2*wordSize : 3*wordSize])
	takerAmt := new(big.Int).SetBytes(log.Data[3*wordSize : 4*wordSize])

	if takerAmt.Sign() == 0 {
		return types.FillEvent{}, fmt.Errorf("zero taker amount")
	}

	// 6-decimal fixed point
	makerDec := decimal.NewFromBigInt(makerAmt, -6)
	takerDec := decimal.NewFromBigInt(takerAmt, -6)

	price, _ := makerDec.Div(takerDec).Float64()
	size, _ := takerDec.Float64()

	var side types.Side
	var tokenID *big.Int
	switch role {
	case RoleTaker:
		if takerAssetID.Sign() != 0 {
			side = types.BUY
			tokenID = takerAssetID
		} else {
			side = types.SELL
			tokenID = makerAssetID
		}
	default:
		if makerAssetID.Sign() != 0 {
			side = types.SELL
			tokenID = makerAssetID
		} else {
			side = types.BUY
			tokenID = takerAssetID
		}
	}

	if tokenID.Sign() == 0 {
		return types.FillEvent{}, fmt.Errorf("no outcome token in fill")
	}

	return types.FillEvent{
		ID:      log.TxHash.Hex() + ":" + strconv.FormatUint(uint64(log.Index), 10),
		Side:    side,
		TokenID: tokenID.String(),
		Price:   price,
		Size:    size,
	}, nil
}

// NormalizeTrade converts a Data-API trade record into a FillEvent.
// Returns an error naming the failed field so the caller can log the skip.
func NormalizeTrade(t types.TradeRecord) (types.FillEvent, error) {
	id := t.FillID()
	if id == "" {
		return types.FillEvent{}, fmt.Errorf("no trade id")
	}
	tokenID := t.TokenIdentifier()
	if tokenID == "" {
		return types.FillEvent{}, fmt.Errorf("no token id")
	}
	if t.Price <= 0 || t.Price >= 1 {
		return types.FillEvent{}, fmt.Errorf("invalid price %v", t.Price)
	}
	if t.Size <= 0 {
		return types.FillEvent{}, fmt.Errorf("invalid size %v", t.Size)
	}

	return types.FillEvent{
		ID:        id,
		Side:      types.ParseSide(t.Side),
		TokenID:   tokenID,
		Price:     t.Price,
		Size:      t.Size,
		Timestamp: t.Timestamp,
	}, nil
}

// NormalizeWSTrade converts a user-channel trade message into a FillEvent.
// Numeric fields arrive as strings on the wire.
func NormalizeWSTrade(e types.WSTradeEvent) (types.FillEvent, error) {
	if e.ID == "" {
		return types.FillEvent{}, fmt.Errorf("no trade id")
	}
	if e.AssetID == "" {
		return types.FillEvent{}, fmt.Errorf("no token id")
	}
	price, err := strconv.ParseFloat(e.Price, 64)
	if err != nil || price <= 0 || price >= 1 {
		return types.FillEvent{}, fmt.Errorf("invalid price %q", e.Price)
	}
	size, err := strconv.ParseFloat(e.Size, 64)
	if err != nil || size <= 0 {
		return types.FillEvent{}, fmt.Errorf("invalid size %q", e.Size)
	}
	ts, _ := strconv.ParseInt(e.Timestamp, 10, 64)

	return types.FillEvent{
		ID:        e.ID,
		Side:      types.ParseSide(e.Side),
		TokenID:   e.AssetID,
		Price:     price,
		Size:      size,
		Timestamp: ts,
	}, nil
}
