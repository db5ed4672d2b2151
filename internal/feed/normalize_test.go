package feed

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"polymirror/pkg/types"
)

// fillData packs the four OrderFilled payload words.
func fillData(makerAssetID, takerAssetID, makerAmt, takerAmt int64) []byte {
	data := make([]byte, 0, 128)
	for _, v := range []int64{makerAssetID, takerAssetID, makerAmt, takerAmt} {
		data = append(data, common.LeftPadBytes(big.NewInt(v).Bytes(), 32)...)
	}
	return data
}

func TestDecodeFillLogTakerBuy(t *testing.T) {
	t.Parallel()
	// Taker paid 0.5 USDC maker-side for 1 outcome token: a BUY at 0.50.
	log := ethtypes.Log{
		TxHash: common.HexToHash("0xabc"),
		Index:  7,
		Data:   fillData(0, 123, 500_000, 1_000_000),
	}

	fill, err := DecodeFillLog(log, RoleTaker)
	if err != nil {
		t.Fatalf("DecodeFillLog() error: %v", err)
	}
	if fill.Side != types.BUY {
		t.Errorf("side = %v, want BUY", fill.Side)
	}
	if fill.TokenID != "123" {
		t.Errorf("tokenID = %q, want 123", fill.TokenID)
	}
	if math.Abs(fill.Price-0.5) > 1e-9 {
		t.Errorf("price = %v, want 0.5", fill.Price)
	}
	if math.Abs(fill.Size-1) > 1e-9 {
		t.Errorf("size = %v, want 1", fill.Size)
	}
	if fill.ID != log.TxHash.Hex()+":7" {
		t.Errorf("id = %q, want txhash:logindex", fill.ID)
	}
}

func TestDecodeFillLogTakerSell(t *testing.T) {
	t.Parallel()
	// Taker asset is USDC (id 0): the taker sold outcome tokens.
	log := ethtypes.Log{Data: fillData(77, 0, 4_000_000, 10_000_000)}

	fill, err := DecodeFillLog(log, RoleTaker)
	if err != nil {
		t.Fatalf("DecodeFillLog() error: %v", err)
	}
	if fill.Side != types.SELL {
		t.Errorf("side = %v, want SELL", fill.Side)
	}
	if fill.TokenID != "77" {
		t.Errorf("tokenID = %q, want 77", fill.TokenID)
	}
	if math.Abs(fill.Price-0.4) > 1e-9 {
		t.Errorf("price = %v, want 0.4", fill.Price)
	}
	if math.Abs(fill.Size-10) > 1e-9 {
		t.Errorf("size = %v, want 10", fill.Size)
	}
}

func TestDecodeFillLogMakerRole(t *testing.T) {
	t.Parallel()
	// Maker gave outcome tokens: a SELL from the maker's perspective.
	log := ethtypes.Log{Data: fillData(77, 0, 4_000_000, 10_000_000)}

	fill, err := DecodeFillLog(log, RoleMaker)
	if err != nil {
		t.Fatalf("DecodeFillLog() error: %v", err)
	}
	if fill.Side != types.SELL {
		t.Errorf("side = %v, want SELL", fill.Side)
	}
	if fill.TokenID != "77" {
		t.Errorf("tokenID = %q, want 77", fill.TokenID)
	}

	// Maker gave USDC: a BUY.
	log = ethtypes.Log{Data: fillData(0, 123, 500_000, 1_000_000)}
	fill, err = DecodeFillLog(log, RoleMaker)
	if err != nil {
		t.Fatalf("DecodeFillLog() error: %v", err)
	}
	if fill.Side != types.BUY {
		t.Errorf("side = %v, want BUY", fill.Side)
	}
	if fill.TokenID != "123" {
		t.Errorf("tokenID = %q, want 123", fill.TokenID)
	}
}

func TestDecodeFillLogRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	// Fewer than four packed words
	if _, err := DecodeFillLog(ethtypes.Log{Data: make([]byte, 96)}, RoleTaker); err == nil {
		t.Error("short payload should be rejected")
	}
	// Zero taker amount would divide by zero
	if _, err := DecodeFillLog(ethtypes.Log{Data: fillData(0, 123, 500_000, 0)}, RoleTaker); err == nil {
		t.Error("zero taker amount should be rejected")
	}
}

func TestNormalizeTrade(t *testing.T) {
	t.Parallel()

	fill, err := NormalizeTrade(types.TradeRecord{
		ID: "t1", Side: "sell", Price: 0.42, Size: 15, Asset: "tok-9", Timestamp: 1700000000,
	})
	if err != nil {
		t.Fatalf("NormalizeTrade() error: %v", err)
	}
	if fill.Side != types.SELL {
		t.Errorf("side = %v, want SELL (case-insensitive)", fill.Side)
	}
	if fill.TokenID != "tok-9" || fill.ID != "t1" {
		t.Errorf("fill = %+v", fill)
	}

	for name, rec := range map[string]types.TradeRecord{
		"no id":      {Side: "BUY", Price: 0.5, Size: 10, Asset: "tok"},
		"no token":   {ID: "t1", Side: "BUY", Price: 0.5, Size: 10},
		"bad price":  {ID: "t1", Side: "BUY", Price: 1.5, Size: 10, Asset: "tok"},
		"zero size":  {ID: "t1", Side: "BUY", Price: 0.5, Size: 0, Asset: "tok"},
	} {
		if _, err := NormalizeTrade(rec); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNormalizeTradeFallbackID(t *testing.T) {
	t.Parallel()
	idx := int64(3)
	fill, err := NormalizeTrade(types.TradeRecord{
		TransactionHash: "0xdead", LogIndex: &idx,
		Side: "BUY", Price: 0.5, Size: 10, TokenUnder: "tok",
	})
	if err != nil {
		t.Fatalf("NormalizeTrade() error: %v", err)
	}
	if fill.ID != "0xdead:3" {
		t.Errorf("id = %q, want 0xdead:3", fill.ID)
	}
	if fill.TokenID != "tok" {
		t.Errorf("tokenID = %q, want tok from token_id field", fill.TokenID)
	}
}

func TestNormalizeWSTrade(t *testing.T) {
	t.Parallel()

	fill, err := NormalizeWSTrade(types.WSTradeEvent{
		EventType: "trade", ID: "w1", AssetID: "tok", Side: "SELL",
		Price: "0.61", Size: "12.5", Timestamp: "1700000000",
	})
	if err != nil {
		t.Fatalf("NormalizeWSTrade() error: %v", err)
	}
	if fill.Side != types.SELL || fill.Price != 0.61 || fill.Size != 12.5 {
		t.Errorf("fill = %+v", fill)
	}
	if fill.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d", fill.Timestamp)
	}

	if _, err := NormalizeWSTrade(types.WSTradeEvent{ID: "w1", AssetID: "tok", Side: "BUY", Price: "nope", Size: "1"}); err == nil {
		t.Error("unparseable price should be rejected")
	}
}
