package feed

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"polymirror/internal/config"
)

// OrderFilledTopic is the keccak256 signature of the CTF exchange's
// OrderFilled event. Indexed fields: slot 1 is the order hash, slot 2
// the maker address, slot 3 the taker address.
const OrderFilledTopic = "0xd0a08e8c493f9c94f29311604c9de1b4e8c8d4c06bd0c789af57f2d65bfec0f6"

// LogClient is the subset of ethclient.Client the scanner needs.
type LogClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// Scanner watches the exchange contract for OrderFilled logs where the
// target wallet appears as maker or taker. It sweeps forward from a block
// cursor in fixed-size chunks, halving the chunk size when the provider
// rejects a range as too large. Sweeps never overlap: the next one is
// scheduled only after the current one returns.
type Scanner struct {
	client   LogClient
	exchange common.Address
	target   common.Address
	handler  FillHandler
	logger   *slog.Logger

	interval time.Duration
	span     uint64 // max blocks per sweep
	chunk    uint64 // configured blocks per getLogs call
	lookback uint64 // blocks behind head at first sweep

	lastScanned uint64 // highest block already swept; 0 = not initialized
}

// NewScanner creates an on-chain fill scanner for the target wallet.
func NewScanner(client LogClient, cfg config.FeedsConfig, target common.Address, handler FillHandler, logger *slog.Logger) *Scanner {
	return &Scanner{
		client:   client,
		exchange: common.HexToAddress(cfg.ExchangeAddress),
		target:   target,
		handler:  handler,
		logger:   logger.With("component", "chain-scanner"),
		interval: cfg.ScanInterval,
		span:     cfg.ScanSpan,
		chunk:    cfg.ChunkBlocks,
		lookback: cfg.InitialLookback,
	}
}

func (s *Scanner) Name() string { return "chain" }

// Run sweeps on a fixed cadence until ctx is cancelled. Each iteration
// blocks on the sweep before sleeping, which is the single-flight guard:
// a slow provider stretches the cadence instead of stacking sweeps.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("scanner started", "target", s.target.Hex(), "interval", s.interval)
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

// sweep advances the cursor over at most span blocks, chunk by chunk.
func (s *Scanner) sweep(ctx context.Context) {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn("block number fetch failed", "error", err)
		return
	}

	if s.lastScanned == 0 {
		if head > s.lookback {
			s.lastScanned = head - s.lookback
		}
	}

	from := s.lastScanned + 1
	to := from + s.span
	if to > head {
		to = head
	}
	if to < from {
		return
	}

	chunk := s.chunk
	start := from
	for start <= to {
		if ctx.Err() != nil {
			return
		}
		end := start + chunk - 1
		if end > to {
			end = to
		}

		logs, err := s.fetchChunk(ctx, start, end)
		if err != nil {
			if isRangeTooLarge(err) && chunk > 1 {
				// Provider range limit: halve and retry the same start block.
				chunk /= 2
				s.logger.Warn("range too large, halving chunk", "chunk", chunk, "from", start)
				continue
			}
			// Accepted gap: the chunk is skipped, the cursor still advances
			// so one bad range cannot stall the sweep forever.
			s.logger.Warn("log fetch failed, skipping chunk", "from", start, "to", end, "error", err)
		} else {
			for _, entry := range logs {
				fill, derr := DecodeFillLog(entry.log, entry.role)
				if derr != nil {
					s.logger.Warn("undecodable fill log", "tx", entry.log.TxHash.Hex(), "error", derr)
					continue
				}
				s.handler(fill)
			}
		}

		s.lastScanned = end
		start = end + 1
	}
}

type roleLog struct {
	log  ethtypes.Log
	role Role
}

// fetchChunk runs the maker-slot and taker-slot queries for one block range.
// Maker logs are forwarded before taker logs; ordering within each query is
// whatever the provider returns.
func (s *Scanner) fetchChunk(ctx context.Context, from, to uint64) ([]roleLog, error) {
	eventTopic := common.HexToHash(OrderFilledTopic)
	targetTopic := common.BytesToHash(common.LeftPadBytes(s.target.Bytes(), 32))

	var out []roleLog
	for _, role := range []Role{RoleMaker, RoleTaker} {
		// Slot 1 is the order hash and stays unconstrained; the target
		// goes in slot 2 (maker) or slot 3 (taker).
		topics := [][]common.Hash{{eventTopic}}
		if role == RoleMaker {
			topics = append(topics, nil, []common.Hash{targetTopic})
		} else {
			topics = append(topics, nil, nil, []common.Hash{targetTopic})
		}

		logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{s.exchange},
			Topics:    topics,
		})
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			out = append(out, roleLog{log: l, role: role})
		}
	}
	return out, nil
}

// isRangeTooLarge recognizes the provider errors that mean the requested
// block range exceeded a getLogs limit.
func isRangeTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "range") &&
		(strings.Contains(msg, "large") || strings.Contains(msg, "limit") || strings.Contains(msg, "exceed"))
}
