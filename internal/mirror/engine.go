package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"polymirror/internal/config"
	"polymirror/internal/feed"
	"polymirror/internal/store"
	"polymirror/pkg/types"
)

// OrderPlacer submits one mirror order to the exchange.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order types.UserOrder) (*types.OrderResponse, error)
}

// CommissionPayer transfers a USDC commission on-chain.
type CommissionPayer interface {
	TransferUSDC(ctx context.Context, to string, amountUSD float64) (string, error)
}

// ReceiptSink records the outcome of each processed fill.
type ReceiptSink interface {
	Append(r store.Receipt) error
}

// Deps are the engine's external collaborators. Placer is required; the
// others degrade gracefully when nil (no commission, no journal, feeds that
// need them disabled).
type Deps struct {
	Placer   OrderPlacer
	Payer    CommissionPayer
	Trades   feed.TradeSource
	Chain    feed.LogClient
	WSAuth   *types.WSAuth
	Receipts ReceiptSink
}

var targetPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Engine orchestrates one mirror session: it starts the configured feed
// adapters, funnels their fills through the shared dedup ledger and the
// pricing policy, and submits the resulting orders.
//
// Every fill id is claimed in the ledger exactly once, before any other
// processing, so a fill observed by two adapters at once produces one order
// at most, and a fill that fails validation or placement is never retried
// within the session.
type Engine struct {
	cfg    config.Config
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	warmed  atomic.Bool
}

// NewEngine creates a mirror engine. Call Start to begin a session.
func NewEngine(cfg config.Config, deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "engine"),
	}
}

// Start begins a mirror session. Any previous session is torn down first,
// so restarting is always safe. It fails fast when no order signer is wired
// or the target address is missing or malformed.
func (e *Engine) Start(ctx context.Context) error {
	if e.deps.Placer == nil {
		return fmt.Errorf("no signing wallet available")
	}
	target := e.cfg.Mirror.TargetAddress
	if !targetPattern.MatchString(target) {
		return fmt.Errorf("target address %q is not a valid 0x address", target)
	}

	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.warmed.Store(false)

	ledger := NewLedger(e.cfg.Feeds.SeenLimit)
	handler := func(fill types.FillEvent) {
		e.onFill(sessionCtx, ledger, fill)
	}
	discard := func(id string, reason error) {
		if ledger.Remember(id) {
			e.record(store.Receipt{FillID: id, Status: "skipped", Reason: reason.Error()})
		}
	}

	// Resolve which address the REST endpoints know the target by. The
	// on-chain feeds always watch the literal address.
	effective := target
	if e.deps.Trades != nil && (e.cfg.Feeds.UsePoller || e.cfg.Feeds.Warmup) {
		effective = feed.ResolveEffectiveAddress(sessionCtx, e.deps.Trades, target, e.logger)
	}

	if e.cfg.Feeds.Warmup && e.deps.Trades != nil {
		e.warmup(sessionCtx, ledger, effective)
	}
	e.warmed.Store(true)

	var feeds []feed.Feed
	if e.cfg.Feeds.UseChain && e.deps.Chain != nil {
		feeds = append(feeds, feed.NewScanner(e.deps.Chain, e.cfg.Feeds, common.HexToAddress(target), handler, e.logger))
	}
	if e.cfg.Feeds.UsePoller && e.deps.Trades != nil {
		feeds = append(feeds, feed.NewPoller(e.deps.Trades, effective, e.cfg.Feeds.PollInterval, e.cfg.Feeds.PageLimit, handler, discard, e.logger))
	}
	if e.cfg.Feeds.UsePush {
		feeds = append(feeds, feed.NewPushFeed(e.cfg.API.WSUserURL, e.deps.WSAuth, handler, e.logger))
	}
	if len(feeds) == 0 {
		cancel()
		e.cancel = nil
		return fmt.Errorf("no fill feed available: check feed flags and endpoints")
	}

	for _, f := range feeds {
		e.wg.Add(1)
		go func(f feed.Feed) {
			defer e.wg.Done()
			f.Run(sessionCtx)
		}(f)
	}

	e.running = true
	e.logger.Info("mirror session started",
		"target", target,
		"effective", effective,
		"feeds", len(feeds),
		"mode", e.cfg.Mirror.Mode,
		"value", e.cfg.Mirror.Value,
		"dry_run", e.cfg.DryRun,
	)
	return nil
}

// Stop tears down the current session: feeds are cancelled and the dedup
// ledger is discarded. Safe to call at any time, including when already
// stopped or never started.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return
	}
	e.cancel()
	e.cancel = nil
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("mirror session stopped")
}

// Running reports whether a session is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// warmup marks the target's current recent fills as seen, so starting a
// session never replays trade history. Failure is logged and the session
// proceeds; the ledger then simply starts empty.
func (e *Engine) warmup(ctx context.Context, ledger *Ledger, user string) {
	trades, err := e.deps.Trades.Trades(ctx, user, e.cfg.Feeds.PageLimit)
	if err != nil {
		e.logger.Warn("warm-start fetch failed, starting with empty ledger", "error", err)
		return
	}
	count := 0
	for _, t := range trades {
		if id := t.FillID(); id != "" {
			ledger.Remember(id)
			count++
		}
	}
	e.logger.Info("warm-start complete", "seeded", count)
}

// onFill is the single consumer behind every feed adapter.
func (e *Engine) onFill(ctx context.Context, ledger *Ledger, fill types.FillEvent) {
	if ctx.Err() != nil {
		return
	}

	// Claim the id first. Whatever happens next, this fill is processed at
	// most once per session.
	if !ledger.Remember(fill.ID) {
		return
	}

	if !e.warmed.Load() {
		// Position relative to the warm-start snapshot is unknown; copying
		// it could replay a historical trade.
		e.logger.Debug("fill before warm-start complete, skipping", "fill_id", fill.ID)
		return
	}

	order, err := DeriveOrder(fill, e.cfg.Mirror)
	if err != nil {
		e.logger.Info("fill not mirrored", "fill_id", fill.ID, "reason", err)
		e.record(store.Receipt{FillID: fill.ID, TokenID: fill.TokenID, Side: string(fill.Side), Status: "skipped", Reason: err.Error()})
		return
	}

	// Let an in-flight placement finish even if the session stops; the
	// result is discarded below when that happens.
	callCtx := context.WithoutCancel(ctx)

	resp, err := e.deps.Placer.PlaceOrder(callCtx, order)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.logger.Error("order placement failed", "fill_id", fill.ID, "error", err)
		e.record(store.Receipt{
			FillID: fill.ID, TokenID: order.TokenID, Side: string(order.Side),
			Price: order.Price, Size: order.Size,
			Status: "failed", Reason: err.Error(),
		})
		return
	}

	e.logger.Info("order mirrored",
		"fill_id", fill.ID,
		"order_id", resp.OrderID,
		"side", order.Side,
		"price", order.Price,
		"size", order.Size,
	)

	commission, commissionTx := e.payCommission(callCtx, order)

	e.record(store.Receipt{
		FillID: fill.ID, TokenID: order.TokenID, Side: string(order.Side),
		Price: order.Price, Size: order.Size,
		OrderID: resp.OrderID, Status: "placed",
		Commission: commission, CommissionTx: commissionTx,
	})
}

// payCommission transfers the configured percentage of the order's notional
// to the collector address. Best-effort: failure never unwinds the order.
func (e *Engine) payCommission(ctx context.Context, order types.UserOrder) (amount float64, txHash string) {
	if e.deps.Payer == nil || e.cfg.Mirror.CommissionAddress == "" || e.cfg.DryRun {
		return 0, ""
	}
	amount = order.Notional() * e.cfg.Mirror.CommissionPct / 100
	if amount <= 0 {
		return 0, ""
	}

	txHash, err := e.deps.Payer.TransferUSDC(ctx, e.cfg.Mirror.CommissionAddress, amount)
	if err != nil {
		e.logger.Warn("commission transfer failed", "amount", amount, "error", err)
		return amount, ""
	}
	e.logger.Info("commission transferred", "amount", amount, "tx", txHash)
	return amount, txHash
}

func (e *Engine) record(r store.Receipt) {
	if e.deps.Receipts == nil {
		return
	}
	if err := e.deps.Receipts.Append(r); err != nil {
		e.logger.Warn("receipt write failed", "error", err)
	}
}
