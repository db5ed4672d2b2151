package feed

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"polymirror/pkg/types"
)

// TradeSource is the subset of the Data-API client the poller needs.
type TradeSource interface {
	Trades(ctx context.Context, user string, limit int) ([]types.TradeRecord, error)
	Activity(ctx context.Context, user string, limit int) ([]types.ActivityRecord, error)
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ResolveEffectiveAddress determines which address to poll for trades.
// Polymarket accounts trade through a smart-contract proxy wallet distinct
// from the signing EOA, and /trades only knows the proxy. If the literal
// target has no trades, the proxy wallet is taken from the account's most
// recent activity record.
func ResolveEffectiveAddress(ctx context.Context, src TradeSource, target string, logger *slog.Logger) string {
	// The Data-API keys addresses lowercased.
	target = strings.ToLower(target)
	trades, err := src.Trades(ctx, target, 1)
	if err == nil && len(trades) > 0 {
		return target
	}
	if err != nil {
		logger.Warn("trade lookup failed during address resolution", "error", err)
	}

	activity, err := src.Activity(ctx, target, 1)
	if err != nil || len(activity) == 0 {
		return target
	}
	proxy := activity[0].ProxyWallet
	if !addressPattern.MatchString(proxy) {
		return target
	}
	proxy = strings.ToLower(proxy)
	logger.Info("resolved proxy wallet", "target", target, "proxy", proxy)
	return proxy
}

// Poller fetches the target's recent trades on a fixed cadence and forwards
// them oldest to newest. Records that cannot be normalized are reported
// through the discard callback so the engine can still burn their ids.
type Poller struct {
	src     TradeSource
	user    string // effective polled address
	limit   int
	handler FillHandler
	discard func(id string, reason error) // nil-safe
	logger  *slog.Logger

	interval time.Duration
}

// NewPoller creates a REST trade poller for the given (already resolved)
// address.
func NewPoller(src TradeSource, user string, interval time.Duration, limit int, handler FillHandler, discard func(string, error), logger *slog.Logger) *Poller {
	return &Poller{
		src:      src,
		user:     user,
		limit:    limit,
		handler:  handler,
		discard:  discard,
		logger:   logger.With("component", "poller"),
		interval: interval,
	}
}

func (p *Poller) Name() string { return "poller" }

// Run polls until ctx is cancelled. Ticks are sequential: the next fetch is
// scheduled only after the current one finishes, so slow responses cannot
// pile up concurrent requests.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "user", p.user, "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-time.After(p.interval):
		}
		p.tick(ctx)
	}
}

func (p *Poller) tick(ctx context.Context) {
	trades, err := p.src.Trades(ctx, p.user, p.limit)
	if err != nil {
		p.logger.Warn("trade fetch failed", "error", err)
		return
	}

	// The API returns newest first; replay oldest to newest so mirrored
	// orders keep the target's execution order.
	for i := len(trades) - 1; i >= 0; i-- {
		fill, nerr := NormalizeTrade(trades[i])
		if nerr != nil {
			if id := trades[i].FillID(); id != "" && p.discard != nil {
				p.discard(id, nerr)
			}
			p.logger.Warn("skipping malformed trade", "error", nerr)
			continue
		}
		p.handler(fill)
	}
}
