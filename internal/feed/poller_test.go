package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"polymirror/pkg/types"
)

type fakeTradeSource struct {
	mu       sync.Mutex
	trades   map[string][]types.TradeRecord // keyed by polled user
	activity []types.ActivityRecord
	tradeErr error
}

func (s *fakeTradeSource) Trades(_ context.Context, user string, _ int) ([]types.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tradeErr != nil {
		return nil, s.tradeErr
	}
	return s.trades[user], nil
}

func (s *fakeTradeSource) Activity(_ context.Context, _ string, _ int) ([]types.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveEffectiveAddressKeepsTargetWithTrades(t *testing.T) {
	t.Parallel()
	// The API is queried with the lowercased address regardless of how the
	// target was configured.
	src := &fakeTradeSource{trades: map[string][]types.TradeRecord{
		"0xtarget": {{ID: "t1"}},
	}}

	got := ResolveEffectiveAddress(context.Background(), src, "0xTarget", discardLogger())
	if got != "0xtarget" {
		t.Errorf("effective address = %q, want the lowercased literal target", got)
	}
}

func TestResolveEffectiveAddressFallsBackToProxy(t *testing.T) {
	t.Parallel()
	src := &fakeTradeSource{
		trades:   map[string][]types.TradeRecord{},
		activity: []types.ActivityRecord{{ProxyWallet: "0xABCDEFabcdef0123456789ABCDEF0123456789AB"}},
	}

	got := ResolveEffectiveAddress(context.Background(), src, "0xTarget", discardLogger())
	want := "0xabcdefabcdef0123456789abcdef0123456789ab"
	if got != want {
		t.Errorf("effective address = %q, want lowercased proxy %q", got, want)
	}
}

func TestResolveEffectiveAddressRejectsMalformedProxy(t *testing.T) {
	t.Parallel()
	src := &fakeTradeSource{
		trades:   map[string][]types.TradeRecord{},
		activity: []types.ActivityRecord{{ProxyWallet: "not-an-address"}},
	}

	got := ResolveEffectiveAddress(context.Background(), src, "0xTarget", discardLogger())
	if got != "0xTarget" {
		t.Errorf("effective address = %q, want the target when the proxy is malformed", got)
	}
}

func TestPollerForwardsOldestFirst(t *testing.T) {
	t.Parallel()
	src := &fakeTradeSource{trades: map[string][]types.TradeRecord{
		"user": {
			// API order: newest first
			{ID: "t3", Side: "BUY", Price: 0.5, Size: 10, Asset: "tok"},
			{ID: "t2", Side: "BUY", Price: 0.5, Size: 10, Asset: "tok"},
			{ID: "t1", Side: "BUY", Price: 0.5, Size: 10, Asset: "tok"},
		},
	}}

	var mu sync.Mutex
	var ids []string
	p := NewPoller(src, "user", time.Hour, 50, func(f types.FillEvent) {
		mu.Lock()
		ids = append(ids, f.ID)
		mu.Unlock()
	}, nil, discardLogger())

	p.tick(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 3 || ids[0] != "t1" || ids[1] != "t2" || ids[2] != "t3" {
		t.Errorf("forwarded order = %v, want [t1 t2 t3]", ids)
	}
}

func TestPollerReportsMalformedTradesToDiscard(t *testing.T) {
	t.Parallel()
	src := &fakeTradeSource{trades: map[string][]types.TradeRecord{
		"user": {
			{ID: "good", Side: "BUY", Price: 0.5, Size: 10, Asset: "tok"},
			{ID: "no-token", Side: "BUY", Price: 0.5, Size: 10},
		},
	}}

	var mu sync.Mutex
	var forwarded, discarded []string
	p := NewPoller(src, "user", time.Hour, 50,
		func(f types.FillEvent) {
			mu.Lock()
			forwarded = append(forwarded, f.ID)
			mu.Unlock()
		},
		func(id string, _ error) {
			mu.Lock()
			discarded = append(discarded, id)
			mu.Unlock()
		},
		discardLogger())

	p.tick(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(forwarded) != 1 || forwarded[0] != "good" {
		t.Errorf("forwarded = %v, want [good]", forwarded)
	}
	if len(discarded) != 1 || discarded[0] != "no-token" {
		t.Errorf("discarded = %v, want [no-token]", discarded)
	}
}

func TestPollerSurvivesFetchErrors(t *testing.T) {
	t.Parallel()
	src := &fakeTradeSource{tradeErr: errors.New("upstream down")}

	p := NewPoller(src, "user", time.Hour, 50, func(types.FillEvent) {
		t.Error("no fills expected")
	}, nil, discardLogger())

	// Must not panic; the next tick would simply retry.
	p.tick(context.Background())
}
