// Package feed implements the three fill-detection adapters: on-chain log
// scanner, REST trade poller, and user WebSocket push channel.
//
// Every adapter observes the target wallet's fills through a different
// transport and reduces them to the same normalized FillEvent shape, handed
// to a single FillHandler callback. Any combination of adapters may run
// within one session; the mirror engine's dedup ledger collapses the
// overlap between them.
package feed

import (
	"context"

	"polymirror/pkg/types"
)

// FillHandler consumes one normalized fill. Implementations must be safe
// for concurrent calls, since multiple adapters may observe fills at once.
type FillHandler func(fill types.FillEvent)

// Feed is one fill-detection adapter. Run blocks until ctx is cancelled;
// transient errors are handled internally (logged, retried, or skipped)
// and never abort the adapter.
type Feed interface {
	Name() string
	Run(ctx context.Context)
}
