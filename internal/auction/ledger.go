package auction

import (
	"sync"

	"github.com/abdoElHodaky/energyauction/internal/auctionerr"
	"github.com/abdoElHodaky/energyauction/internal/obslog"
)

// TransferFunc is the value-transfer capability the engine consumes from
// the underlying substrate: move amount of owned value to participant to.
// The engine never receives raw funds itself; it only ever transfers out
// value already escrowed with an order (spec §1).
type TransferFunc func(to string, amount uint64) error

// PayoutOp is one planned outbound transfer, staged before execution so a
// roll can be evaluated and applied as a single unit.
type PayoutOp struct {
	Kind   string
	To     string
	Amount uint64
}

// EscrowLedger holds bidder-deposited value and pays it out on refund,
// delivery, or expiry. It is a logical accounting layer over whatever
// transfer primitive the substrate provides (spec §4.4); the engine never
// talks to that substrate directly.
type EscrowLedger struct {
	mu        sync.Mutex
	totalHeld uint64
	transfer  TransferFunc
	logger    obslog.Logger
}

// NewEscrowLedger creates a ledger that calls transfer to move funds out.
func NewEscrowLedger(transfer TransferFunc, logger obslog.Logger) *EscrowLedger {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &EscrowLedger{transfer: transfer, logger: logger}
}

// Hold records newly escrowed value, e.g. at bid submission.
func (l *EscrowLedger) Hold(amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalHeld += amount
}

// TotalHeld returns the value currently held in escrow.
func (l *EscrowLedger) TotalHeld() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalHeld
}

// ExecutePlan executes ops in order until one fails or all succeed. It
// returns the number of ops that completed (a prefix of ops) alongside any
// error, and decrements totalHeld by the executed sum unconditionally —
// including on failure — since a completed transfer has genuinely left the
// ledger regardless of what happens afterward.
//
// Transfers already executed before the failing one are not reversed: once
// the substrate has reported success for a transfer, the value has left
// the ledger for good (in a blockchain substrate this is simply the next
// statement in the same transaction, and the whole transaction reverts
// together; an in-memory substrate cannot offer that). Instead, the caller
// is expected to track the returned completed count and, on retry, submit
// only ops[completed:] — re-running the whole plan would transfer the
// already-executed ops' funds a second time (spec §4.4, §5's "the ledger
// must never double-spend"; see DESIGN.md).
func (l *EscrowLedger) ExecutePlan(ops []PayoutOp) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var executed uint64
	completed := 0
	for i, op := range ops {
		if op.Amount == 0 {
			completed++
			continue
		}
		if err := l.transfer(op.To, op.Amount); err != nil {
			l.logger.Error("ledger transfer failed, aborting plan",
				"step", i+1, "of", len(ops), "kind", op.Kind, "to", op.To, "amount", op.Amount, "error", err.Error())
			l.totalHeld -= executed
			return completed, auctionerr.Wrapf(err, auctionerr.LedgerFailure,
				"transfer to %s failed at step %d/%d (%s)", op.To, i+1, len(ops), op.Kind)
		}
		executed += op.Amount
		completed++
	}
	l.totalHeld -= executed
	return completed, nil
}
