// Package auction implements the auction engine: the bucket lifecycle state
// machine, order book, sort oracle, matcher, escrow ledger, and settlement
// described in spec.md §3–§4. It is the only package that knows the
// matching algorithm; internal/api and cmd/auctiond only ever call Engine.
package auction

// BucketStatus is the lifecycle state of one bucket (spec §3, §4.5).
type BucketStatus int

const (
	StatusOpen BucketStatus = iota
	StatusClosed
	StatusCleared
)

func (s BucketStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusClosed:
		return "CLOSED"
	case StatusCleared:
		return "CLEARED"
	default:
		return "UNKNOWN"
	}
}

// Bid is a buy order with pre-escrowed funds (spec §3).
type Bid struct {
	Trader        string
	EnergyAmount  uint64
	UnitPrice     uint64
	EscrowedValue uint64
	OfferID       uint64
}

// Price satisfies the Priced interface the sort oracle sorts on.
func (b *Bid) Price() uint64 { return b.UnitPrice }

// Ask is a sell offer (spec §3). Asks do not escrow.
type Ask struct {
	Trader       string
	EnergyAmount uint64
	UnitPrice    uint64
	OfferID      uint64
}

// Price satisfies the Priced interface the sort oracle sorts on.
func (a *Ask) Price() uint64 { return a.UnitPrice }

// Trade is a confirmed match: one seller's contribution toward one buyer's
// filled demand (spec §3).
type Trade struct {
	Buyer        string
	Seller       string
	EnergyAmount uint64
	Supplied     bool

	// Expired marks a trade reconciled as an unsupplied expiry at the
	// following roll. An expired trade has already been paid to the
	// seller (see DESIGN.md §"Expiry payout direction") and therefore
	// can never subsequently be marked delivered; MarkDelivered treats
	// Expired the same as Supplied.
	Expired bool
}

// TradeBucket is a bucket's match result: a single clearing price applied
// to an ordered sequence of trades (spec §3).
type TradeBucket struct {
	ClearingPrice uint64
	Trades        []*Trade
}
