package events

import "time"

// Side identifies which side of the book an offer sits on.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// OwnerAnnounce is emitted once, on construction.
type OwnerAnnounce struct {
	Owner string
	At    time.Time
}

// TradeReceived is emitted once per accepted order.
type TradeReceived struct {
	Trader   string
	BucketID uint64
	Side     Side
	OfferID  uint64
	Energy   uint64
	Price    uint64
	At       time.Time
}

// TradeExpired is emitted once per unsupplied trade reconciled at the
// following roll.
type TradeExpired struct {
	Buyer    string
	Seller   string
	BucketID uint64
	TradeID  uint64
	Refund   uint64
	At       time.Time
}

// TradeMatched is emitted once per confirmed trade, in commit order.
type TradeMatched struct {
	Buyer         string
	Seller        string
	BucketID      uint64
	TradeID       uint64
	Energy        uint64
	ClearingPrice uint64
	Supplied      bool
	At            time.Time
}

// TradeRejected is emitted once per unmet bid or unused ask.
type TradeRejected struct {
	Trader   string
	BucketID uint64
	Side     Side
	OfferID  uint64
	Refund   uint64
	Reason   string
	At       time.Time
}

// EnergySupplied is emitted once per delivery mark.
type EnergySupplied struct {
	Seller   string
	Buyer    string
	BucketID uint64
	TradeID  uint64
	Energy   uint64
	Payment  uint64
	At       time.Time
}
