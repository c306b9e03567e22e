package auction

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/energyauction/internal/auctionerr"
	"github.com/abdoElHodaky/energyauction/internal/events"
	"github.com/abdoElHodaky/energyauction/internal/obslog"
)

// Engine is the Bucket Controller: the single stateful object that owns
// every bucket's order book and trade bucket, and is the sole entry point
// for roll and mark_delivered (spec §4.5, §6). Every exported method takes
// the engine's lock for its entire body, matching the single-threaded,
// serially-consistent model of spec §5.
type Engine struct {
	mu sync.Mutex

	owner          string
	bucketDuration time.Duration
	clock          func() time.Time

	currentBucketID    uint64
	currentBucketStart time.Time

	status       map[uint64]BucketStatus
	bids         map[uint64][]*Bid
	asks         map[uint64][]*Ask
	tradeBuckets map[uint64]*TradeBucket

	ledger  *EscrowLedger
	events  *events.Log
	metrics *Metrics
	logger  obslog.Logger

	// pendingRoll tracks a roll attempt that failed partway through its
	// payout plan, so a retry resumes instead of re-executing transfers
	// that already moved real funds (see ledger.go's ExecutePlan).
	pendingRoll *pendingRoll
}

// pendingRoll records how much of closedID's payout plan has already been
// executed by a previous, failed Roll call.
type pendingRoll struct {
	bucketID  uint64
	completed int
}

// NewEngine constructs the engine. Bucket 0 is created OPEN and
// OwnerAnnounce is emitted, matching the construct operation of spec §6.
func NewEngine(owner string, bucketDuration time.Duration, ledger *EscrowLedger, log *events.Log, metrics *Metrics, logger obslog.Logger, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = obslog.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	e := &Engine{
		owner:               owner,
		bucketDuration:      bucketDuration,
		clock:               clock,
		currentBucketID:     0,
		currentBucketStart:  clock(),
		status:              map[uint64]BucketStatus{0: StatusOpen},
		bids:                map[uint64][]*Bid{},
		asks:                map[uint64][]*Ask{},
		tradeBuckets:        map[uint64]*TradeBucket{},
		ledger:              ledger,
		events:              log,
		metrics:             metrics,
		logger:              logger,
	}

	log.OwnerAnnounce(events.OwnerAnnounce{Owner: owner, At: clock()})
	logger.Info("auction engine constructed", "owner", owner, "bucket_duration", bucketDuration.String())
	return e
}

// Owner returns the operator identity.
func (e *Engine) Owner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// CurrentBucketID returns the id of the bucket currently OPEN.
func (e *Engine) CurrentBucketID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentBucketID
}

// BucketStatus returns the status of bucketID, or an error if it has never
// existed.
func (e *Engine) BucketStatus(bucketID uint64) (BucketStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.status[bucketID]
	if !ok {
		return 0, auctionerr.Newf(auctionerr.NotFound, "bucket %d does not exist", bucketID)
	}
	return s, nil
}

// Bid returns the bid at index within bucketID's bid list.
func (e *Engine) Bid(bucketID, index uint64) (*Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list, ok := e.bids[bucketID]
	if !ok || index >= uint64(len(list)) {
		return nil, auctionerr.Newf(auctionerr.NotFound, "no bid %d in bucket %d", index, bucketID)
	}
	return list[index], nil
}

// Ask returns the ask at index within bucketID's ask list.
func (e *Engine) Ask(bucketID, index uint64) (*Ask, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list, ok := e.asks[bucketID]
	if !ok || index >= uint64(len(list)) {
		return nil, auctionerr.Newf(auctionerr.NotFound, "no ask %d in bucket %d", index, bucketID)
	}
	return list[index], nil
}

// TradeBucketOf returns the match result for bucketID, if it has been
// rolled.
func (e *Engine) TradeBucketOf(bucketID uint64) (*TradeBucket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tb, ok := e.tradeBuckets[bucketID]
	if !ok {
		return nil, auctionerr.Newf(auctionerr.NotFound, "bucket %d has not been rolled", bucketID)
	}
	return tb, nil
}

// LastTradeBucket returns the most recently rolled bucket's id and result,
// if any bucket has been rolled yet.
func (e *Engine) LastTradeBucket() (uint64, *TradeBucket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentBucketID == 0 {
		return 0, nil, false
	}
	id := e.currentBucketID - 1
	tb, ok := e.tradeBuckets[id]
	return id, tb, ok
}

// EscrowHeld returns the total value currently held by the escrow ledger.
func (e *Engine) EscrowHeld() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.TotalHeld()
}

// BucketSnapshot is one bucket's entry in a Snapshot: its status plus, once
// matched, its clearing price and trade count.
type BucketSnapshot struct {
	BucketID      uint64
	Status        BucketStatus
	ClearingPrice uint64
	TradeCount    int
}

// Snapshot is the full audit view of the engine: the operator identity, the
// currently open bucket, total value held in escrow, and every bucket's
// status/clearing price/trade count seen so far.
type Snapshot struct {
	Owner           string
	CurrentBucketID uint64
	EscrowHeld      uint64
	Buckets         []BucketSnapshot
}

// Snapshot returns a read-only view of the engine's full state, for the
// external audit reader named as an out-of-scope collaborator in spec §1 —
// the engine exposes the data, it does not implement the reader.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	buckets := make([]BucketSnapshot, 0, len(e.status))
	for id := uint64(0); id <= e.currentBucketID; id++ {
		status, ok := e.status[id]
		if !ok {
			continue
		}
		bs := BucketSnapshot{BucketID: id, Status: status}
		if tb, ok := e.tradeBuckets[id]; ok {
			bs.ClearingPrice = tb.ClearingPrice
			bs.TradeCount = len(tb.Trades)
		}
		buckets = append(buckets, bs)
	}

	return Snapshot{
		Owner:           e.owner,
		CurrentBucketID: e.currentBucketID,
		EscrowHeld:      e.ledger.TotalHeld(),
		Buckets:         buckets,
	}
}

// SubmitBid appends a bid to the currently open bucket (spec §4.1).
func (e *Engine) SubmitBid(trader string, energy, price, value uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingRoll != nil && e.pendingRoll.bucketID == e.currentBucketID {
		return 0, auctionerr.New(auctionerr.RollInProgress, "bucket's roll partially failed; retry roll before submitting new orders")
	}
	if energy == 0 {
		return 0, auctionerr.New(auctionerr.InvalidOrder, "energy amount must be positive")
	}
	if price == 0 {
		return 0, auctionerr.New(auctionerr.InvalidOrder, "unit price must be positive")
	}
	if value != energy*price {
		return 0, auctionerr.New(auctionerr.InvalidOrder, "escrowed value does not match energy times unit price")
	}

	list := e.bids[e.currentBucketID]
	offerID := uint64(len(list))
	bid := &Bid{Trader: trader, EnergyAmount: energy, UnitPrice: price, EscrowedValue: value, OfferID: offerID}
	e.bids[e.currentBucketID] = append(list, bid)
	e.ledger.Hold(value)
	e.metrics.observeBid()

	e.events.TradeReceived(events.TradeReceived{
		Trader: trader, BucketID: e.currentBucketID, Side: events.SideBid,
		OfferID: offerID, Energy: energy, Price: price, At: e.clock(),
	})
	e.logger.Info("bid received", "trader", trader, "bucket_id", e.currentBucketID, "offer_id", offerID, "energy", energy, "price", price)
	return offerID, nil
}

// SubmitAsk appends an ask to the currently open bucket (spec §4.1).
func (e *Engine) SubmitAsk(trader string, energy, price uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingRoll != nil && e.pendingRoll.bucketID == e.currentBucketID {
		return 0, auctionerr.New(auctionerr.RollInProgress, "bucket's roll partially failed; retry roll before submitting new orders")
	}
	if energy == 0 {
		return 0, auctionerr.New(auctionerr.InvalidOrder, "energy amount must be positive")
	}
	if price == 0 {
		return 0, auctionerr.New(auctionerr.InvalidOrder, "unit price must be positive")
	}

	list := e.asks[e.currentBucketID]
	offerID := uint64(len(list))
	ask := &Ask{Trader: trader, EnergyAmount: energy, UnitPrice: price, OfferID: offerID}
	e.asks[e.currentBucketID] = append(list, ask)
	e.metrics.observeAsk()

	e.events.TradeReceived(events.TradeReceived{
		Trader: trader, BucketID: e.currentBucketID, Side: events.SideAsk,
		OfferID: offerID, Energy: energy, Price: price, At: e.clock(),
	})
	e.logger.Info("ask received", "trader", trader, "bucket_id", e.currentBucketID, "offer_id", offerID, "energy", energy, "price", price)
	return offerID, nil
}

// Roll reconciles the previous bucket, matches the current bucket,
// disburses refunds, closes the current bucket and opens the next (spec
// §4.5). Order book and bucket state change only once every payout has
// succeeded. If a payout fails, the transfers completed before it are not
// reversed; they are recorded in pendingRoll and a retried Roll resumes
// after them.
func (e *Engine) Roll(caller string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return auctionerr.New(auctionerr.Unauthorized, "only the owner may roll the auction")
	}
	now := e.clock()
	if now.Before(e.currentBucketStart.Add(e.bucketDuration)) {
		return auctionerr.New(auctionerr.TooEarly, "bucket has not yet lived its full duration")
	}

	closedID := e.currentBucketID
	var ops []PayoutOp

	// --- Phase 1: reconcile the previous bucket (pure computation). ---
	var expiredEvents []events.TradeExpired
	var prevID uint64
	havePrev := closedID > 0
	if havePrev {
		prevID = closedID - 1
		tb := e.tradeBuckets[prevID]
		for tradeID, t := range tb.Trades {
			if t.Supplied || t.Expired {
				continue
			}
			refund := t.EnergyAmount * tb.ClearingPrice
			ops = append(ops, PayoutOp{Kind: "expiry", To: t.Seller, Amount: refund})
			expiredEvents = append(expiredEvents, events.TradeExpired{
				Buyer: t.Buyer, Seller: t.Seller, BucketID: prevID, TradeID: uint64(tradeID), Refund: refund, At: now,
			})
		}
	}

	// --- Phase 2: match the bucket being closed (pure computation). ---
	result := Match(e.bids[closedID], e.asks[closedID])

	var rejectedBidEvents, rejectedAskEvents []events.TradeRejected
	var overpayAmounts []uint64
	for _, bo := range result.BidOutcomes {
		if !bo.Filled {
			refund := bo.Bid.EnergyAmount * bo.Bid.UnitPrice
			ops = append(ops, PayoutOp{Kind: "bid_reject", To: bo.Bid.Trader, Amount: refund})
			rejectedBidEvents = append(rejectedBidEvents, events.TradeRejected{
				Trader: bo.Bid.Trader, BucketID: closedID, Side: events.SideBid, OfferID: bo.Bid.OfferID,
				Refund: refund, Reason: "unmeetable demand at bid price", At: now,
			})
			continue
		}
		overpay := bo.Bid.EnergyAmount * (bo.Bid.UnitPrice - result.ClearingPrice)
		if overpay > 0 {
			ops = append(ops, PayoutOp{Kind: "bid_overpay", To: bo.Bid.Trader, Amount: overpay})
			overpayAmounts = append(overpayAmounts, overpay)
		}
	}
	for _, ao := range result.AskOutcomes {
		if ao.RemainingEnergy > 0 {
			rejectedAskEvents = append(rejectedAskEvents, events.TradeRejected{
				Trader: ao.Ask.Trader, BucketID: closedID, Side: events.SideAsk, OfferID: ao.Ask.OfferID,
				Refund: 0, Reason: "undemanded supply at ask price", At: now,
			})
		}
	}

	// --- Phase 3: execute every payout as a single unit. Nothing below
	// this point mutates engine state until the whole plan succeeds.
	//
	// If a previous attempt to roll this same bucket already executed a
	// prefix of ops before failing, resume after it instead of
	// re-submitting ops whose funds have already left the ledger — Phase
	// 1/2 above recompute byte-identical ops on a retry since nothing
	// about closedID or prevID can change while a roll is pending (see
	// the RollInProgress guard in SubmitBid/SubmitAsk).
	startAt := 0
	if e.pendingRoll != nil && e.pendingRoll.bucketID == closedID {
		startAt = e.pendingRoll.completed
	}
	completed, err := e.ledger.ExecutePlan(ops[startAt:])
	if err != nil {
		e.pendingRoll = &pendingRoll{bucketID: closedID, completed: startAt + completed}
		return err
	}
	e.pendingRoll = nil

	// --- Phase 4: apply the state transition. ---
	if havePrev {
		prevTB := e.tradeBuckets[prevID]
		for _, ev := range expiredEvents {
			prevTB.Trades[ev.TradeID].Expired = true
		}
		e.status[prevID] = StatusCleared
	}

	e.tradeBuckets[closedID] = &TradeBucket{ClearingPrice: result.ClearingPrice, Trades: result.Trades}
	e.status[closedID] = StatusClosed

	// Offer lists are no longer needed once a bucket has been matched;
	// purge them to bound storage (spec §9 design note).
	delete(e.bids, closedID)
	delete(e.asks, closedID)

	nextID := closedID + 1
	e.currentBucketID = nextID
	e.status[nextID] = StatusOpen
	e.currentBucketStart = now

	// --- Phase 5: emit events in the order spec §4.7 defines. ---
	for _, ev := range expiredEvents {
		e.events.TradeExpired(ev)
		e.metrics.observeRefund("expiry", ev.Refund)
	}
	for _, ev := range rejectedBidEvents {
		e.events.TradeRejected(ev)
		e.metrics.observeRefund("bid_reject", ev.Refund)
	}
	for _, ev := range rejectedAskEvents {
		e.events.TradeRejected(ev)
	}
	for i, t := range result.Trades {
		e.events.TradeMatched(events.TradeMatched{
			Buyer: t.Buyer, Seller: t.Seller, BucketID: closedID, TradeID: uint64(i),
			Energy: t.EnergyAmount, ClearingPrice: result.ClearingPrice, Supplied: false, At: now,
		})
	}
	for _, overpay := range overpayAmounts {
		e.metrics.observeRefund("bid_overpay", overpay)
	}

	e.metrics.observeRoll(result.ClearingPrice, len(result.Trades), e.ledger.TotalHeld(), nextID)
	e.logger.Info("bucket rolled", "closed_bucket_id", closedID, "next_bucket_id", nextID,
		"clearing_price", result.ClearingPrice, "trades", len(result.Trades))
	return nil
}

// MarkDelivered records that the seller of trades[bucketID][tradeID] has
// delivered, releasing the trade's proceeds (spec §4.6).
func (e *Engine) MarkDelivered(caller string, bucketID, tradeID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tb, ok := e.tradeBuckets[bucketID]
	if !ok || tradeID >= uint64(len(tb.Trades)) {
		return auctionerr.Newf(auctionerr.InvalidTrade, "no trade %d in bucket %d", tradeID, bucketID)
	}
	t := tb.Trades[tradeID]
	if t.Seller != caller {
		return auctionerr.New(auctionerr.Unauthorized, "only the trade's seller may mark it delivered")
	}
	if t.Supplied || t.Expired {
		return auctionerr.New(auctionerr.AlreadySupplied, "trade has already been settled")
	}

	payment := t.EnergyAmount * tb.ClearingPrice
	if _, err := e.ledger.ExecutePlan([]PayoutOp{{Kind: "delivery", To: caller, Amount: payment}}); err != nil {
		return err
	}

	t.Supplied = true
	now := e.clock()
	e.events.EnergySupplied(events.EnergySupplied{
		Seller: caller, Buyer: t.Buyer, BucketID: bucketID, TradeID: tradeID,
		Energy: t.EnergyAmount, Payment: payment, At: now,
	})
	e.logger.Info("energy supplied", "seller", caller, "bucket_id", bucketID, "trade_id", tradeID, "payment", payment)
	return nil
}
