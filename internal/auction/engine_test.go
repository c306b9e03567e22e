package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/energyauction/internal/auctionerr"
	"github.com/abdoElHodaky/energyauction/internal/events"
	"github.com/abdoElHodaky/energyauction/internal/obslog"
)

// testClock lets a test advance time past a bucket's duration without
// sleeping.
type testClock struct{ now time.Time }

func (c *testClock) now_() time.Time { return c.now }
func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	transferred := map[string]uint64{}
	ledger := NewEscrowLedger(func(to string, amount uint64) error {
		transferred[to] += amount
		return nil
	}, obslog.NewNop())
	log := events.NewLog(nil, obslog.NewNop())
	engine := NewEngine("operator1", time.Hour, ledger, log, NewMetrics(nil), obslog.NewNop(), clock.now_)
	return engine, clock
}

func TestEngine_ExactMatchClearsAtSinglePrice(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 5, 50)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 10, 5)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), tb.ClearingPrice)
	require.Len(t, tb.Trades, 1)
	assert.Equal(t, "buyer1", tb.Trades[0].Buyer)
	assert.Equal(t, "seller1", tb.Trades[0].Seller)
	assert.Equal(t, uint64(10), tb.Trades[0].EnergyAmount)
	assert.False(t, tb.Trades[0].Supplied)

	status, err := e.BucketStatus(0)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, status)
	assert.Equal(t, uint64(1), e.CurrentBucketID())
}

func TestEngine_OverpaidBidRefundsDifferenceAndPartialAskRemains(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 5, 10, 50)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 8, 4)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tb.ClearingPrice)
	require.Len(t, tb.Trades, 1)
	assert.Equal(t, uint64(5), tb.Trades[0].EnergyAmount)

	// buyer1 escrowed 50 for 5 units at clearing price 4: 20 owed, 30
	// refunded as overpay. seller1's unused 3 units carry no payout.
	assert.Equal(t, uint64(20), e.EscrowHeld(), "only the 20 owed to seller1 on delivery remains held")
}

func TestEngine_UnmetBidIsRejectedAndFullyRefunded(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 9, 90)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 3, 9)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	assert.Empty(t, tb.Trades)
	assert.Equal(t, uint64(0), e.EscrowHeld(), "the full 90 is refunded since the bid was never filled")
}

func TestEngine_SecondBidFillsWhenFirstCannotBeMet(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("B1", 10, 2, 20)
	require.NoError(t, err)
	_, err = e.SubmitBid("B2", 5, 1, 5)
	require.NoError(t, err)
	_, err = e.SubmitAsk("S1", 5, 1)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	require.Len(t, tb.Trades, 1)
	assert.Equal(t, "B2", tb.Trades[0].Buyer)
	assert.Equal(t, uint64(1), tb.ClearingPrice)
}

func TestEngine_DeliveryLifecycleAndDoubleMarkDeliveredRejected(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 5, 50)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 10, 5)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	err = e.MarkDelivered("seller1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), e.EscrowHeld())

	err = e.MarkDelivered("seller1", 0, 0)
	require.Error(t, err)
	assert.Equal(t, auctionerr.AlreadySupplied, auctionerr.CodeOf(err))

	err = e.MarkDelivered("someoneElse", 0, 0)
	require.Error(t, err)
}

func TestEngine_ExpiredTradeIsRefundedOnNextRollAndCannotLaterBeDelivered(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 5, 50)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 10, 5)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1")) // bucket 0 closes, matched, bucket 1 opens

	// seller1 never calls MarkDelivered before the next roll.
	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1")) // bucket 0 reconciled as expired, bucket 1 closes

	status, err := e.BucketStatus(0)
	require.NoError(t, err)
	assert.Equal(t, StatusCleared, status)

	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	require.Len(t, tb.Trades, 1)
	assert.True(t, tb.Trades[0].Expired)
	assert.False(t, tb.Trades[0].Supplied)

	assert.Equal(t, uint64(0), e.EscrowHeld(), "the 50 held is refunded to seller1 on expiry")

	err = e.MarkDelivered("seller1", 0, 0)
	require.Error(t, err)
	assert.Equal(t, auctionerr.AlreadySupplied, auctionerr.CodeOf(err))
}

func TestEngine_RollRetryAfterLedgerFailureDoesNotDoubleSpendOrBlockForever(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	transferred := map[string]uint64{}
	failNext := true
	ledger := NewEscrowLedger(func(to string, amount uint64) error {
		if to == "buyer2" && failNext {
			failNext = false
			return errors.New("transfer rejected by substrate")
		}
		transferred[to] += amount
		return nil
	}, obslog.NewNop())
	log := events.NewLog(nil, obslog.NewNop())
	e := NewEngine("operator1", time.Hour, ledger, log, NewMetrics(nil), obslog.NewNop(), clock.now_)

	// buyer1 fills exactly; buyer2 is rejected and refunded — the refund
	// to buyer2 is the op that fails on the first attempt.
	_, err := e.SubmitBid("buyer1", 5, 5, 25)
	require.NoError(t, err)
	_, err = e.SubmitBid("buyer2", 5, 5, 25)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 5, 5)
	require.NoError(t, err)

	clock.advance(time.Hour)

	err = e.Roll("operator1")
	require.Error(t, err)
	assert.Equal(t, auctionerr.LedgerFailure, auctionerr.CodeOf(err))

	// Bucket 0 is still open from the caller's perspective: new orders
	// against it must be rejected until the roll is retried to completion,
	// or a later successful retry would match against a changed book.
	_, err = e.SubmitBid("buyer3", 1, 5, 5)
	require.Error(t, err)
	assert.Equal(t, auctionerr.RollInProgress, auctionerr.CodeOf(err))

	// Retrying succeeds without re-transferring buyer2's refund.
	require.NoError(t, e.Roll("operator1"))

	assert.Equal(t, uint64(25), transferred["buyer2"], "buyer2's refund must be applied exactly once")
	tb, err := e.TradeBucketOf(0)
	require.NoError(t, err)
	require.Len(t, tb.Trades, 1)
	assert.Equal(t, "buyer1", tb.Trades[0].Buyer)

	// A further order now lands in the new current bucket, not the rolled one.
	_, err = e.SubmitBid("buyer4", 1, 5, 5)
	require.NoError(t, err)
}

func TestEngine_SnapshotReportsPerBucketStatusAndClearingPrice(t *testing.T) {
	e, clock := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 5, 50)
	require.NoError(t, err)
	_, err = e.SubmitAsk("seller1", 10, 5)
	require.NoError(t, err)

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))

	snap := e.Snapshot()
	assert.Equal(t, "operator1", snap.Owner)
	assert.Equal(t, uint64(1), snap.CurrentBucketID)
	assert.Equal(t, uint64(50), snap.EscrowHeld, "buyer1's payment to seller1 is still owed")

	require.Len(t, snap.Buckets, 2)
	assert.Equal(t, BucketSnapshot{BucketID: 0, Status: StatusClosed, ClearingPrice: 5, TradeCount: 1}, snap.Buckets[0])
	assert.Equal(t, BucketSnapshot{BucketID: 1, Status: StatusOpen}, snap.Buckets[1])
}

func TestEngine_RollRejectsNonOwnerAndTooEarly(t *testing.T) {
	e, clock := newTestEngine(t)

	err := e.Roll("imposter")
	require.Error(t, err)
	assert.Equal(t, auctionerr.Unauthorized, auctionerr.CodeOf(err))

	err = e.Roll("operator1")
	require.Error(t, err)
	assert.Equal(t, auctionerr.TooEarly, auctionerr.CodeOf(err))

	clock.advance(time.Hour)
	require.NoError(t, e.Roll("operator1"))
}

func TestEngine_SubmitBidValidatesEscrowedValue(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.SubmitBid("buyer1", 10, 5, 49)
	require.Error(t, err)
	assert.Equal(t, auctionerr.InvalidOrder, auctionerr.CodeOf(err))

	_, err = e.SubmitBid("buyer1", 0, 5, 0)
	require.Error(t, err)

	_, err = e.SubmitAsk("seller1", 10, 0)
	require.Error(t, err)
}
