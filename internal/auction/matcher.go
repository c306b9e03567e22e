package auction

// BidOutcome records what happened to one sorted bid during matching.
type BidOutcome struct {
	Bid    *Bid
	Filled bool
	// Trades contains the tentative trades this bid committed, in the
	// order they were matched against asks. Empty when Filled is false.
	Trades []*Trade
}

// AskOutcome records the final remaining energy of one sorted ask after
// matching.
type AskOutcome struct {
	Ask             *Ask
	RemainingEnergy uint64
}

// MatchResult is the output of Match: the confirmed trades in commit
// order, the single clearing price, and per-offer outcomes used to drive
// refund accounting and event emission.
type MatchResult struct {
	Trades        []*Trade
	ClearingPrice uint64
	BidOutcomes   []BidOutcome
	AskOutcomes   []AskOutcome
}

// Match runs the merit-order matching algorithm of spec §4.3 over a closed
// bucket's bids and asks. It does not mutate bids or asks; all scratch
// state is local.
func Match(bids []*Bid, asks []*Ask) MatchResult {
	sortedBids := SortStable[*Bid](bids, Descending, SecondaryNone)
	sortedAsks := SortStable[*Ask](asks, Ascending, SecondaryNone)

	remaining := make([]uint64, len(sortedAsks))
	for i, a := range sortedAsks {
		remaining[i] = a.EnergyAmount
	}

	result := MatchResult{
		BidOutcomes: make([]BidOutcome, 0, len(sortedBids)),
		AskOutcomes: make([]AskOutcome, 0, len(sortedAsks)),
	}

	askCursor := 0
	processed := 0

outer:
	for _, bid := range sortedBids {
		// Step 1: terminate the whole outer loop once supply at the
		// bid's price runs out; every bid from here on (including this
		// one) is left unprocessed and therefore fully rejected below.
		if askCursor >= len(sortedAsks) || bid.UnitPrice < sortedAsks[askCursor].UnitPrice {
			break outer
		}
		processed++

		remainingBid := bid.EnergyAmount
		type touchedAsk struct {
			idx    int
			before uint64
		}
		var touched []touchedAsk
		var tentative []*Trade
		emptied := 0
		filled := false

		cursor := askCursor
		for cursor < len(sortedAsks) {
			ask := sortedAsks[cursor]
			if bid.UnitPrice < ask.UnitPrice {
				break
			}

			touched = append(touched, touchedAsk{idx: cursor, before: remaining[cursor]})
			provision := min64(remainingBid, remaining[cursor])
			remainingBid -= provision
			remaining[cursor] -= provision

			tentative = append(tentative, &Trade{
				Buyer:        bid.Trader,
				Seller:       ask.Trader,
				EnergyAmount: provision,
				Supplied:     false,
			})

			if remaining[cursor] == 0 {
				emptied++
			}
			if remainingBid == 0 {
				result.ClearingPrice = ask.UnitPrice
				filled = true
				break
			}
			cursor++
		}

		if !filled {
			for _, t := range touched {
				remaining[t.idx] = t.before
			}
			result.BidOutcomes = append(result.BidOutcomes, BidOutcome{Bid: bid, Filled: false})
			continue
		}

		result.Trades = append(result.Trades, tentative...)
		askCursor += emptied
		result.BidOutcomes = append(result.BidOutcomes, BidOutcome{Bid: bid, Filled: true, Trades: tentative})
	}

	// Every bid the outer loop never reached is rejected in full.
	for _, bid := range sortedBids[processed:] {
		result.BidOutcomes = append(result.BidOutcomes, BidOutcome{Bid: bid, Filled: false})
	}

	for i, ask := range sortedAsks {
		result.AskOutcomes = append(result.AskOutcomes, AskOutcome{Ask: ask, RemainingEnergy: remaining[i]})
	}

	return result
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
