package auction

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceOnly struct {
	id    int
	price uint64
}

func (p priceOnly) Price() uint64 { return p.price }

func TestSortStable_AscendingOrdersByPrice(t *testing.T) {
	items := []priceOnly{{0, 5}, {1, 1}, {2, 3}}
	out := SortStable(items, Ascending, SecondaryNone)
	require.Len(t, out, 3)
	assert.Equal(t, []uint64{1, 3, 5}, []uint64{out[0].price, out[1].price, out[2].price})
}

func TestSortStable_DescendingOrdersByPrice(t *testing.T) {
	items := []priceOnly{{0, 5}, {1, 1}, {2, 3}}
	out := SortStable(items, Descending, SecondaryNone)
	assert.Equal(t, []uint64{5, 3, 1}, []uint64{out[0].price, out[1].price, out[2].price})
}

func TestSortStable_TiesKeepInsertionOrder(t *testing.T) {
	items := []priceOnly{{0, 5}, {1, 5}, {2, 5}, {3, 1}}
	out := SortStable(items, Descending, SecondaryNone)
	require.Len(t, out, 4)
	assert.Equal(t, []int{0, 1, 2, 3}, []int{out[0].id, out[1].id, out[2].id, out[3].id})
}

func TestSortStable_SecondaryKeyIsIgnored(t *testing.T) {
	items := []priceOnly{{0, 2}, {1, 2}, {2, 1}}
	a := SortStable(items, Ascending, SecondaryNone)
	b := SortStable(items, Ascending, SecondaryEnergyAscending)
	assert.Equal(t, a, b)
}

func TestSortStable_IsAPermutationAndStable(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(20)
		items := make([]priceOnly, n)
		for i := range items {
			items[i] = priceOnly{id: i, price: uint64(rng.Intn(5))}
		}

		out := SortStable(items, Ascending, SecondaryNone)
		require.Len(t, out, n)

		counts := map[int]int{}
		for _, it := range items {
			counts[it.id]++
		}
		for _, it := range out {
			counts[it.id]--
		}
		for id, c := range counts {
			assert.Zerof(t, c, "id %d appeared an unexpected number of times in the output", id)
		}

		for i := 1; i < len(out); i++ {
			assert.LessOrEqual(t, out[i-1].price, out[i].price)
			if out[i-1].price == out[i].price {
				assert.Less(t, out[i-1].id, out[i].id, "equal-priced elements must keep insertion order")
			}
		}
	}
}
