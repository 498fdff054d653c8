//go:build property
// +build property

package cart

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

var prices = map[int64]string{1: "5.00", 2: "10.00", 3: "0.99", 4: "249.95", 5: "0"}

// op encodes one mutation: product ids 1..5 add a unit, ids -1..-5 remove one.
func applyOps(m *Manager, ops []int64) {
	for _, op := range ops {
		if op > 0 {
			_ = m.AddItem(product(op, "p", prices[op]))
		} else {
			_ = m.RemoveItem(-op)
		}
	}
}

func genOps() gopter.Gen {
	return gen.SliceOf(gen.OneConstOf(
		int64(1), int64(2), int64(3), int64(4), int64(5),
		int64(-1), int64(-2), int64(-3), int64(-4), int64(-5),
	))
}

// Property: total == sum(line cost) and purchase is enabled exactly when the total is positive.
func TestTotalMatchesLines(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("total is the sum of line costs", prop.ForAll(
		func(ops []int64) bool {
			m := NewManager(Deps{})
			applyOps(m, ops)

			v := m.State()
			sum := decimal.Zero
			for _, l := range v.Lines {
				if !l.LineCost.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))) {
					return false
				}
				sum = sum.Add(l.LineCost)
			}
			return v.Total.Equal(sum) && v.PurchaseEnabled == sum.IsPositive()
		},
		genOps(),
	))

	properties.TestingRun(t)
}

// Property: a product appears at most once and every quantity is at least one.
func TestLinesUniqueAndPositive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("one line per product", prop.ForAll(
		func(ops []int64) bool {
			m := NewManager(Deps{})
			applyOps(m, ops)

			seen := make(map[int64]bool)
			for _, l := range m.State().Lines {
				if seen[l.ProductID] || l.Quantity < 1 {
					return false
				}
				seen[l.ProductID] = true
			}
			return true
		},
		genOps(),
	))

	properties.Property("quantity equals adds minus successful removes", prop.ForAll(
		func(ops []int64) bool {
			m := NewManager(Deps{})
			want := make(map[int64]int)
			for _, op := range ops {
				if op > 0 {
					want[op]++
				} else if want[-op] > 0 {
					want[-op]--
				}
			}
			applyOps(m, ops)

			got := make(map[int64]int)
			for _, l := range m.State().Lines {
				got[l.ProductID] = l.Quantity
			}
			for id, q := range want {
				if got[id] != q {
					return false
				}
			}
			return len(got) <= len(want)
		},
		genOps(),
	))

	properties.TestingRun(t)
}
