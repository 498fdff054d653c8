package cart

import "github.com/shopspring/decimal"

// ComputeTotal sums the line costs and enables purchasing when the sum is positive.
func (m *Manager) ComputeTotal() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recompute()
	return m.total
}

func (m *Manager) recompute() {
	total := decimal.Zero
	for _, l := range m.lines {
		total = total.Add(l.LineCost)
	}
	m.total = total
	m.purchaseEnabled = total.IsPositive() && !m.busy
}
