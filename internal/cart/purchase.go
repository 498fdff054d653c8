package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ConfirmPurchase raises the confirmation prompt for the current total and returns its text.
// Nothing is written until FinalizePurchase.
func (m *Manager) ConfirmPurchase() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return "", ErrPurchaseInProgress
	}
	m.recompute()
	if !m.purchaseEnabled {
		return "", ErrEmptyCart
	}

	msg := ConfirmationMessage(FormatAmount(m.total))
	m.surface.ShowConfirmation(msg)
	return msg, nil
}

func (m *Manager) CancelPurchase() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surface.CloseConfirmation()
}

func ConfirmationMessage(total string) string {
	return fmt.Sprintf("Please confirm the purchase of items totaling $%s", total)
}

// FormatAmount renders d with two decimals and comma thousands separators, e.g. 1,234.50.
func FormatAmount(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
