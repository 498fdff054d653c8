package cart

// RemoveItem takes one unit of the product out of the cart and deletes the line when its
// quantity reaches zero.
func (m *Manager) RemoveItem(productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrPurchaseInProgress
	}

	i := m.find(productID)
	if i < 0 {
		return ErrLineNotFound
	}

	kind := "decrement"
	if l := m.lines[i]; l.Quantity > 1 {
		l.Quantity--
		l.Recalculate()
	} else {
		kind = "remove"
		m.lines = append(m.lines[:i], m.lines[i+1:]...)
	}

	m.recompute()
	m.surface.Render(m.view())
	m.recorder.CartMutated(kind)
	return nil
}
