// Package grid holds the server side state of a tabular view: keyed rows in display order
// plus the current selection.
package grid

import (
	"sync"
)

type Row = map[string]any

// TabularView is the contract screens use to show rows and track the selected one.
type TabularView interface {
	SetRows(rows []Row)
	Rows() []Row
	Select(key any) bool
	Selected() (Row, bool)
	Apply(p Patch)
	Clear()
}

// Patch adds, updates and removes rows by key in one step.
type Patch struct {
	Add    []Row
	Update []Row
	Remove []any
}

// Grid is a TabularView keyed by one field. It is safe for concurrent use.
type Grid struct {
	mu       sync.RWMutex
	keyField string
	rows     []Row
	selected any
}

func New(keyField string) *Grid {
	return &Grid{keyField: keyField}
}

func (g *Grid) KeyField() string {
	return g.keyField
}

func (g *Grid) SetRows(rows []Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = make([]Row, 0, len(rows))
	for _, r := range rows {
		g.rows = append(g.rows, copyRow(r))
	}
	if g.selected != nil && g.indexOf(g.selected) < 0 {
		g.selected = nil
	}
}

// Rows returns a copy of the rows in display order.
func (g *Grid) Rows() []Row {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Row, len(g.rows))
	for i, r := range g.rows {
		out[i] = copyRow(r)
	}
	return out
}

func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rows)
}

// Select marks the row with the given key. It reports false when no such row exists.
func (g *Grid) Select(key any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.indexOf(key) < 0 {
		return false
	}
	g.selected = key
	return true
}

func (g *Grid) Selected() (Row, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.selected == nil {
		return nil, false
	}
	i := g.indexOf(g.selected)
	if i < 0 {
		return nil, false
	}
	return copyRow(g.rows[i]), true
}

// Apply removes first, then updates in place, then appends. Added rows whose key already
// exists replace the existing row.
func (g *Grid) Apply(p Patch) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, key := range p.Remove {
		if i := g.indexOf(key); i >= 0 {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
		}
		if g.selected == key {
			g.selected = nil
		}
	}
	for _, r := range p.Update {
		if i := g.indexOf(r[g.keyField]); i >= 0 {
			g.rows[i] = copyRow(r)
		}
	}
	for _, r := range p.Add {
		if i := g.indexOf(r[g.keyField]); i >= 0 {
			g.rows[i] = copyRow(r)
			continue
		}
		g.rows = append(g.rows, copyRow(r))
	}
}

func (g *Grid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = nil
	g.selected = nil
}

func (g *Grid) indexOf(key any) int {
	for i, r := range g.rows {
		if r[g.keyField] == key {
			return i
		}
	}
	return -1
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
