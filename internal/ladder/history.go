package ladder

import "github.com/thebtf/slidetrace/pkg/models"

// HistoryEntry is one stack frame pushed before a navigation action. The
// start entry (whole-slide fit) is a sentinel: restoring it must produce a
// bounds-fit of the full slide, never a center+zoom replica.
type HistoryEntry struct {
	Rung   Rung
	Center models.Point
	Start  bool
}

// History is the undo stack. A fresh history holds only the start sentinel.
type History struct {
	entries []HistoryEntry
}

// NewHistory creates a history seeded with the start sentinel.
func NewHistory() *History {
	h := &History{}
	h.Clear()
	return h
}

// Push records the pre-action state.
func (h *History) Push(rung Rung, center models.Point) {
	h.entries = append(h.entries, HistoryEntry{Rung: rung, Center: center, Start: rung.IsFit()})
}

// Pop removes and returns the most recent entry. ok is false when the stack
// is exhausted.
func (h *History) Pop() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	e := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return e, true
}

// Len returns the stack depth.
func (h *History) Len() int { return len(h.entries) }

// Clear resets the stack to just the start sentinel.
func (h *History) Clear() {
	h.entries = h.entries[:0]
	h.entries = append(h.entries, HistoryEntry{Rung: RungFit, Start: true})
}
