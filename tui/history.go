package tui

// History keeps the most recent commands, oldest first, with a cursor for
// Up/Down navigation.
type History struct {
	entries []string
	max     int
	cursor  int // -1 when not navigating
}

// NewHistory creates a history holding at most max commands.
func NewHistory(max int) *History {
	return &History{entries: make([]string, 0, max), max: max, cursor: -1}
}

// Push records cmd. A repeat of the newest entry is not recorded again.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.max {
		h.entries = h.entries[1:]
	}
}

// Prev steps back to an older entry, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps forward to a newer entry. Stepping past the newest returns
// false and ends navigation.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor ends navigation.
func (h *History) ResetCursor() {
	h.cursor = -1
}

// Recent returns up to n of the newest entries, oldest first.
func (h *History) Recent(n int) []string {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	return append([]string(nil), h.entries[len(h.entries)-n:]...)
}
