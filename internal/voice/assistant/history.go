package assistant

import "sync"

// HistorySize is how many processed commands are kept.
const HistorySize = 50

type history struct {
	mu    sync.Mutex
	items []CommandResult
}

func (h *history) add(r CommandResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, r)
	if over := len(h.items) - HistorySize; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

// recent returns up to limit entries, newest first. limit <= 0 returns all.
func (h *history) recent(limit int) []CommandResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]CommandResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, h.items[i])
	}
	return out
}

func (h *history) last() (CommandResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.items) == 0 {
		return CommandResult{}, false
	}
	return h.items[len(h.items)-1], true
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
}
