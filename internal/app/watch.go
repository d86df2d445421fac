package app

import "sync"

// WatchHub fans sanitized duel state out to in-process subscribers (the
// websocket transport). The engine itself stays transport-agnostic: clients
// that do not watch simply poll.
type WatchHub struct {
	mu   sync.Mutex
	subs map[string]map[chan *DuelView]struct{}
}

func NewWatchHub() *WatchHub {
	return &WatchHub{subs: make(map[string]map[chan *DuelView]struct{})}
}

// Subscribe returns a channel receiving state updates for one duel. The
// caller must invoke the returned cancel function to avoid leaks.
func (h *WatchHub) Subscribe(duelID string) (<-chan *DuelView, func()) {
	ch := make(chan *DuelView, 8)

	h.mu.Lock()
	if h.subs[duelID] == nil {
		h.subs[duelID] = make(map[chan *DuelView]struct{})
	}
	h.subs[duelID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[duelID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, duelID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the update to every watcher of the duel. Slow consumers
// have their stale update dropped rather than blocking the engine.
func (h *WatchHub) Publish(view *DuelView) {
	if view == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[view.ID] {
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}
