package run

import (
	"encoding/json"
	"sync"
)

const clientBuffer = 32

// stateHub fans state events out to websocket subscribers. Slow clients
// are dropped rather than blocking the managers.
type stateHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newStateHub() *stateHub {
	return &stateHub{clients: make(map[chan []byte]struct{})}
}

func (h *stateHub) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *stateHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *stateHub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			delete(h.clients, ch)
			close(ch)
		}
	}
}

func (h *stateHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *stateHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}
