package stack

import (
	"sync"

	"firestige.xyz/ipstack/internal/netbuf"
)

// Handler processes one packet whose outer header has been stripped. origin
// identifies the sender at the layer below: a source MAC for ethertype
// handlers, a source IP for next-header handlers.
type Handler interface {
	HandlePacket(buf *netbuf.Buffer, origin []byte)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(buf *netbuf.Buffer, origin []byte)

func (f HandlerFunc) HandlePacket(buf *netbuf.Buffer, origin []byte) { f(buf, origin) }

// Registry maps a protocol identifier to exactly one handler. Ethertypes and
// IP next-header numbers share the table; their value ranges do not overlap.
// The last registration for an id wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[uint16]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint16]Handler)}
}

// Register stores or overwrites the handler for id.
func (r *Registry) Register(id uint16, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

// Dispatch invokes the handler registered for id. It reports whether a
// handler was present; the caller decides what an undeliverable protocol
// means (the IP layers answer with an unreachable message).
func (r *Registry) Dispatch(id uint16, buf *netbuf.Buffer, origin []byte) bool {
	r.mu.RLock()
	h, ok := r.handlers[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	h.HandlePacket(buf, origin)
	return true
}
