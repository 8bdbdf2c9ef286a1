package ws

import (
	"sync"
)

// target is one subscription of a live session.
type target struct {
	handler *Handler
	subID   string
}

// HandlerStore holds the live sessions of this server, by session id.
type HandlerStore struct {
	sync.RWMutex
	handlers map[string]*Handler
}

func (hs *HandlerStore) add(handler *Handler) {
	hs.Lock()
	hs.handlers[handler.session.Sid] = handler
	hs.Unlock()
}

// del returns false if `sid` was already removed.
func (hs *HandlerStore) del(sid string) bool {
	hs.Lock()
	defer hs.Unlock()
	if _, ok := hs.handlers[sid]; !ok {
		return false
	}
	delete(hs.handlers, sid)
	return true
}

func (hs *HandlerStore) size() int {
	hs.RLock()
	defer hs.RUnlock()
	return len(hs.handlers)
}

// targets lists the subscriptions of `collection` across sessions.
func (hs *HandlerStore) targets(collection string) []target {
	hs.RLock()
	handlers := make([]*Handler, 0, len(hs.handlers))
	for _, h := range hs.handlers {
		handlers = append(handlers, h)
	}
	hs.RUnlock()

	var out []target
	for _, h := range handlers {
		for _, subID := range h.subsOf(collection) {
			out = append(out, target{handler: h, subID: subID})
		}
	}
	return out
}

// closeAll removes and closes every session, returns the number of them.
func (hs *HandlerStore) closeAll() int {
	hs.Lock()
	handlers := hs.handlers
	hs.handlers = make(map[string]*Handler)
	hs.Unlock()

	for _, h := range handlers {
		h.close(ServerStop)
	}
	return len(handlers)
}
