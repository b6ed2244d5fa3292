package game

import "sync"

// HostSessions maps live connection ids to stable host session ids, so a host
// who reconnects with a fresh connection is still recognized as the same
// operator. Connection ids churn; session ids do not.
type HostSessions struct {
	mu     sync.RWMutex
	byConn map[string]string
}

func NewHostSessions() *HostSessions {
	return &HostSessions{byConn: make(map[string]string)}
}

// Bind records that connID currently acts for the given host session.
func (h *HostSessions) Bind(connID, hostSessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byConn[connID] = hostSessionID
}

// Resolve returns the host session bound to connID, if any.
func (h *HostSessions) Resolve(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sid, ok := h.byConn[connID]
	return sid, ok
}

// Release drops the binding for a disconnected host connection.
func (h *HostSessions) Release(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byConn, connID)
}
