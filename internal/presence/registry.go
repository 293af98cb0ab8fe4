package presence

import "sync"

// Registry tracks which live realtime connections belong to which user
// identity. It keeps no history: the process starts with an empty registry and
// clients are expected to re-identify after every reconnect.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string              // connection id -> user id ("" until identified)
	byUser map[string]map[string]struct{} // user id -> connection ids
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection in the unassociated state.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byConn[connID]; ok {
		return
	}
	r.byConn[connID] = ""
}

// Identify associates a connection with a user, creating the user entry if
// absent. Re-identifying moves the connection between user entries. Unknown
// connection ids are ignored: the disconnect may already have won the race.
func (r *Registry) Identify(connID, userID string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byConn[connID]
	if !ok || current == userID {
		return
	}
	if current != "" {
		r.detachLocked(current, connID)
	}
	r.byConn[connID] = userID
	conns := r.byUser[userID]
	if conns == nil {
		conns = make(map[string]struct{})
		r.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
}

// Unregister removes a connection from whichever user entry holds it, pruning
// the entry once empty. Calling it again for the same connection is a no-op:
// disconnect handlers may fire more than once.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	if userID != "" {
		r.detachLocked(userID, connID)
	}
}

func (r *Registry) detachLocked(userID, connID string) {
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

// ConnectionsFor returns the ids of every connection currently identified as
// userID. A user with no live connections yields an empty slice.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// AllConnections returns every live connection id, identified or not.
func (r *Registry) AllConnections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byConn))
	for id := range r.byConn {
		out = append(out, id)
	}
	return out
}

// Counts reports the number of live connections and of users holding at least
// one identified connection.
func (r *Registry) Counts() (conns, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn), len(r.byUser)
}
