// registry/registry.go
package registry

import (
	"sync"
)

// Registry is the presence source of truth: user -> live endpoints and
// user -> active game sessions. The two indices are independent by
// contract; dropping a user's last endpoint never touches their game
// memberships, because reconnecting clients resume their sessions.
type Registry struct {
	endpoints     map[string]*Endpoint          // endpointID -> endpoint
	userEndpoints map[int64]map[string]struct{} // userID -> endpointIDs
	userGames     map[int64]map[string]struct{} // userID -> sessionIDs
	mutex         sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		endpoints:     make(map[string]*Endpoint),
		userEndpoints: make(map[int64]map[string]struct{}),
		userGames:     make(map[int64]map[string]struct{}),
	}
}

// AddConnection registers a live endpoint. The endpoint's UserID may
// still be zero at this point; Bind attaches it once the client says
// hello.
func (r *Registry) AddConnection(e *Endpoint) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.endpoints[e.ID] = e
	if e.UserID != 0 {
		r.indexUserLocked(e)
	}
}

// Bind attaches a user identity to an already registered endpoint.
func (r *Registry) Bind(endpointID string, userID int64, name string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, exists := r.endpoints[endpointID]
	if !exists {
		return false
	}

	e.UserID = userID
	e.Name = name
	r.indexUserLocked(e)
	return true
}

func (r *Registry) indexUserLocked(e *Endpoint) {
	set, exists := r.userEndpoints[e.UserID]
	if !exists {
		set = make(map[string]struct{})
		r.userEndpoints[e.UserID] = set
	}
	set[e.ID] = struct{}{}
}

// RemoveConnection drops an endpoint. Game memberships are left alone.
// Returns the removed endpoint and whether the user has gone fully
// offline as a result.
func (r *Registry) RemoveConnection(endpointID string) (*Endpoint, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.removeConnectionLocked(endpointID)
}

func (r *Registry) removeConnectionLocked(endpointID string) (*Endpoint, bool) {
	e, exists := r.endpoints[endpointID]
	if !exists {
		return nil, false
	}

	delete(r.endpoints, endpointID)

	offline := false
	if set, ok := r.userEndpoints[e.UserID]; ok {
		delete(set, endpointID)
		if len(set) == 0 {
			delete(r.userEndpoints, e.UserID)
			offline = true
		}
	}
	return e, offline
}

func (r *Registry) Get(endpointID string) (*Endpoint, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	e, exists := r.endpoints[endpointID]
	return e, exists
}

// GetUserSockets returns every live endpoint the user holds. The slice
// may be empty; callers use that to treat the user as fully offline.
func (r *Registry) GetUserSockets(userID int64) []*Endpoint {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*Endpoint
	for id := range r.userEndpoints[userID] {
		if e, ok := r.endpoints[id]; ok {
			result = append(result, e)
		}
	}
	return result
}

func (r *Registry) IsUserOnline(userID int64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.userEndpoints[userID]) > 0
}

// AddUserToGame records session membership for a user.
func (r *Registry) AddUserToGame(userID int64, sessionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	set, exists := r.userGames[userID]
	if !exists {
		set = make(map[string]struct{})
		r.userGames[userID] = set
	}
	set[sessionID] = struct{}{}
}

// RemoveUserFromGame drops one membership; called on session finish.
func (r *Registry) RemoveUserFromGame(userID int64, sessionID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if set, ok := r.userGames[userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.userGames, userID)
		}
	}
}

// GetUserGames returns the sessions the user belongs to. Used on
// disconnect to know which sessions need a status broadcast.
func (r *Registry) GetUserGames(userID int64) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []string
	for id := range r.userGames[userID] {
		result = append(result, id)
	}
	return result
}

// Cleanup sweeps out endpoints whose transport is confirmed dead but
// which were never removed through the normal disconnect path. Driven
// by the server's periodic sweep, not a timer of its own.
func (r *Registry) Cleanup() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var stale []string
	for id, e := range r.endpoints {
		if e.IsClosed() {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.removeConnectionLocked(id)
	}
	return len(stale)
}

// OnlineCount reports how many distinct users hold at least one
// endpoint. Exposed for the monitor gauge.
func (r *Registry) OnlineCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.userEndpoints)
}
