package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter bounds concurrent external connections. Localhost
// clients are always admitted. When an external connection pushes the
// count past the limit, the oldest external client is evicted to make
// room for the new one.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	external    []string          // external client ids, oldest first
	ips         map[string]string // client id -> remote IP
}

// NewConnectionLimiter creates a limiter that allows up to maxExternal
// concurrent non-localhost connections.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		ips:         make(map[string]string),
	}
}

// Add registers a connection and returns the id of any evicted client,
// or the empty string. New connections are always admitted; eviction
// falls on the oldest external client.
func (cl *ConnectionLimiter) Add(clientID, remoteIP string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, tracked := cl.ips[clientID]; tracked {
		return ""
	}

	cl.ips[clientID] = remoteIP

	if isLoopback(remoteIP) {
		return ""
	}

	cl.external = append(cl.external, clientID)

	if len(cl.external) <= cl.maxExternal {
		return ""
	}

	evictedID = cl.external[0]
	cl.external = cl.external[1:]
	delete(cl.ips, evictedID)

	return evictedID
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ip, tracked := cl.ips[clientID]
	if !tracked {
		return
	}

	delete(cl.ips, clientID)

	if isLoopback(ip) {
		return
	}

	for i, id := range cl.external {
		if id == clientID {
			cl.external = append(cl.external[:i], cl.external[i+1:]...)
			break
		}
	}
}

func isLoopback(ip string) bool {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	parsed := net.ParseIP(ip)

	return parsed != nil && parsed.IsLoopback()
}
