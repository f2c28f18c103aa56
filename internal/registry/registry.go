// FilePath: internal/registry/registry.go
package registry

import (
	"sync"

	nuts "github.com/vaudience/go-nuts"
)

// Conn is the transport handle the registry tracks. The websocket layer
// provides the concrete implementation; tests supply fakes.
type Conn interface {
	// ID returns a stable identifier for this connection instance.
	ID() string
	// Send queues an event for delivery over the connection.
	Send(event string, data any) error
}

// Registry is the in-memory single source of truth for which devices and
// viewers are reachable right now. It holds two maps: device ID to its
// connection and viewer (owner) ID to its connection. State is process
// local and rebuilt from nothing on restart; reconnecting peers must
// re-announce themselves.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Conn // device ID -> connection
	viewers map[string]Conn // owner ID -> connection
}

// New creates an empty connection registry.
func New() *Registry {
	return &Registry{
		devices: make(map[string]Conn),
		viewers: make(map[string]Conn),
	}
}

// BindDevice binds a device ID to a connection. Rebinding an ID that
// already has a live binding replaces it, last writer wins; the previous
// connection is considered superseded and is not closed here.
func (r *Registry) BindDevice(deviceID string, conn Conn) {
	r.mu.Lock()
	r.devices[deviceID] = conn
	r.mu.Unlock()
	nuts.L.Debugf("[Registry] Device bound: %s (conn: %s)", deviceID, conn.ID())
}

// BindViewer binds a viewer (owner) ID to a connection, last writer wins.
func (r *Registry) BindViewer(ownerID string, conn Conn) {
	r.mu.Lock()
	r.viewers[ownerID] = conn
	r.mu.Unlock()
	nuts.L.Debugf("[Registry] Viewer bound: %s (conn: %s)", ownerID, conn.ID())
}

// Unbind removes every binding whose connection equals the given one and
// returns the device and viewer IDs that were unbound. It is the only
// removal path and is safe to call more than once per connection; the
// second call finds nothing and removes nothing.
func (r *Registry) Unbind(conn Conn) (deviceIDs, viewerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.devices {
		if c == conn {
			delete(r.devices, id)
			deviceIDs = append(deviceIDs, id)
		}
	}
	for id, c := range r.viewers {
		if c == conn {
			delete(r.viewers, id)
			viewerIDs = append(viewerIDs, id)
		}
	}
	return deviceIDs, viewerIDs
}

// DeviceConn returns the live connection for a device, if any.
func (r *Registry) DeviceConn(deviceID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.devices[deviceID]
	return conn, ok
}

// ViewerConn returns the live connection for a viewer (owner), if any.
func (r *Registry) ViewerConn(ownerID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.viewers[ownerID]
	return conn, ok
}

// ViewerConns returns a snapshot of all currently bound viewer connections.
func (r *Registry) ViewerConns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Conn, 0, len(r.viewers))
	for _, c := range r.viewers {
		conns = append(conns, c)
	}
	return conns
}

// DeviceCount returns the number of currently bound devices.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// ViewerCount returns the number of currently bound viewers.
func (r *Registry) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}
