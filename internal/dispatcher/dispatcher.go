// FilePath: internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/registry"
	nuts "github.com/vaudience/go-nuts"
)

// Dispatcher routes hub events to device and viewer connections, and
// implements the synchronous request/response pattern over the
// asynchronous transport for on-demand hardware queries.
type Dispatcher struct {
	registry     *registry.Registry
	queryTimeout time.Duration
	broadcastAll bool

	mu      sync.Mutex
	pending map[pendingKey]chan any
}

// pendingKey identifies one outstanding device query. Only one query per
// (device, response event) pair may be in flight; callers must serialize
// queries of the same kind per device.
type pendingKey struct {
	deviceID string
	event    string
}

// New creates a dispatcher bound to a connection registry. queryTimeout
// bounds every device query; broadcastAll mirrors viewer events to all
// connected viewers in addition to the targeted one.
func New(reg *registry.Registry, queryTimeout time.Duration, broadcastAll bool) *Dispatcher {
	return &Dispatcher{
		registry:     reg,
		queryTimeout: queryTimeout,
		broadcastAll: broadcastAll,
		pending:      make(map[pendingKey]chan any),
	}
}

// NotifyDevice sends an event to a device's live connection. Fails with
// DeviceUnreachable when the device has no binding.
func (d *Dispatcher) NotifyDevice(deviceID, event string, data any) error {
	conn, ok := d.registry.DeviceConn(deviceID)
	if !ok {
		return errors.NewUnreachableError("no live connection for device "+deviceID, nil)
	}
	if err := conn.Send(event, data); err != nil {
		return errors.NewUnreachableError("failed to send to device "+deviceID, err)
	}
	return nil
}

// NotifyViewer sends an event to the viewer bound to the given owner.
// A missing viewer binding is a no-op, not an error.
func (d *Dispatcher) NotifyViewer(ownerID, event string, data any) {
	conn, ok := d.registry.ViewerConn(ownerID)
	if !ok {
		return
	}
	if err := conn.Send(event, data); err != nil {
		nuts.L.Warnf("[Dispatcher] Failed to send %s to viewer %s: %v", event, ownerID, err)
	}
}

// Broadcast sends an event to the targeted viewer and, when enabled, to
// every other connected viewer as well. The indiscriminate fan-out
// supports multi-viewer monitoring and is a simplification, not an
// authorization boundary.
func (d *Dispatcher) Broadcast(ownerID, event string, data any) {
	targeted, hasTargeted := d.registry.ViewerConn(ownerID)
	if hasTargeted {
		if err := targeted.Send(event, data); err != nil {
			nuts.L.Warnf("[Dispatcher] Failed to send %s to viewer %s: %v", event, ownerID, err)
		}
	}

	if !d.broadcastAll {
		return
	}
	for _, conn := range d.registry.ViewerConns() {
		if hasTargeted && conn == targeted {
			continue
		}
		if err := conn.Send(event, data); err != nil {
			nuts.L.Warnf("[Dispatcher] Broadcast of %s failed on conn %s: %v", event, conn.ID(), err)
		}
	}
}

// Query sends a request event to a device and blocks until the matching
// response event arrives, the timeout elapses, or the context is
// cancelled. The one-shot handler is deregistered on every exit path, so
// a late or duplicate response has no observable effect.
func (d *Dispatcher) Query(ctx context.Context, deviceID, requestEvent, responseEvent string, data any) (any, error) {
	key := pendingKey{deviceID: deviceID, event: responseEvent}
	ch := make(chan any, 1)

	d.mu.Lock()
	if _, exists := d.pending[key]; exists {
		d.mu.Unlock()
		return nil, errors.NewPreconditionError("query already in flight for device "+deviceID, nil)
	}
	d.pending[key] = ch
	d.mu.Unlock()

	defer d.remove(key)

	if err := d.NotifyDevice(deviceID, requestEvent, data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(d.queryTimeout)
	defer timer.Stop()

	select {
	case payload, ok := <-ch:
		if !ok {
			// Channel closed by FailPending: the device connection went
			// away while we were waiting.
			return nil, errors.NewUnreachableError("device connection lost during query", nil)
		}
		return payload, nil
	case <-timer.C:
		return nil, errors.NewTimeoutError("device "+deviceID+" did not respond to "+requestEvent, nil)
	case <-ctx.Done():
		return nil, errors.NewTimeoutError("query cancelled", ctx.Err())
	}
}

// Resolve delivers a response payload to the pending query waiting on the
// given event, deregistering it. Returns false when no query is waiting,
// which is how late and duplicate responses are dropped.
func (d *Dispatcher) Resolve(deviceID, responseEvent string, payload any) bool {
	key := pendingKey{deviceID: deviceID, event: responseEvent}

	d.mu.Lock()
	ch, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	ch <- payload
	return true
}

// FailPending fails every outstanding query for a device. Called when
// the device's connection closes so waiters do not sit out the full
// timeout on a connection that can no longer answer.
func (d *Dispatcher) FailPending(deviceID string) {
	d.mu.Lock()
	for key, ch := range d.pending {
		if key.deviceID == deviceID {
			delete(d.pending, key)
			close(ch)
		}
	}
	d.mu.Unlock()
}

func (d *Dispatcher) remove(key pendingKey) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}
