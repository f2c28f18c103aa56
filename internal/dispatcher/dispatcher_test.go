package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/registry"
)

type sentEvent struct {
	Event string
	Data  any
}

type fakeConn struct {
	id string

	mu   sync.Mutex
	sent []sentEvent
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentEvent{Event: event, Data: data})
	return nil
}

func (c *fakeConn) events() []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentEvent, len(c.sent))
	copy(out, c.sent)
	return out
}

func newTestDispatcher(timeout time.Duration, broadcastAll bool) (*Dispatcher, *registry.Registry) {
	reg := registry.New()
	return New(reg, timeout, broadcastAll), reg
}

func TestNotifyDeviceUnreachable(t *testing.T) {
	d, _ := newTestDispatcher(time.Second, true)

	err := d.NotifyDevice("dev_1", "led:control", nil)
	if !errors.IsUnreachable(err) {
		t.Fatalf("expected device_unreachable error, got %v", err)
	}
}

func TestNotifyViewerTargeted(t *testing.T) {
	d, reg := newTestDispatcher(time.Second, true)
	viewer := &fakeConn{id: "v1"}
	reg.BindViewer("owner_7", viewer)

	d.NotifyViewer("owner_7", "device:online", map[string]string{"device_id": "dev_1"})
	d.NotifyViewer("owner_unknown", "device:online", nil) // must be a no-op

	got := viewer.events()
	if len(got) != 1 || got[0].Event != "device:online" {
		t.Fatalf("expected exactly one device:online event, got %v", got)
	}
}

func TestBroadcastReachesAllViewersOnce(t *testing.T) {
	d, reg := newTestDispatcher(time.Second, true)
	owner := &fakeConn{id: "v1"}
	other := &fakeConn{id: "v2"}
	reg.BindViewer("owner_7", owner)
	reg.BindViewer("owner_8", other)

	d.Broadcast("owner_7", "feeding:started", nil)

	if got := owner.events(); len(got) != 1 {
		t.Fatalf("targeted viewer should receive the event exactly once, got %d", len(got))
	}
	if got := other.events(); len(got) != 1 {
		t.Fatalf("other viewer should receive the broadcast, got %d", len(got))
	}
}

func TestBroadcastDisabledStaysTargeted(t *testing.T) {
	d, reg := newTestDispatcher(time.Second, false)
	owner := &fakeConn{id: "v1"}
	other := &fakeConn{id: "v2"}
	reg.BindViewer("owner_7", owner)
	reg.BindViewer("owner_8", other)

	d.Broadcast("owner_7", "feeding:started", nil)

	if got := owner.events(); len(got) != 1 {
		t.Fatalf("targeted viewer should receive the event, got %d", len(got))
	}
	if got := other.events(); len(got) != 0 {
		t.Fatalf("broadcast disabled, other viewer should receive nothing, got %v", got)
	}
}

func TestQueryResolves(t *testing.T) {
	d, reg := newTestDispatcher(time.Second, true)
	device := &fakeConn{id: "c1"}
	reg.BindDevice("dev_1", device)

	done := make(chan struct{})
	var payload any
	var err error
	go func() {
		payload, err = d.Query(context.Background(), "dev_1", "weight:get", "weight:get:response", nil)
		close(done)
	}()

	// Wait for the request to reach the device, then answer it.
	deadline := time.After(time.Second)
	for len(device.events()) == 0 {
		select {
		case <-deadline:
			t.Fatal("request event never sent to device")
		case <-time.After(time.Millisecond):
		}
	}
	if !d.Resolve("dev_1", "weight:get:response", 512.5) {
		t.Fatal("resolve should find the pending query")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("query did not return")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != 512.5 {
		t.Fatalf("expected payload 512.5, got %v", payload)
	}
}

func TestQueryTimesOut(t *testing.T) {
	d, reg := newTestDispatcher(20*time.Millisecond, true)
	reg.BindDevice("dev_1", &fakeConn{id: "c1"})

	_, err := d.Query(context.Background(), "dev_1", "weight:get", "weight:get:response", nil)
	if !errors.IsTimeout(err) {
		t.Fatalf("expected device_timeout error, got %v", err)
	}

	// A late response after the timeout must find nothing to satisfy.
	if d.Resolve("dev_1", "weight:get:response", 100.0) {
		t.Fatal("late response should not resolve anything")
	}
}

func TestQueryFailsWhenDeviceUnbound(t *testing.T) {
	d, reg := newTestDispatcher(time.Second, true)
	conn := &fakeConn{id: "c1"}
	reg.BindDevice("dev_1", conn)

	done := make(chan error, 1)
	go func() {
		_, err := d.Query(context.Background(), "dev_1", "weight:get", "weight:get:response", nil)
		done <- err
	}()

	deadline := time.After(time.Second)
	for len(conn.events()) == 0 {
		select {
		case <-deadline:
			t.Fatal("request event never sent to device")
		case <-time.After(time.Millisecond):
		}
	}

	// Connection closes: pending queries are failed immediately rather
	// than left to expire.
	reg.Unbind(conn)
	d.FailPending("dev_1")

	select {
	case err := <-done:
		if !errors.IsUnreachable(err) {
			t.Fatalf("expected device_unreachable error, got %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("query should fail promptly on connection loss, not wait out the timeout")
	}
}

func TestSecondQuerySameKindRejected(t *testing.T) {
	d, reg := newTestDispatcher(200*time.Millisecond, true)
	reg.BindDevice("dev_1", &fakeConn{id: "c1"})

	started := make(chan struct{})
	go func() {
		close(started)
		d.Query(context.Background(), "dev_1", "weight:get", "weight:get:response", nil)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	_, err := d.Query(context.Background(), "dev_1", "weight:get", "weight:get:response", nil)
	if !errors.IsPrecondition(err) {
		t.Fatalf("expected precondition error for overlapping query, got %v", err)
	}
}
