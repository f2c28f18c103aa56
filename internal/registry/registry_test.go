package registry

import (
	"fmt"
	"sync"
	"testing"
)

type fakeConn struct {
	id string
}

func (c *fakeConn) ID() string             { return c.id }
func (c *fakeConn) Send(string, any) error { return nil }

func TestBindAndLookup(t *testing.T) {
	r := New()
	devConn := &fakeConn{id: "c1"}
	viewConn := &fakeConn{id: "c2"}

	r.BindDevice("dev_1", devConn)
	r.BindViewer("owner_7", viewConn)

	got, ok := r.DeviceConn("dev_1")
	if !ok || got != devConn {
		t.Fatalf("expected device conn %v, got %v (ok=%v)", devConn, got, ok)
	}
	got, ok = r.ViewerConn("owner_7")
	if !ok || got != viewConn {
		t.Fatalf("expected viewer conn %v, got %v (ok=%v)", viewConn, got, ok)
	}
	if _, ok := r.DeviceConn("dev_2"); ok {
		t.Fatal("lookup of unbound device should report not found")
	}
}

func TestRebindLastWriterWins(t *testing.T) {
	r := New()
	first := &fakeConn{id: "c1"}
	second := &fakeConn{id: "c2"}

	r.BindDevice("dev_1", first)
	r.BindDevice("dev_1", second)

	got, ok := r.DeviceConn("dev_1")
	if !ok || got != second {
		t.Fatalf("expected rebind to replace connection, got %v", got)
	}
	if r.DeviceCount() != 1 {
		t.Fatalf("expected 1 device binding, got %d", r.DeviceCount())
	}
}

func TestUnbindRemovesAllBindingsForConn(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "c1"}
	other := &fakeConn{id: "c2"}

	r.BindDevice("dev_1", conn)
	r.BindViewer("owner_7", conn)
	r.BindViewer("owner_8", other)

	devices, viewers := r.Unbind(conn)
	if len(devices) != 1 || devices[0] != "dev_1" {
		t.Fatalf("expected unbound devices [dev_1], got %v", devices)
	}
	if len(viewers) != 1 || viewers[0] != "owner_7" {
		t.Fatalf("expected unbound viewers [owner_7], got %v", viewers)
	}
	if _, ok := r.DeviceConn("dev_1"); ok {
		t.Fatal("device binding should be gone after unbind")
	}
	if _, ok := r.ViewerConn("owner_8"); !ok {
		t.Fatal("unrelated viewer binding should survive")
	}
}

func TestUnbindIsIdempotent(t *testing.T) {
	r := New()
	conn := &fakeConn{id: "c1"}
	r.BindDevice("dev_1", conn)

	r.Unbind(conn)
	devices, viewers := r.Unbind(conn)
	if len(devices) != 0 || len(viewers) != 0 {
		t.Fatalf("second unbind should be a no-op, got %v / %v", devices, viewers)
	}
}

func TestUnbindDoesNotRemoveSupersededBinding(t *testing.T) {
	r := New()
	stale := &fakeConn{id: "c1"}
	fresh := &fakeConn{id: "c2"}

	r.BindDevice("dev_1", stale)
	r.BindDevice("dev_1", fresh)

	// The stale connection closing must not evict the fresh binding.
	devices, _ := r.Unbind(stale)
	if len(devices) != 0 {
		t.Fatalf("unbind of superseded conn should remove nothing, got %v", devices)
	}
	if got, ok := r.DeviceConn("dev_1"); !ok || got != fresh {
		t.Fatalf("fresh binding should survive, got %v (ok=%v)", got, ok)
	}
}

func TestViewerConnsSnapshot(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		r.BindViewer(fmt.Sprintf("owner_%d", i), &fakeConn{id: fmt.Sprintf("c%d", i)})
	}
	if got := len(r.ViewerConns()); got != 3 {
		t.Fatalf("expected 3 viewer conns, got %d", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conn := &fakeConn{id: fmt.Sprintf("c%d", n)}
			id := fmt.Sprintf("dev_%d", n%4)
			for j := 0; j < 100; j++ {
				r.BindDevice(id, conn)
				r.DeviceConn(id)
				r.Unbind(conn)
			}
		}(i)
	}
	wg.Wait()
}
