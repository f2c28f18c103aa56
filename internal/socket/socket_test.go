// FilePath: internal/socket/socket_test.go
package socket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nestlink/bottlehub/internal/config"
	"github.com/nestlink/bottlehub/internal/database"
	"github.com/nestlink/bottlehub/internal/dispatcher"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/hubservice"
	"github.com/nestlink/bottlehub/internal/models"
	"github.com/nestlink/bottlehub/internal/protocol"
	"github.com/nestlink/bottlehub/internal/registry"
	"github.com/nestlink/bottlehub/internal/repository"
)

type memDeviceRepo struct {
	devices map[string]*models.Device
}

func (r *memDeviceRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }
func (r *memDeviceRepo) Create(ctx context.Context, d *models.Device) error {
	r.devices[d.ID] = d
	return nil
}
func (r *memDeviceRepo) Get(ctx context.Context, id string) (*models.Device, error) {
	d, ok := r.devices[id]
	if !ok {
		return nil, errors.NewNotFoundError("device not found", nil)
	}
	cp := *d
	return &cp, nil
}
func (r *memDeviceRepo) Update(ctx context.Context, d *models.Device) error { return nil }
func (r *memDeviceRepo) Delete(ctx context.Context, id string) error        { return nil }
func (r *memDeviceRepo) DeleteTx(ctx context.Context, id string, tx database.Transaction) error {
	return nil
}
func (r *memDeviceRepo) List(ctx context.Context, offset, limit int) ([]*models.Device, error) {
	return nil, nil
}
func (r *memDeviceRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Device, error) {
	out := []*models.Device{}
	for _, d := range r.devices {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}
func (r *memDeviceRepo) SetConnection(ctx context.Context, id string, connectionID *string, online bool, lastSeen time.Time) error {
	if d, ok := r.devices[id]; ok {
		d.ConnectionID = connectionID
		d.IsOnline = online
		d.LastSeen = lastSeen
	}
	return nil
}

type memSessionRepo struct {
	sessions map[string]*models.FeedingSession
}

func (r *memSessionRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }
func (r *memSessionRepo) Create(ctx context.Context, s *models.FeedingSession) error {
	r.sessions[s.ID] = s
	return nil
}
func (r *memSessionRepo) Get(ctx context.Context, id string) (*models.FeedingSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("session not found", nil)
	}
	cp := *s
	return &cp, nil
}
func (r *memSessionRepo) GetActiveByDevice(ctx context.Context, deviceID string) (*models.FeedingSession, error) {
	for _, s := range r.sessions {
		if s.DeviceID == deviceID && !s.Status.Terminal() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("no active session", nil)
}
func (r *memSessionRepo) MarkBottlePlaced(ctx context.Context, id string, netWeight, temperature float64, safe bool, at time.Time) error {
	s := r.sessions[id]
	s.Status = models.SessionBottlePlaced
	s.BottlePlacedAt = &at
	s.InitialWeight = &netWeight
	s.Temperature = &temperature
	s.TemperatureSafe = &safe
	return nil
}
func (r *memSessionRepo) MarkInProgress(ctx context.Context, id string, at time.Time) error {
	s := r.sessions[id]
	s.Status = models.SessionInProgress
	s.FeedingStartedAt = &at
	return nil
}
func (r *memSessionRepo) UpdateTemperature(ctx context.Context, id string, temperature float64, safe bool) error {
	s := r.sessions[id]
	s.Temperature = &temperature
	s.TemperatureSafe = &safe
	return nil
}
func (r *memSessionRepo) Finalize(ctx context.Context, params repository.FinalizeParams) (*models.FeedingRecord, error) {
	s, ok := r.sessions[params.SessionID]
	if !ok {
		return nil, errors.NewNotFoundError("session not found", nil)
	}
	if s.Status != models.SessionInProgress {
		return nil, errors.NewPreconditionError("session not in progress", nil)
	}
	s.Status = models.SessionCompleted
	return &models.FeedingRecord{
		ID:             params.RecordID,
		SessionID:      s.ID,
		DeviceID:       s.DeviceID,
		SubjectID:      s.SubjectID,
		WeightBefore:   *s.InitialWeight,
		WeightAfter:    params.FinalWeight,
		AmountConsumed: params.AmountConsumed,
		Duration:       params.Duration,
		RecordedAt:     params.EndedAt,
	}, nil
}
func (r *memSessionRepo) DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error {
	return nil
}

type memRecordRepo struct{}

func (memRecordRepo) BeginTx(ctx context.Context) (database.Transaction, error) { return nil, nil }
func (memRecordRepo) List(ctx context.Context, filters models.RecordFilters) ([]*models.FeedingRecord, error) {
	return nil, nil
}
func (memRecordRepo) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.FeedingRecord, error) {
	return nil, nil
}
func (memRecordRepo) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*models.FeedingRecord, error) {
	return nil, nil
}
func (memRecordRepo) GetDailyStat(ctx context.Context, subjectID string, day time.Time) (*models.DailyStat, error) {
	return nil, errors.NewNotFoundError("no stat", nil)
}
func (memRecordRepo) DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memDeviceRepo) {
	t.Helper()
	devices := &memDeviceRepo{devices: map[string]*models.Device{
		"dev_socket01": {
			ID:         "dev_socket01",
			Name:       "Nursery Bottle",
			OwnerID:    "owner-1",
			TareOffset: 50,
		},
	}}
	sessions := &memSessionRepo{sessions: map[string]*models.FeedingSession{}}
	reg := registry.New()
	dispatch := dispatcher.New(reg, 200*time.Millisecond, true)
	hub := hubservice.New(devices, sessions, memRecordRepo{}, reg, dispatch)

	handler := NewHandler(hub, config.HubConfig{
		DeviceQueryTimeout: 200 * time.Millisecond,
		SendBufferSize:     64,
		ReadBufferSize:     1024,
		WriteBufferSize:    1024,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, devices
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEvent(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := ws.WriteJSON(protocol.Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// readEvent reads envelopes until one matches the wanted event, failing
// on error envelopes along the way.
func readEvent(t *testing.T, ws *websocket.Conn, want string) protocol.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env protocol.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if env.Event == want {
			return env
		}
		if env.Event == protocol.EventError {
			t.Fatalf("waiting for %s, got error envelope: %s", want, string(env.Data))
		}
	}
}

func TestDeviceFeedingFlowOverSocket(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv)

	sendEvent(t, ws, protocol.EventDeviceConnect, protocol.DeviceConnect{DeviceID: "dev_socket01"})
	readEvent(t, ws, protocol.EventDeviceConnected)

	sendEvent(t, ws, protocol.EventFeedingStart, protocol.FeedingStart{
		DeviceID:  "dev_socket01",
		SubjectID: "baby-1",
	})
	ready := readEvent(t, ws, protocol.EventFeedingReady)

	var readyPayload protocol.FeedingReady
	if err := json.Unmarshal(ready.Data, &readyPayload); err != nil {
		t.Fatalf("decode feeding:ready: %v", err)
	}
	if readyPayload.SessionID == "" {
		t.Fatal("feeding:ready carries no session id")
	}

	sendEvent(t, ws, protocol.EventBottlePlaced, protocol.BottlePlaced{
		SessionID:   readyPayload.SessionID,
		Weight:      550,
		Temperature: 38,
	})
	led := readEvent(t, ws, protocol.EventLEDControl)

	var ledPayload protocol.LEDControl
	if err := json.Unmarshal(led.Data, &ledPayload); err != nil {
		t.Fatalf("decode led:control: %v", err)
	}
	if ledPayload.Status != models.TemperatureSafe {
		t.Errorf("led status = %s, want safe", ledPayload.Status)
	}

	sendEvent(t, ws, protocol.EventFeedingPickup, protocol.FeedingPickup{SessionID: readyPayload.SessionID})
	sendEvent(t, ws, protocol.EventFeedingEnd, protocol.FeedingEnd{
		SessionID:   readyPayload.SessionID,
		FinalWeight: 350,
	})
	completed := readEvent(t, ws, protocol.EventFeedingCompleted)

	var summary protocol.FeedingCompleted
	if err := json.Unmarshal(completed.Data, &summary); err != nil {
		t.Fatalf("decode feeding:completed: %v", err)
	}
	if summary.AmountConsumed != 200 {
		t.Errorf("amount consumed = %.1f, want 200", summary.AmountConsumed)
	}
	if summary.WeightBefore != 500 || summary.WeightAfter != 300 {
		t.Errorf("weights = %.1f/%.1f, want 500/300", summary.WeightBefore, summary.WeightAfter)
	}
}

func TestViewerReceivesSnapshotAndBroadcasts(t *testing.T) {
	srv, _ := newTestServer(t)

	viewer := dial(t, srv)
	sendEvent(t, viewer, protocol.EventClientConnect, protocol.ClientConnect{OwnerID: "owner-1"})
	readEvent(t, viewer, protocol.EventClientConnected)
	snapshot := readEvent(t, viewer, protocol.EventDevicesStatus)

	var statuses protocol.DevicesStatus
	if err := json.Unmarshal(snapshot.Data, &statuses); err != nil {
		t.Fatalf("decode devices:status: %v", err)
	}
	if len(statuses.Devices) != 1 || statuses.Devices[0].Device.ID != "dev_socket01" {
		t.Fatalf("snapshot devices = %+v, want dev_socket01", statuses.Devices)
	}

	device := dial(t, srv)
	sendEvent(t, device, protocol.EventDeviceConnect, protocol.DeviceConnect{DeviceID: "dev_socket01"})
	readEvent(t, device, protocol.EventDeviceConnected)

	online := readEvent(t, viewer, protocol.EventDeviceOnline)
	var presence protocol.DevicePresence
	if err := json.Unmarshal(online.Data, &presence); err != nil {
		t.Fatalf("decode device:online: %v", err)
	}
	if presence.DeviceID != "dev_socket01" {
		t.Errorf("presence device = %s, want dev_socket01", presence.DeviceID)
	}

	sendEvent(t, device, protocol.EventFeedingStart, protocol.FeedingStart{
		DeviceID:  "dev_socket01",
		SubjectID: "baby-1",
	})
	readEvent(t, viewer, protocol.EventFeedingStarted)
}

func TestUnknownEventGetsErrorReply(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv)

	sendEvent(t, ws, "bottle:levitate", map[string]string{})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env protocol.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read error reply: %v", err)
	}
	if env.Event != protocol.EventError {
		t.Fatalf("event = %s, want error", env.Event)
	}
}

func TestDeviceDisconnectMarksOffline(t *testing.T) {
	srv, devices := newTestServer(t)
	ws := dial(t, srv)

	sendEvent(t, ws, protocol.EventDeviceConnect, protocol.DeviceConnect{DeviceID: "dev_socket01"})
	readEvent(t, ws, protocol.EventDeviceConnected)
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d, err := devices.Get(context.Background(), "dev_socket01")
		if err == nil && !d.IsOnline {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("device still marked online after disconnect")
}
