// FilePath: internal/socket/handler.go
package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nestlink/bottlehub/internal/config"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/hubservice"
	"github.com/nestlink/bottlehub/internal/protocol"
	nuts "github.com/vaudience/go-nuts"
)

// Handler accepts websocket connections from devices and viewers and
// routes their event envelopes into the hub service. Each connection is
// read by exactly one goroutine, so a peer's events are processed in
// arrival order.
type Handler struct {
	hub      *hubservice.HubService
	cfg      config.HubConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler bound to a hub service.
func NewHandler(hub *hubservice.HubService, cfg config.HubConfig) *Handler {
	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(_ *http.Request) bool {
				// Origin checking is handled by CORS middleware
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		nuts.L.Warnf("[Socket] Upgrade failed: %v", err)
		return
	}

	conn := newConn(ws, h.cfg.SendBufferSize)
	nuts.L.Infof("[Socket] Connection opened: %s (%s)", conn.id, r.RemoteAddr)

	go conn.writePump()
	go h.readLoop(conn)
}

// readLoop processes inbound envelopes serially until the peer goes away,
// then tears everything attached to the connection down.
func (h *Handler) readLoop(conn *Conn) {
	ctx := context.Background()
	defer func() {
		h.hub.ConnectionClosed(ctx, conn)
		conn.Close()
		conn.ws.Close()
		switch {
		case conn.deviceID != "":
			nuts.L.Infof("[Socket] Connection closed: %s (device: %s)", conn.id, conn.deviceID)
		case conn.ownerID != "":
			nuts.L.Infof("[Socket] Connection closed: %s (viewer: %s)", conn.id, conn.ownerID)
		default:
			nuts.L.Infof("[Socket] Connection closed: %s", conn.id)
		}
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				nuts.L.Warnf("[Socket] Read error on %s: %v", conn.id, err)
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(pongWait))

		var env protocol.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid event envelope", err))
			continue
		}
		h.route(ctx, conn, env)
	}
}

// route dispatches one envelope to the hub service.
func (h *Handler) route(ctx context.Context, conn *Conn, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventDeviceConnect:
		var payload protocol.DeviceConnect
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid device:connect payload", err))
			return
		}
		device, err := h.hub.DeviceConnected(ctx, payload.DeviceID, conn)
		if err != nil {
			h.sendError(conn, err)
			return
		}
		conn.deviceID = device.ID
		conn.Send(protocol.EventDeviceConnected, protocol.Ack{Success: true, DeviceID: device.ID})

	case protocol.EventClientConnect:
		var payload protocol.ClientConnect
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid client:connect payload", err))
			return
		}
		if err := h.hub.ViewerConnected(ctx, payload.OwnerID, conn); err != nil {
			h.sendError(conn, err)
			return
		}
		conn.ownerID = payload.OwnerID
		conn.Send(protocol.EventClientConnected, protocol.Ack{Success: true})

	case protocol.EventFeedingStart:
		var payload protocol.FeedingStart
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid feeding:start payload", err))
			return
		}
		session, err := h.hub.StartSession(ctx, payload.DeviceID, payload.SubjectID)
		if err != nil {
			h.sendError(conn, err)
			return
		}
		conn.Send(protocol.EventFeedingReady, protocol.FeedingReady{
			SessionID: session.ID,
			Message:   "Place the bottle on the scale",
		})

	case protocol.EventBottlePlaced:
		var payload protocol.BottlePlaced
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid bottle:placed payload", err))
			return
		}
		if _, err := h.hub.PlaceBottle(ctx, payload.SessionID, payload.Weight, payload.Temperature); err != nil {
			h.sendError(conn, err)
		}

	case protocol.EventTemperatureUpdate:
		var payload protocol.TemperatureUpdate
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid temperature:update payload", err))
			return
		}
		if _, err := h.hub.UpdateTemperature(ctx, payload.SessionID, payload.Temperature); err != nil {
			h.sendError(conn, err)
		}

	case protocol.EventFeedingPickup:
		var payload protocol.FeedingPickup
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid feeding:pickup payload", err))
			return
		}
		if _, err := h.hub.PickupBottle(ctx, payload.SessionID); err != nil {
			h.sendError(conn, err)
		}

	case protocol.EventFeedingEnd:
		var payload protocol.FeedingEnd
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid feeding:end payload", err))
			return
		}
		if _, err := h.hub.FinishSession(ctx, payload.SessionID, payload.FinalWeight); err != nil {
			h.sendError(conn, err)
		}

	case protocol.EventWeightGetResponse:
		var payload protocol.WeightResponse
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid weight:get:response payload", err))
			return
		}
		if conn.deviceID == "" {
			h.sendError(conn, errors.NewValidationError("connection is not an identified device", nil))
			return
		}
		if !h.hub.Dispatch.Resolve(conn.deviceID, protocol.EventWeightGetResponse, payload) {
			nuts.L.Debugf("[Socket] Dropping unsolicited weight response from %s", conn.deviceID)
		}

	case protocol.EventWeightTareResponse:
		var payload protocol.TareResponse
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			h.sendError(conn, errors.NewValidationError("invalid weight:tare:response payload", err))
			return
		}
		if conn.deviceID == "" {
			h.sendError(conn, errors.NewValidationError("connection is not an identified device", nil))
			return
		}
		if !h.hub.Dispatch.Resolve(conn.deviceID, protocol.EventWeightTareResponse, payload) {
			nuts.L.Debugf("[Socket] Dropping unsolicited tare response from %s", conn.deviceID)
		}

	default:
		h.sendError(conn, errors.NewValidationError("unknown event: "+env.Event, nil))
	}
}

// sendError reports a failure back on the originating connection instead
// of dropping it; a malformed or mistimed event must not kill the socket.
func (h *Handler) sendError(conn *Conn, err error) {
	payload := protocol.ErrorPayload{Message: err.Error()}
	if apiErr, ok := err.(*errors.APIError); ok {
		payload.Type = string(apiErr.Type)
		payload.Message = apiErr.Message
	}
	if sendErr := conn.Send(protocol.EventError, payload); sendErr != nil {
		nuts.L.Debugf("[Socket] Failed to deliver error on %s: %v", conn.id, sendErr)
	}
}
