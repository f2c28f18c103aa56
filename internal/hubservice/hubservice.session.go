// FilePath: internal/hubservice/hubservice.session.go
package hubservice

import (
	"context"
	"time"

	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/models"
	"github.com/nestlink/bottlehub/internal/protocol"
	"github.com/nestlink/bottlehub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// StartSession begins a new feeding session for a device. A device can
// run at most one non-terminal session, a second start while one is
// active is rejected.
func (s *HubService) StartSession(ctx context.Context, deviceID, subjectID string) (*models.FeedingSession, error) {
	device, err := s.Devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	_, err = s.Sessions.GetActiveByDevice(ctx, deviceID)
	if err == nil {
		return nil, errors.NewPreconditionError("device already has an active feeding session", nil)
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now()
	session := &models.FeedingSession{
		ID:              nuts.NID("ses", 12),
		DeviceID:        device.ID,
		SubjectID:       subjectID,
		Status:          models.SessionReady,
		ButtonPressedAt: now,
		CreatedAt:       now,
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	nuts.L.Infof("[SessionService] Session started: %s (device: %s, subject: %s)", session.ID, deviceID, subjectID)

	s.Dispatch.Broadcast(device.OwnerID, protocol.EventFeedingStarted, protocol.FeedingStarted{
		SessionID: session.ID,
		DeviceID:  device.ID,
		SubjectID: subjectID,
		Status:    session.Status,
	})
	s.emit("session.started", session.ID)
	return session, nil
}

// PlaceBottle records the initial bottle weight and temperature. The raw
// scale reading is converted to a net weight by subtracting the device
// tare offset. Only a session in ready state accepts this transition.
func (s *HubService) PlaceBottle(ctx context.Context, sessionID string, rawWeight, temperature float64) (*models.FeedingSession, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionReady {
		return nil, errors.NewPreconditionError("bottle placement requires a session in ready state", nil)
	}

	device, err := s.Devices.Get(ctx, session.DeviceID)
	if err != nil {
		return nil, err
	}

	netWeight := rawWeight - device.TareOffset
	tempStatus := models.ClassifyTemperature(temperature)
	safe := tempStatus == models.TemperatureSafe
	now := time.Now()

	if err := s.Sessions.MarkBottlePlaced(ctx, sessionID, netWeight, temperature, safe, now); err != nil {
		return nil, err
	}

	session.Status = models.SessionBottlePlaced
	session.BottlePlacedAt = &now
	session.InitialWeight = &netWeight
	session.Temperature = &temperature
	session.TemperatureSafe = &safe

	nuts.L.Infof("[SessionService] Bottle placed: %s (net: %.1fg, temp: %.1f°C %s)",
		sessionID, netWeight, temperature, tempStatus)

	// The LED is advisory, a dead indicator must not block the feeding.
	if err := s.Dispatch.NotifyDevice(device.ID, protocol.EventLEDControl, s.ledControl(tempStatus)); err != nil {
		nuts.L.Warnf("[SessionService] Failed to drive LED on %s: %v", device.ID, err)
	}

	s.Dispatch.Broadcast(device.OwnerID, protocol.EventBottleStatus, protocol.BottleStatus{
		SessionID:         session.ID,
		Weight:            netWeight,
		WeightActual:      rawWeight,
		Temperature:       temperature,
		TemperatureSafe:   safe,
		TemperatureStatus: tempStatus,
		Status:            session.Status,
	})
	return session, nil
}

// UpdateTemperature records a fresh temperature reading for a session
// that has not yet completed, re-driving the LED and informing viewers.
func (s *HubService) UpdateTemperature(ctx context.Context, sessionID string, temperature float64) (*models.FeedingSession, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, errors.NewPreconditionError("cannot update temperature on a completed session", nil)
	}

	tempStatus := models.ClassifyTemperature(temperature)
	safe := tempStatus == models.TemperatureSafe

	if err := s.Sessions.UpdateTemperature(ctx, sessionID, temperature, safe); err != nil {
		return nil, err
	}
	session.Temperature = &temperature
	session.TemperatureSafe = &safe

	device, err := s.Devices.Get(ctx, session.DeviceID)
	if err != nil {
		return nil, err
	}

	if err := s.Dispatch.NotifyDevice(device.ID, protocol.EventLEDControl, s.ledControl(tempStatus)); err != nil {
		nuts.L.Warnf("[SessionService] Failed to drive LED on %s: %v", device.ID, err)
	}

	s.Dispatch.Broadcast(device.OwnerID, protocol.EventTemperatureStatus, protocol.TemperatureStatusUpdate{
		SessionID:         session.ID,
		Temperature:       temperature,
		TemperatureSafe:   safe,
		TemperatureStatus: tempStatus,
	})
	return session, nil
}

// PickupBottle marks the moment the bottle leaves the scale and the
// feeding itself begins. Only valid from bottle_placed state.
func (s *HubService) PickupBottle(ctx context.Context, sessionID string) (*models.FeedingSession, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionBottlePlaced {
		return nil, errors.NewPreconditionError("bottle pickup requires a placed bottle", nil)
	}

	now := time.Now()
	if err := s.Sessions.MarkInProgress(ctx, sessionID, now); err != nil {
		return nil, err
	}
	session.Status = models.SessionInProgress
	session.FeedingStartedAt = &now

	device, err := s.Devices.Get(ctx, session.DeviceID)
	if err != nil {
		return nil, err
	}

	nuts.L.Infof("[SessionService] Feeding in progress: %s", sessionID)

	s.Dispatch.Broadcast(device.OwnerID, protocol.EventFeedingInProgress, protocol.FeedingInProgress{
		SessionID: session.ID,
		StartedAt: now,
		Status:    session.Status,
	})
	return session, nil
}

// FinishSession closes an in-progress feeding. It computes the amount
// consumed from the tare-adjusted weights, runs the finalize transaction
// and fans the summary out to the device and the owner's viewers.
func (s *HubService) FinishSession(ctx context.Context, sessionID string, rawFinalWeight float64) (*models.FeedingRecord, error) {
	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, errors.NewPreconditionError("only an in-progress feeding can be finished", nil)
	}
	if session.InitialWeight == nil || session.FeedingStartedAt == nil {
		return nil, errors.NewInternalError("in-progress session is missing placement data", nil)
	}

	device, err := s.Devices.Get(ctx, session.DeviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	netFinal := rawFinalWeight - device.TareOffset
	amount := *session.InitialWeight - netFinal
	duration := int64(now.Sub(*session.FeedingStartedAt).Seconds())

	record, err := s.Sessions.Finalize(ctx, repository.FinalizeParams{
		SessionID:      sessionID,
		RecordID:       nuts.NID("rec", 12),
		FinalWeight:    netFinal,
		AmountConsumed: amount,
		Duration:       duration,
		EndedAt:        now,
	})
	if err != nil {
		return nil, err
	}

	nuts.L.Infof("[SessionService] Session completed: %s (consumed: %.1fg in %ds)", sessionID, amount, duration)

	temperature := 0.0
	if session.Temperature != nil {
		temperature = *session.Temperature
	}
	completed := protocol.FeedingCompleted{
		SessionID:      sessionID,
		SubjectID:      session.SubjectID,
		WeightBefore:   *session.InitialWeight,
		WeightAfter:    netFinal,
		AmountConsumed: amount,
		Duration:       duration,
		Temperature:    temperature,
		Timestamp:      now,
	}
	if err := s.Dispatch.NotifyDevice(device.ID, protocol.EventFeedingCompleted, completed); err != nil {
		nuts.L.Warnf("[SessionService] Failed to send summary to device %s: %v", device.ID, err)
	}
	s.Dispatch.Broadcast(device.OwnerID, protocol.EventFeedingCompleted, completed)
	s.emit("session.completed", sessionID)
	return record, nil
}

// GetSession retrieves a session by ID
func (s *HubService) GetSession(ctx context.Context, id string) (*models.FeedingSession, error) {
	return s.Sessions.Get(ctx, id)
}

// ActiveSession returns the device's current non-terminal session, or a
// NotFound error when it is idle.
func (s *HubService) ActiveSession(ctx context.Context, deviceID string) (*models.FeedingSession, error) {
	return s.Sessions.GetActiveByDevice(ctx, deviceID)
}

func (s *HubService) ledControl(status models.TemperatureStatus) protocol.LEDControl {
	var message string
	switch status {
	case models.TemperatureLow:
		message = "Milk is too cold, please warm it up"
	case models.TemperatureHigh:
		message = "Milk is too hot, let it cool down"
	default:
		message = "Temperature is safe for feeding"
	}
	return protocol.LEDControl{
		Status:    status,
		Message:   message,
		SafeRange: models.SafeTemperatureRange,
	}
}
