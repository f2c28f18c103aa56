// FilePath: internal/hubservice/hubservice.device.go
package hubservice

import (
	"context"
	"time"

	"github.com/itsatony/struccy"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/models"
	"github.com/nestlink/bottlehub/internal/protocol"
	"github.com/nestlink/bottlehub/internal/registry"
	nuts "github.com/vaudience/go-nuts"
)

// RegisterDevice creates a new device with proper validation and initialization
func (s *HubService) RegisterDevice(ctx context.Context, device *models.Device) error {
	if device.Name == "" {
		return errors.NewValidationError("device name is required", nil)
	}
	if device.OwnerID == "" {
		return errors.NewValidationError("device owner is required", nil)
	}
	if device.TareOffset < 0 {
		return errors.NewValidationError("tare offset cannot be negative", nil)
	}

	// Generate new ID if the hardware did not bring its own
	if device.ID == "" {
		device.ID = nuts.NID("dev", 12)
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now
	device.LastSeen = now
	device.IsOnline = false
	device.ConnectionID = nil

	nuts.L.Infof("[DeviceService] Registering device: %s (%s)", device.Name, device.ID)
	return s.Devices.Create(ctx, device)
}

// GetDevice retrieves a device with role-based field filtering
func (s *HubService) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	device, err := s.Devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	roles := GetUserRoles(ctx)

	filteredMap, err := struccy.StructToMapFieldsWithReadXS(device, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter device fields", err)
	}
	filtered := &models.Device{}
	_, err = struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to device struct", err)
	}

	return filtered, nil
}

// UpdateDevice updates an existing device with role-based access control.
// The hub-owned liveness fields are not writable through this path.
func (s *HubService) UpdateDevice(ctx context.Context, device *models.Device) error {
	existing, err := s.Devices.Get(ctx, device.ID)
	if err != nil {
		return err
	}
	if device.TareOffset < 0 {
		return errors.NewValidationError("tare offset cannot be negative", nil)
	}

	roles := GetUserRoles(ctx)

	updatedFields, _, err := struccy.UpdateStructFields(existing, device, roles, true, true)
	if err != nil {
		return errors.NewInternalError("unauthorized field update", err)
	}

	existing.UpdatedAt = time.Now()

	nuts.L.Infof("[DeviceService] Updating device %s, fields changed: %v", device.ID, updatedFields)
	return s.Devices.Update(ctx, existing)
}

// DeleteDevice handles device deletion with cascading cleanup
func (s *HubService) DeleteDevice(ctx context.Context, id string) error {
	if _, err := s.Devices.Get(ctx, id); err != nil {
		return err
	}

	nuts.L.Infof("[DeviceService] Deleting device: %s", id)
	if err := s.Cleanup.DeleteDevice(ctx, id); err != nil {
		return err
	}
	s.emit("device.deleted", id)
	return nil
}

// ListDevices retrieves a paginated list of devices
func (s *HubService) ListDevices(ctx context.Context, offset, limit int) ([]*models.Device, error) {
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Devices.List(ctx, offset, limit)
}

// ListDevicesByOwner retrieves all devices belonging to an owner
func (s *HubService) ListDevicesByOwner(ctx context.Context, ownerID string) ([]*models.Device, error) {
	return s.Devices.ListByOwner(ctx, ownerID)
}

// DeviceStatuses returns an owner's devices together with their active
// sessions, the snapshot a viewer receives right after connecting.
func (s *HubService) DeviceStatuses(ctx context.Context, ownerID string) ([]models.DeviceStatus, error) {
	devices, err := s.Devices.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.DeviceStatus, 0, len(devices))
	for _, device := range devices {
		status := models.DeviceStatus{Device: device}
		session, err := s.Sessions.GetActiveByDevice(ctx, device.ID)
		if err == nil {
			status.ActiveSession = session
		} else if !errors.IsNotFound(err) {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// DeviceConnected binds a device's transport connection, marks it online
// and notifies the owner's viewer. The device must already be registered.
func (s *HubService) DeviceConnected(ctx context.Context, deviceID string, conn registry.Conn) (*models.Device, error) {
	device, err := s.Devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	s.Registry.BindDevice(deviceID, conn)

	connID := conn.ID()
	if err := s.Devices.SetConnection(ctx, deviceID, &connID, true, time.Now()); err != nil {
		return nil, err
	}

	nuts.L.Infof("[DeviceService] Device connected: %s (conn: %s)", deviceID, conn.ID())

	s.Dispatch.NotifyViewer(device.OwnerID, protocol.EventDeviceOnline, protocol.DevicePresence{
		DeviceID:   device.ID,
		DeviceName: device.Name,
	})
	s.emit("device.online", deviceID)
	return device, nil
}

// ViewerConnected binds a viewer's transport connection and sends it the
// current statuses of its devices.
func (s *HubService) ViewerConnected(ctx context.Context, ownerID string, conn registry.Conn) error {
	s.Registry.BindViewer(ownerID, conn)
	nuts.L.Infof("[DeviceService] Viewer connected: %s (conn: %s)", ownerID, conn.ID())

	statuses, err := s.DeviceStatuses(ctx, ownerID)
	if err != nil {
		return err
	}
	return conn.Send(protocol.EventDevicesStatus, protocol.DevicesStatus{Devices: statuses})
}

// ConnectionClosed unbinds everything attached to a closing connection.
// Pending device queries are failed immediately and owners are told
// their device went offline.
func (s *HubService) ConnectionClosed(ctx context.Context, conn registry.Conn) {
	deviceIDs, viewerIDs := s.Registry.Unbind(conn)

	for _, deviceID := range deviceIDs {
		s.Dispatch.FailPending(deviceID)

		if err := s.Devices.SetConnection(ctx, deviceID, nil, false, time.Now()); err != nil {
			nuts.L.Warnf("[DeviceService] Failed to mark device %s offline: %v", deviceID, err)
		}
		nuts.L.Infof("[DeviceService] Device disconnected: %s", deviceID)

		device, err := s.Devices.Get(ctx, deviceID)
		if err != nil {
			nuts.L.Warnf("[DeviceService] Failed to load device %s for offline notice: %v", deviceID, err)
			continue
		}
		s.Dispatch.NotifyViewer(device.OwnerID, protocol.EventDeviceOffline, protocol.DevicePresence{
			DeviceID:   device.ID,
			DeviceName: device.Name,
		})
		s.emit("device.offline", deviceID)
	}

	for _, ownerID := range viewerIDs {
		nuts.L.Infof("[DeviceService] Viewer disconnected: %s", ownerID)
	}
}

// CurrentWeight asks the device for an on-demand scale reading. Blocks
// until the device answers or the query timeout elapses.
func (s *HubService) CurrentWeight(ctx context.Context, deviceID string) (float64, error) {
	device, err := s.Devices.Get(ctx, deviceID)
	if err != nil {
		return 0, err
	}
	if !device.IsOnline {
		return 0, errors.NewUnreachableError("device is offline", nil)
	}

	payload, err := s.Dispatch.Query(ctx, deviceID, protocol.EventWeightGet, protocol.EventWeightGetResponse, nil)
	if err != nil {
		return 0, err
	}

	resp, ok := payload.(protocol.WeightResponse)
	if !ok {
		return 0, errors.NewInternalError("unexpected weight response payload", nil)
	}
	nuts.L.Infof("[DeviceService] Current weight for %s: %.1fg", deviceID, resp.Weight)
	return resp.Weight, nil
}

// TareScale asks the device to zero-calibrate its weight sensor and
// waits for the confirmation.
func (s *HubService) TareScale(ctx context.Context, deviceID string) (bool, error) {
	device, err := s.Devices.Get(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if !device.IsOnline {
		return false, errors.NewUnreachableError("device is offline", nil)
	}

	payload, err := s.Dispatch.Query(ctx, deviceID, protocol.EventWeightTare, protocol.EventWeightTareResponse, nil)
	if err != nil {
		return false, err
	}

	resp, ok := payload.(protocol.TareResponse)
	if !ok {
		return false, errors.NewInternalError("unexpected tare response payload", nil)
	}
	nuts.L.Infof("[DeviceService] Tare on %s: success=%v", deviceID, resp.Success)
	return resp.Success, nil
}

// StopMeasurement tells the device to stop its continuous weight
// sampling. Fire and forget, no confirmation expected.
func (s *HubService) StopMeasurement(ctx context.Context, deviceID string) error {
	device, err := s.Devices.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if !device.IsOnline {
		return errors.NewUnreachableError("device is offline", nil)
	}
	return s.Dispatch.NotifyDevice(device.ID, protocol.EventWeightMeasureStop, nil)
}

// GetUserRoles retrieves user roles from context
// This should be implemented based on your authentication system
func GetUserRoles(ctx context.Context) []string {
	if roles := ctx.Value("user_roles"); roles != nil {
		if r, ok := roles.([]string); ok {
			return r
		}
	}
	return []string{"guest"}
}
