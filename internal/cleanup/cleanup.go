package cleanup

import (
	"context"
	"fmt"

	"github.com/nestlink/bottlehub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// CleanupService coordinates deletion of hierarchical data
type CleanupService struct {
	devices  repository.DeviceRepository
	sessions repository.SessionRepository
	records  repository.RecordRepository
	events   *nuts.EventEmitter
}

// New creates a new CleanupService
func New(
	devices repository.DeviceRepository,
	sessions repository.SessionRepository,
	records repository.RecordRepository,
) *CleanupService {
	return &CleanupService{
		devices:  devices,
		sessions: sessions,
		records:  records,
		events:   nuts.NewEventEmitter(),
	}
}

// DeleteDevice deletes a device and all its associated data
func (s *CleanupService) DeleteDevice(ctx context.Context, deviceID string) error {
	// Start transaction
	tx, err := s.devices.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	// Delete feeding records first, they reference sessions
	if err := s.records.DeleteByDevice(ctx, deviceID, tx); err != nil {
		return fmt.Errorf("failed to delete feeding records: %w", err)
	}
	s.events.Emit("records.deleted", deviceID)

	// Delete all sessions
	if err := s.sessions.DeleteByDevice(ctx, deviceID, tx); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	s.events.Emit("sessions.deleted", deviceID)

	// Finally, delete the device
	if err := s.devices.DeleteTx(ctx, deviceID, tx); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Emit event after successful deletion
	s.events.Emit("device.deleted", deviceID)
	nuts.L.Infof("[CleanupService] Deleted device %s with all sessions and records", deviceID)
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
