// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nestlink/bottlehub/internal/database"
	"github.com/nestlink/bottlehub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// DeviceRepository defines the interface for device data operations
type DeviceRepository interface {
	database.Repository
	Create(ctx context.Context, device *models.Device) error
	Get(ctx context.Context, id string) (*models.Device, error)
	Update(ctx context.Context, device *models.Device) error
	Delete(ctx context.Context, id string) error
	DeleteTx(ctx context.Context, id string, tx database.Transaction) error
	List(ctx context.Context, offset, limit int) ([]*models.Device, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Device, error)
	SetConnection(ctx context.Context, id string, connectionID *string, online bool, lastSeen time.Time) error
}

// FinalizeParams carries the values computed by the state machine into the
// finalize-and-aggregate transaction.
type FinalizeParams struct {
	SessionID      string
	RecordID       string
	FinalWeight    float64
	AmountConsumed float64
	Duration       int64
	EndedAt        time.Time
}

// SessionRepository defines the interface for feeding session operations.
// Each transition update is guarded by the expected source status so a
// racing duplicate event cannot apply the same transition twice.
type SessionRepository interface {
	database.Repository
	Create(ctx context.Context, session *models.FeedingSession) error
	Get(ctx context.Context, id string) (*models.FeedingSession, error)
	// GetActiveByDevice returns the most recent non-terminal session for a
	// device, or a NotFound error when the device has no active session.
	GetActiveByDevice(ctx context.Context, deviceID string) (*models.FeedingSession, error)
	MarkBottlePlaced(ctx context.Context, id string, netWeight, temperature float64, safe bool, at time.Time) error
	MarkInProgress(ctx context.Context, id string, at time.Time) error
	UpdateTemperature(ctx context.Context, id string, temperature float64, safe bool) error
	// Finalize runs the single multi-statement transaction of the hub:
	// terminal session update, feeding record insert, daily stat recompute.
	Finalize(ctx context.Context, params FinalizeParams) (*models.FeedingRecord, error)
	DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error
}

// RecordRepository defines read access to feeding records and aggregates
type RecordRepository interface {
	database.Repository
	List(ctx context.Context, filters models.RecordFilters) ([]*models.FeedingRecord, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*models.FeedingRecord, error)
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*models.FeedingRecord, error)
	GetDailyStat(ctx context.Context, subjectID string, day time.Time) (*models.DailyStat, error)
	DeleteByDevice(ctx context.Context, deviceID string, tx database.Transaction) error
}
