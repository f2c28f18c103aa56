package hubservice

import (
	"github.com/nestlink/bottlehub/internal/cleanup"
	"github.com/nestlink/bottlehub/internal/dispatcher"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/registry"
	"github.com/nestlink/bottlehub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// HubService contains all repositories and service-wide dependencies.
// The connection registry and dispatcher are injected rather than held
// as package globals so independent hub instances can coexist in tests.
type HubService struct {
	Devices  repository.DeviceRepository
	Sessions repository.SessionRepository
	Records  repository.RecordRepository
	Registry *registry.Registry
	Dispatch *dispatcher.Dispatcher
	Cleanup  *cleanup.CleanupService
	events   *nuts.EventEmitter
}

// New creates a new HubService instance
func New(
	devices repository.DeviceRepository,
	sessions repository.SessionRepository,
	records repository.RecordRepository,
	reg *registry.Registry,
	dispatch *dispatcher.Dispatcher,
) *HubService {
	svc := &HubService{
		Devices:  devices,
		Sessions: sessions,
		Records:  records,
		Registry: reg,
		Dispatch: dispatch,
		events:   nuts.NewEventEmitter(),
	}
	svc.Cleanup = cleanup.New(devices, sessions, records)
	return svc
}

// Validate checks if all required dependencies are initialized
func (s *HubService) Validate() error {
	if s.Devices == nil {
		return ErrMissingRepository("devices")
	}
	if s.Sessions == nil {
		return ErrMissingRepository("sessions")
	}
	if s.Records == nil {
		return ErrMissingRepository("records")
	}
	if s.Registry == nil {
		return ErrMissingRepository("registry")
	}
	if s.Dispatch == nil {
		return ErrMissingRepository("dispatcher")
	}
	return nil
}

// OnEvent registers a callback for hub lifecycle events
// (session.started, session.completed, device.online, device.offline,
// device.deleted).
func (s *HubService) OnEvent(event string, handler func(id string)) {
	s.events.On(event, "hub_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}

func (s *HubService) emit(event, id string) {
	s.events.Emit(event, id)
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing dependency: "+name, nil)
}
