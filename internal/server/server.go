// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/nestlink/bottlehub/api"
	"github.com/nestlink/bottlehub/internal/config"
	"github.com/nestlink/bottlehub/internal/database"
	"github.com/nestlink/bottlehub/internal/dispatcher"
	"github.com/nestlink/bottlehub/internal/hubservice"
	"github.com/nestlink/bottlehub/internal/monitoring"
	"github.com/nestlink/bottlehub/internal/registry"
	"github.com/nestlink/bottlehub/internal/repository/postgres"
	"github.com/nestlink/bottlehub/internal/socket"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	router     *mux.Router
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
	monitoring *monitoring.Service
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		router: router,
		config: cfg,
		srv:    srv,
	}
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Initialize services
	s.hubservice = initializeHubService(s.config)
	s.monitoring = monitoring.NewService(monitoring.Config{
		PrometheusEndpoint: s.config.Monitoring.PrometheusEndpoint,
		LokiEndpoint:       s.config.Monitoring.LokiEndpoint,
	})

	// Set up hub event handlers
	s.setupEventHandlers()

	// Setup routes
	s.setupRoutes()

	// Start server
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// setupRoutes configures the websocket endpoint and the REST API
func (s *Server) setupRoutes() {
	// Realtime hub endpoint for devices and viewers
	ws := socket.NewHandler(s.hubservice, s.config.Hub)
	s.router.Handle("/ws", ws)

	// REST API with CORS and access logging
	apiRouter := api.NewRouter(s.hubservice)
	apiRouter.SetHealthCheck(s.handleHealth())
	apiRouter.SetMetrics(s.handleMetrics())

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.config.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
	)
	s.router.PathPrefix("/api/").Handler(
		handlers.CombinedLoggingHandler(os.Stdout, cors(apiRouter)))
}

// handleHealth returns a simple health check handler
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","version":"` + nuts.GetVersion() + `"}`))
	}
}

// handleMetrics reports hub connection gauges
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"devices_connected":%d,"viewers_connected":%d}`,
			s.hubservice.Registry.DeviceCount(), s.hubservice.Registry.ViewerCount())
	}
}

func (s *Server) setupEventHandlers() {
	// Session lifecycle events
	s.hubservice.OnEvent("session.started", func(id string) {
		s.monitoring.RecordEvent("session_started", map[string]string{
			"session_id": id,
		})
	})
	s.hubservice.OnEvent("session.completed", func(id string) {
		s.monitoring.RecordEvent("session_completed", map[string]string{
			"session_id": id,
		})
	})

	// Device presence events
	s.hubservice.OnEvent("device.online", func(id string) {
		s.monitoring.RecordEvent("device_online", map[string]string{
			"device_id": id,
		})
	})
	s.hubservice.OnEvent("device.offline", func(id string) {
		s.monitoring.RecordEvent("device_offline", map[string]string{
			"device_id": id,
		})
	})

	// Cleanup events
	s.hubservice.Cleanup.OnCleanup("device.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] Device %s and all associated data deleted", id)
		s.monitoring.RecordEvent("device_deletion", map[string]string{
			"device_id": id,
		})
	})
	s.hubservice.Cleanup.OnCleanup("sessions.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] All sessions for device %s deleted", id)
		s.monitoring.RecordEvent("sessions_deletion", map[string]string{
			"device_id": id,
		})
	})
	s.hubservice.Cleanup.OnCleanup("records.deleted", func(id string) {
		nuts.L.Infof("[Cleanup] All feeding records for device %s deleted", id)
		s.monitoring.RecordEvent("records_deletion", map[string]string{
			"device_id": id,
		})
	})
}

// initializeHubService creates and configures the hub service
func initializeHubService(cfg *config.Config) *hubservice.HubService {
	// Initialize database connection
	appDB := initAppDB(cfg.Database.AppDB)

	// Initialize repositories
	devices := postgres.NewDeviceRepository(appDB)
	sessions := postgres.NewSessionRepository(appDB)
	records := postgres.NewRecordRepository(appDB)

	// Realtime plumbing
	reg := registry.New()
	dispatch := dispatcher.New(reg, cfg.Hub.DeviceQueryTimeout, cfg.Hub.BroadcastToAllViewers)

	// Create and return hub service
	return hubservice.New(devices, sessions, records, reg, dispatch)
}

func initAppDB(cfg config.PostgresConfig) database.DB {
	wrappedDB, err := database.NewPostgresDB(cfg)
	if err != nil {
		nuts.L.Fatalf("[Server] Failed to connect to AppDB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wrappedDB.Ping(ctx); err != nil {
		nuts.L.Fatalf("[Server] Failed to ping database: %v", err)
	}
	return wrappedDB
}
