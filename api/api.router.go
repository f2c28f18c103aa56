package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nestlink/bottlehub/api/middleware"
	"github.com/nestlink/bottlehub/api/resources"
	"github.com/nestlink/bottlehub/internal/hubservice"
)

type Router struct {
	router    *mux.Router
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc),
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)

	// Public routes. Indirection keeps handlers swappable after route
	// registration; the server injects these once it is constructed.
	api.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		r.resources.HealthCheck(w, req)
	}).Methods(http.MethodGet)
	api.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		r.resources.Metrics(w, req)
	}).Methods(http.MethodGet)

	// Devices
	devices := api.PathPrefix("/devices").Subrouter()
	devices.HandleFunc("", r.resources.Devices.ListDevices).Methods(http.MethodGet)
	devices.HandleFunc("", r.resources.Devices.CreateDevice).Methods(http.MethodPost)
	devices.HandleFunc("/{id}", r.resources.Devices.GetDevice).Methods(http.MethodGet)
	devices.HandleFunc("/{id}", r.resources.Devices.UpdateDevice).Methods(http.MethodPut)
	devices.HandleFunc("/{id}", r.resources.Devices.DeleteDevice).Methods(http.MethodDelete)
	devices.HandleFunc("/{id}/status", r.resources.Devices.GetDeviceStatus).Methods(http.MethodGet)
	devices.HandleFunc("/{id}/weight", r.resources.Devices.GetWeight).Methods(http.MethodGet)
	devices.HandleFunc("/{id}/tare", r.resources.Devices.TareScale).Methods(http.MethodPost)
	devices.HandleFunc("/{id}/measure/stop", r.resources.Devices.StopMeasurement).Methods(http.MethodPost)
	devices.HandleFunc("/{id}/feedings", r.resources.Feedings.ListDeviceRecords).Methods(http.MethodGet)

	// Feedings
	feedings := api.PathPrefix("/feedings").Subrouter()
	feedings.HandleFunc("", r.resources.Feedings.ListRecords).Methods(http.MethodGet)

	// Subjects
	subjects := api.PathPrefix("/subjects").Subrouter()
	subjects.HandleFunc("/{id}/stats/daily", r.resources.Feedings.GetDailyStats).Methods(http.MethodGet)
}

func (r *Router) SetHealthCheck(h http.HandlerFunc) {
	r.resources.SetHealthCheck(h)
}

func (r *Router) SetMetrics(h http.HandlerFunc) {
	r.resources.SetMetrics(h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
