// FilePath: api/resources/api.resource.devices.go
package resources

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/hubservice"
	"github.com/nestlink/bottlehub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceHandlers encapsulates the device-related HTTP handlers
type DeviceHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary Register a new device
// @Description Register a new feeding bottle device with the provided details
// @Tags devices
// @Accept json
// @Produce json
// @Param device body models.Device true "Device details"
// @Success 201 {object} models.Device
// @Failure 400 {object} errors.APIError
// @Router /devices [post]
func (h *DeviceHandlers) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var device models.Device
	requestID := nuts.NID("req", 12)

	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if err := h.hubservice.RegisterDevice(r.Context(), &device); err != nil {
		respondWithError(w, asAPIError(err, "failed to register device", requestID))
		return
	}

	respondWithJSON(w, http.StatusCreated, device)
}

// @Summary Get a device by ID
// @Description Get detailed information about a specific device
// @Tags devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [get]
func (h *DeviceHandlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	device, err := h.hubservice.GetDevice(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to get device", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, device)
}

// @Summary List devices
// @Description Get a paginated list of devices
// @Tags devices
// @Produce json
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Param owner query string false "Filter by owner ID"
// @Success 200 {array} models.Device
// @Router /devices [get]
func (h *DeviceHandlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	if owner := r.URL.Query().Get("owner"); owner != "" {
		devices, err := h.hubservice.ListDevicesByOwner(r.Context(), owner)
		if err != nil {
			respondWithError(w, asAPIError(err, "failed to list devices", requestID))
			return
		}
		respondWithJSON(w, http.StatusOK, devices)
		return
	}

	offset, limit := getPaginationParams(r)
	devices, err := h.hubservice.ListDevices(r.Context(), offset, limit)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to list devices", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, devices)
}

// @Summary Update a device
// @Description Update an existing device's details
// @Tags devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param device body models.Device true "Updated device details"
// @Success 200 {object} models.Device
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [put]
func (h *DeviceHandlers) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	device.ID = id
	if err := h.hubservice.UpdateDevice(r.Context(), &device); err != nil {
		respondWithError(w, asAPIError(err, "failed to update device", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, device)
}

// @Summary Delete a device
// @Description Delete a device and all its sessions and feeding records
// @Tags devices
// @Param id path string true "Device ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [delete]
func (h *DeviceHandlers) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	if err := h.hubservice.DeleteDevice(r.Context(), id); err != nil {
		respondWithError(w, asAPIError(err, "failed to delete device", requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary Get device status
// @Description Get a device together with its currently active feeding session
// @Tags devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} models.DeviceStatus
// @Failure 404 {object} errors.APIError
// @Router /devices/{id}/status [get]
func (h *DeviceHandlers) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	device, err := h.hubservice.GetDevice(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to get device", requestID))
		return
	}

	status := models.DeviceStatus{Device: device}
	session, err := h.hubservice.ActiveSession(r.Context(), id)
	if err == nil {
		status.ActiveSession = session
	} else if !errors.IsNotFound(err) {
		respondWithError(w, asAPIError(err, "failed to get active session", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

// @Summary Read the current scale weight
// @Description Ask the device hardware for an on-demand weight reading
// @Tags devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} map[string]float64
// @Failure 502 {object} errors.APIError
// @Failure 504 {object} errors.APIError
// @Router /devices/{id}/weight [get]
func (h *DeviceHandlers) GetWeight(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	weight, err := h.hubservice.CurrentWeight(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to read weight", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]float64{"weight": weight})
}

// @Summary Tare the device scale
// @Description Ask the device hardware to zero-calibrate its weight sensor
// @Tags devices
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} map[string]bool
// @Failure 502 {object} errors.APIError
// @Failure 504 {object} errors.APIError
// @Router /devices/{id}/tare [post]
func (h *DeviceHandlers) TareScale(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	success, err := h.hubservice.TareScale(r.Context(), id)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to tare scale", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": success})
}

// @Summary Stop continuous weight measurement
// @Description Tell the device to stop its continuous weight sampling
// @Tags devices
// @Param id path string true "Device ID"
// @Success 202 "Accepted"
// @Failure 502 {object} errors.APIError
// @Router /devices/{id}/measure/stop [post]
func (h *DeviceHandlers) StopMeasurement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	if err := h.hubservice.StopMeasurement(r.Context(), id); err != nil {
		respondWithError(w, asAPIError(err, "failed to stop measurement", requestID))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Helper functions

func getPaginationParams(r *http.Request) (offset, limit int) {
	query := r.URL.Query()
	offset, _ = strconv.Atoi(query.Get("offset"))
	limit, _ = strconv.Atoi(query.Get("limit"))

	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	return offset, limit
}

// asAPIError passes through typed service errors so precondition,
// unreachable and timeout failures keep their status codes, wrapping
// anything else as internal.
func asAPIError(err error, fallback, requestID string) *errors.APIError {
	if apiErr, ok := err.(*errors.APIError); ok {
		return apiErr.WithRequestID(requestID)
	}
	return errors.NewInternalError(fallback, err).WithRequestID(requestID)
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
