// FilePath: api/resources/api.resource.feedings.go
package resources

import (
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/nestlink/bottlehub/internal/errors"
	"github.com/nestlink/bottlehub/internal/hubservice"
	"github.com/nestlink/bottlehub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// FeedingHandlers encapsulates the feeding history HTTP handlers
type FeedingHandlers struct {
	hubservice *hubservice.HubService
	decoder    *schema.Decoder
}

func newFeedingHandlers(svc *hubservice.HubService) *FeedingHandlers {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	decoder.RegisterConverter(time.Time{}, convertTime)
	return &FeedingHandlers{hubservice: svc, decoder: decoder}
}

// @Summary List feeding records
// @Description Get feeding records filtered by device, subject and time range
// @Tags feedings
// @Produce json
// @Param device_id query string false "Filter by device ID"
// @Param subject_id query string false "Filter by subject ID"
// @Param from query string false "Lower bound (RFC3339)"
// @Param to query string false "Upper bound (RFC3339)"
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} models.FeedingRecord
// @Failure 400 {object} errors.APIError
// @Router /feedings [get]
func (h *FeedingHandlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.RecordFilters
	if err := h.decoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid filter parameters", err).WithRequestID(requestID))
		return
	}

	records, err := h.hubservice.Records.List(r.Context(), filters)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to list feeding records", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

// @Summary List a device's feeding records
// @Description Get the most recent feeding records for one device
// @Tags feedings
// @Produce json
// @Param id path string true "Device ID"
// @Param limit query int false "Maximum number of records"
// @Success 200 {array} models.FeedingRecord
// @Router /devices/{id}/feedings [get]
func (h *FeedingHandlers) ListDeviceRecords(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)
	_, limit := getPaginationParams(r)

	records, err := h.hubservice.Records.ListByDevice(r.Context(), id, limit)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to list device feedings", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}

// @Summary Get a subject's daily feeding statistics
// @Description Get the aggregated feeding statistics for a subject on one calendar day
// @Tags feedings
// @Produce json
// @Param id path string true "Subject ID"
// @Param day query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {object} models.DailyStat
// @Failure 404 {object} errors.APIError
// @Router /subjects/{id}/stats/daily [get]
func (h *FeedingHandlers) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	subjectID := vars["id"]
	requestID := nuts.NID("req", 12)

	day := time.Now()
	if raw := r.URL.Query().Get("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondWithError(w, errors.NewValidationError("invalid day, expected YYYY-MM-DD", err).WithRequestID(requestID))
			return
		}
		day = parsed
	}

	stat, err := h.hubservice.Records.GetDailyStat(r.Context(), subjectID, day)
	if err != nil {
		respondWithError(w, asAPIError(err, "failed to get daily stats", requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, stat)
}

// convertTime parses RFC3339 timestamps from query strings for
// gorilla/schema.
func convertTime(value string) reflect.Value {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return reflect.Value{}
	}
	return reflect.ValueOf(t)
}
