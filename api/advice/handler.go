// Package advice exposes the charge advice service over HTTP.
package advice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

// maxBody bounds request payloads; a full request is well under 4 KiB.
const maxBody = 64 << 10

// Advisor answers advice requests.
type Advisor interface {
	Advise(ctx context.Context, transport string, req coreadvice.Request) (coreadvice.Response, error)
}

// StatusOf maps an advice error to an HTTP status code.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, model.ErrShapeMismatch), errors.Is(err, model.ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, forecast.ErrModelUninitialized),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewAdviceHandler serves POST /api/advice.
func NewAdviceHandler(a Advisor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req coreadvice.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, coreadvice.ErrorBody{Outcome: metrics.OutcomeInvalid, Error: "decode request: " + err.Error()})
			return
		}
		if req.ClientID == "" {
			req.ClientID = r.Header.Get("X-Client-ID")
		}
		resp, err := a.Advise(r.Context(), coreadvice.TransportHTTP, req)
		if err != nil {
			writeJSON(w, StatusOf(err), coreadvice.NewErrorBody(resp.RequestID, err))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
