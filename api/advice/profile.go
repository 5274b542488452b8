package advice

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/profile"
)

// NewProfileHandler serves GET and PUT /api/clients/{client}/profile. A PUT
// body carries battery_kwh, charging_kw and an optional departure_clock.
func NewProfileHandler(store profile.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := r.PathValue("client")
		if client == "" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			p, err := store.Get(r.Context(), client)
			if errors.Is(err, profile.ErrNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, p)
		case http.MethodPut:
			var p profile.Profile
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&p); err != nil {
				http.Error(w, "decode profile: "+err.Error(), http.StatusBadRequest)
				return
			}
			p.ClientID = client
			p.UpdatedAt = time.Now().UTC()
			if err := p.Validate(); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, model.ErrInvalidJob) {
					status = http.StatusBadRequest
				}
				http.Error(w, err.Error(), status)
				return
			}
			if err := store.Put(r.Context(), p); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, p)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
