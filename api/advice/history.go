package advice

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/smartcharge/core/advicelog"
)

// NewHistoryHandler exposes served advice via GET /api/advice/history.
// Requests must carry "Authorization: Bearer <token>" when token is set.
// Supported filters: from, to (RFC3339), client_id, outcome and limit.
func NewHistoryHandler(store advicelog.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		params := r.URL.Query()
		q := advicelog.Query{ClientID: params.Get("client_id"), Outcome: params.Get("outcome")}
		var err error
		if q.Start, err = parseTime(params.Get("from")); err != nil {
			http.Error(w, "invalid from: "+err.Error(), http.StatusBadRequest)
			return
		}
		if q.End, err = parseTime(params.Get("to")); err != nil {
			http.Error(w, "invalid to: "+err.Error(), http.StatusBadRequest)
			return
		}
		if s := params.Get("limit"); s != "" {
			if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []advicelog.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
