package advice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/profile"
)

func TestProfileHandler(t *testing.T) {
	mux := NewRouter(Routes{Profiles: profile.NewMemoryStore()})
	do := func(method, body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(method, "/api/clients/car-1/profile", strings.NewReader(body)))
		return rr
	}

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "").Code)

	rr := do(http.MethodPut, `{"battery_kwh":76.2,"charging_kw":11,"departure_clock":"8:00 AM"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(http.MethodGet, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var p profile.Profile
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "car-1", p.ClientID)
	assert.Equal(t, 76.2, p.BatteryKWh)
	assert.Equal(t, "8:00 AM", p.DepartureClock)
	assert.False(t, p.UpdatedAt.IsZero())

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, `{"battery_kwh":0,"charging_kw":11}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, `{"battery_kwh":60,"charging_kw":11,"departure_clock":"later"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, `{"battery":60}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(http.MethodDelete, "").Code)
}
