package advice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics/eco"
	"github.com/kilianp07/smartcharge/core/profile"
)

// Routes lists the collaborators mounted by NewRouter. Nil fields leave
// their endpoints unregistered.
type Routes struct {
	Advisor Advisor
	History advicelog.Store
	// Token protects the history endpoint when set.
	Token   string
	Savings eco.Store
	// Profiles stores the vehicle of each client.
	Profiles profile.Store
	// State reports the serving model for /healthz.
	State   func() forecast.State
	Metrics http.Handler
}

// NewRouter builds the service mux.
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()
	if rt.Advisor != nil {
		mux.Handle("/api/advice", NewAdviceHandler(rt.Advisor))
	}
	if rt.History != nil {
		mux.Handle("/api/advice/history", NewHistoryHandler(rt.History, rt.Token))
	}
	if rt.Savings != nil {
		mux.Handle("/api/savings/{client}", NewSavingsHandler(rt.Savings))
	}
	if rt.Profiles != nil {
		mux.Handle("/api/clients/{client}/profile", NewProfileHandler(rt.Profiles))
	}
	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}
	mux.Handle("/healthz", NewHealthHandler(rt.State))
	return mux
}

// NewHealthHandler reports 200 once a model is serving and 503 before.
func NewHealthHandler(state func() forecast.State) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := forecast.StateUntrained
		if state != nil {
			s = state()
		}
		status := http.StatusOK
		if s == forecast.StateUntrained {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"model": s.String()})
	})
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	log = logger.OrNop(log)
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("http server shutdown: %v", err)
		}
	}()
	log.Infof("http server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
