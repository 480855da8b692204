// Package server exposes diskuto's backend over the REST API spec.md §6
// defines, following synnergy-network/walletserver's
// config/controllers/services/routes layering: App plays the role
// walletserver's services.WalletService played (holding the thing handlers
// act on), and handlers play the role its controllers played.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"diskuto/backend"
	"diskuto/internal/logging"
	"diskuto/pkg/config"
)

var log = logging.For("server")

// App holds everything a handler needs: the connection factory (one
// Backend checked out per request) and the resolved configuration.
type App struct {
	Factory backend.Factory
	Cfg     *config.Config
}

// NewApp builds an App; Router and Serve construct the router and
// listeners from it.
func NewApp(factory backend.Factory, cfg *config.Config) *App {
	return &App{Factory: factory, Cfg: cfg}
}

// Router builds the full mux.Router: middleware, API routes, legacy
// compatibility routes, and the /healthz and /metrics endpoints.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware, corsMiddleware)
	Register(r, a)
	// Matching OPTIONS here lets corsMiddleware answer preflight requests;
	// without it mux replies 405 before any middleware runs.
	r.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}

// Serve listens on every configured bind address until ctx is canceled,
// supporting the supplemented --bind (repeatable) flag from spec.md's
// expanded CLI surface.
func (a *App) Serve(ctx context.Context) error {
	router := a.Router()
	binds := a.Cfg.Server.Binds
	if len(binds) == 0 {
		binds = []string{"127.0.0.1:8080"}
	}

	servers := make([]*http.Server, 0, len(binds))
	errs := make(chan error, len(binds))
	for _, addr := range binds {
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, srv)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.WithField("addr", addr).Info("listening")
		go func(srv *http.Server, ln net.Listener) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}(srv, ln)
	}

	select {
	case <-ctx.Done():
	case err := <-errs:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
