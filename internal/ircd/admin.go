package ircd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Snapshot is a read-only copy of the server's vital statistics, handed
// across snapshotCh so the admin HTTP goroutine never reaches into
// Server's maps directly.
type Snapshot struct {
	Clients    int       `json:"clients"`
	Channels   int       `json:"channels"`
	LaunchTime time.Time `json:"launch_time"`
}

func (s *Server) snapshot() Snapshot {
	return Snapshot{
		Clients:    len(s.clients),
		Channels:   len(s.channels),
		LaunchTime: s.launchTime,
	}
}

// Snapshot requests a consistent view of server state from the event
// loop goroutine. It blocks until Run's select picks it up, so it must
// not be called from that same goroutine.
func (s *Server) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case s.snapshotCh <- reply:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// EnableMetrics wires a prometheus registry into the server's counters.
// Call it before Run.
func (s *Server) EnableMetrics(reg prometheus.Registerer) {
	s.metrics = newServerMetrics(reg)
}

// AdminServer is a small HTTP surface for operational visibility: a
// health check, a JSON status snapshot, and prometheus metrics. It runs
// on its own goroutine and only ever talks to the core server through
// Server.Snapshot.
type AdminServer struct {
	srv *http.Server
	log *logrus.Logger
}

// NewAdminServer builds the admin HTTP surface bound to addr (e.g.
// ":8080"). reg may be nil, in which case /metrics serves the default
// global registry.
func NewAdminServer(addr string, ircd *Server, reg *prometheus.Registry, log *logrus.Logger) *AdminServer {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		snap, err := ircd.Snapshot(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}).Methods(http.MethodGet)

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	return &AdminServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: r,
		},
		log: log,
	}
}

// ListenAndServe runs the admin HTTP server until ctx is cancelled.
func (a *AdminServer) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
