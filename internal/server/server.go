package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stoneage-light/stoneage/pkg/storage"
)

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stoneage",
	Subsystem: "server",
	Name:      "requests_total",
	Help:      "HTTP requests served, by status code and method.",
}, []string{"code", "method"})

// Server exposes the dataset directory read-only, the change history when a
// database is attached, and process metrics.
type Server struct {
	Dir      string
	DB       *storage.DB // optional
	Username string
	Password string
	Log      logrus.FieldLogger
}

func New(dir string, db *storage.DB, user, pass string, log logrus.FieldLogger) *Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Server{
		Dir:      dir,
		DB:       db,
		Username: user,
		Password: pass,
		Log:      log,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/datasets", s.basicAuth(s.handleDatasets))
	mux.HandleFunc("GET /api/datasets/{name}", s.basicAuth(s.handleDataset))
	mux.HandleFunc("GET /api/changes", s.basicAuth(s.handleChanges))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.Handle("GET /metrics", promhttp.Handler())

	return promhttp.InstrumentHandlerCounter(requests, mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Log.Infof("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
