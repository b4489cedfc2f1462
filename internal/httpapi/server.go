package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"bidboard/internal/snapshot"
	"bidboard/internal/store"
	"bidboard/internal/upstream"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "stock-data-api"

// jsonAPI writes UTF-8 verbatim and orders map keys for stable output.
var jsonAPI = sonic.Config{SortMapKeys: true}.Froze()

// Options wires a Server to its collaborators. Snapshots is required; every
// other field may be left zero.
type Options struct {
	Snapshots    *snapshot.Service
	Index        *snapshot.Index
	Upstream     *upstream.Client
	Recorder     store.Recorder
	PasswordFile string
	StaticDir    string
	StaticIndex  string

	// RequestTimeout bounds API handlers; zero disables it.
	RequestTimeout time.Duration
}

// Server serves the dashboard HTTP API.
type Server struct {
	snapshots    *snapshot.Service
	index        *snapshot.Index
	upstream     *upstream.Client
	recorder     store.Recorder
	passwordFile string
	static       *spaHandler
	timeout      time.Duration
	log          *slog.Logger

	now func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = store.NewNoopRecorder()
	}
	s := &Server{
		snapshots:    opts.Snapshots,
		index:        opts.Index,
		upstream:     opts.Upstream,
		recorder:     rec,
		passwordFile: opts.PasswordFile,
		timeout:      opts.RequestTimeout,
		log:          log,
		now:          time.Now,
	}
	if opts.StaticDir != "" {
		s.static = newSPAHandler(opts.StaticDir, opts.StaticIndex, log)
	}
	return s
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/bidding", s.withTimeout(http.HandlerFunc(s.handleBidding)))
	mux.HandleFunc("GET /api/bidding/dates", s.handleDates)
	mux.Handle("GET /api/realtime_limit", s.withTimeout(http.HandlerFunc(s.handleRealtime)))
	mux.HandleFunc("GET /api/password", s.handlePassword)
	mux.HandleFunc("GET /api/password_hash", s.handlePasswordHash)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("/api/", s.handleAPINotFound)
	mux.HandleFunc("/", s.handleStatic)
}

// Handler returns an http.Handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	h = recoverMiddleware(s.log)(h)
	h = accessLogMiddleware(s.log)(h)
	h = requestIDMiddleware(h)
	return corsMiddleware(h)
}

// withTimeout bounds h with http.TimeoutHandler. The timeout body is JSON,
// so the content type is set up front; a handler that finishes in time
// overwrites it with its own.
func (s *Server) withTimeout(h http.Handler) http.Handler {
	if s.timeout <= 0 {
		return h
	}
	body, _ := jsonAPI.Marshal(ErrorResponse{Error: "request timed out"})
	th := http.TimeoutHandler(h, s.timeout, string(body))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		th.ServeHTTP(w, r)
	})
}

const jsonContentType = "application/json; charset=utf-8"

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(s.log, w, http.StatusOK, v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(s.log, w, status, ErrorResponse{Error: msg})
}

func writeJSONStatus(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		log.Error("encoding JSON response", "error", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	w.Write(data)
	w.Write([]byte{'\n'})
}

// statusFor maps a snapshot query error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, snapshot.ErrMissingParameter):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrNoDataForDate), errors.Is(err, snapshot.ErrNoDataInRange):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
