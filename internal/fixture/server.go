// Package fixture serves a stand-in for the community discovery service and
// the analytics API. It backs the package tests and `usagemetrics fixture
// serve` for local smoke runs.
package fixture

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"
)

// DiscoveryPath is where the fixture serves the community mapping
const DiscoveryPath = "/config/values"

// Server emulates discovery and analytics endpoints
type Server struct {
	communities map[string]string
	latency     time.Duration
	logger      *slog.Logger

	mu              sync.Mutex
	discoveryStatus int
	failures        map[string]int
	malformed       map[string]bool
	hits            map[string]int
	inFlight        int
	peak            int
	requests        int
}

// Option configures a Server
type Option func(*Server)

// WithLatency delays every analytics response
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithFailure answers requests for key with status. key is "community" for
// billing or "community/metric" for metric requests.
func WithFailure(key string, status int) Option {
	return func(s *Server) {
		s.failures[key] = status
	}
}

// WithMalformed answers requests for key with a body that is not JSON
func WithMalformed(key string) Option {
	return func(s *Server) {
		s.malformed[key] = true
	}
}

// WithDiscoveryStatus makes the discovery endpoint answer with status
func WithDiscoveryStatus(status int) Option {
	return func(s *Server) {
		s.discoveryStatus = status
	}
}

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a fixture serving the given community -> datacenter mapping
func New(communities map[string]string, opts ...Option) *Server {
	s := &Server{
		communities:     communities,
		logger:          slog.Default(),
		discoveryStatus: http.StatusOK,
		failures:        make(map[string]int),
		malformed:       make(map[string]bool),
		hits:            make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get(DiscoveryPath, s.handleDiscovery)

	r.Route("/{env}/{column}/{community}/analytics", func(r chi.Router) {
		r.Use(s.trackInFlight)
		r.Get("/billing-metrics-usage", s.handleBilling)
		r.Post("/", s.handleMetric)
	})

	return r
}

// Endpoints returns a policy table pointing every environment and
// datacenter column at the fixture running on baseURL
func Endpoints(baseURL string) target.Endpoints {
	endpoints := make(target.Endpoints)
	for _, env := range []target.Environment{target.EnvStage, target.EnvProd} {
		endpoints[env] = map[string]string{
			target.ColumnSJ:      baseURL + "/" + string(env) + "/" + target.ColumnSJ,
			target.ColumnDefault: baseURL + "/" + string(env) + "/" + target.ColumnDefault,
		}
	}
	return endpoints
}

// DiscoveryURL returns the discovery endpoint of the fixture on baseURL
func DiscoveryURL(baseURL string) string {
	return baseURL + DiscoveryPath + "?key=community"
}

// ConfigYAML renders a usagemetrics config file pointing at the fixture
// running on baseURL
func ConfigYAML(baseURL string) ([]byte, error) {
	endpoints := make(map[string]map[string]string)
	for env, columns := range Endpoints(baseURL) {
		endpoints[string(env)] = columns
	}

	return yaml.Marshal(map[string]interface{}{
		"discoveryURL": DiscoveryURL(baseURL),
		"endpoints":    endpoints,
	})
}

// Hits returns how many analytics requests were served for key
func (s *Server) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// Requests returns the total number of analytics requests served
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// PeakInFlight returns the highest number of concurrent analytics requests
func (s *Server) PeakInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func (s *Server) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.inFlight++
		s.requests++
		if s.inFlight > s.peak {
			s.peak = s.inFlight
		}
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		}()

		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.discoveryStatus
	s.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}

	writeJSON(w, http.StatusOK, s.communities)
}

func (s *Server) handleBilling(w http.ResponseWriter, r *http.Request) {
	community := chi.URLParam(r, "community")
	if s.reject(w, community) {
		return
	}

	seed := seedFor(community)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"serverRequests":   seed % 100000,
		"applicationCalls": seed % 50000,
		"pageViews":        seed % 250000,
		"environment":      chi.URLParam(r, "env"),
	})
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	community := chi.URLParam(r, "community")

	var payload struct {
		StartTime  int64    `json:"startTime"`
		EndTime    int64    `json:"endTime"`
		Metric     string   `json:"metric"`
		Dimensions []string `json:"dimensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Metric == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid metric request"})
		return
	}

	if s.reject(w, community+"/"+payload.Metric) {
		return
	}

	const day = int64(24 * time.Hour / time.Millisecond)
	series := make([]map[string]interface{}, 0)
	for ts := payload.StartTime; ts < payload.EndTime && len(series) < 366; ts += day {
		series = append(series, map[string]interface{}{
			"day":   ts,
			"value": seedFor(community+payload.Metric) % 1000,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"startTime":  payload.StartTime,
		"endTime":    payload.EndTime,
		"dimensions": payload.Dimensions,
		"series":     series,
	})
}

// reject answers configured failures for key and reports whether it did
func (s *Server) reject(w http.ResponseWriter, key string) bool {
	s.mu.Lock()
	s.hits[key]++
	status, fail := s.failures[key]
	malformed := s.malformed[key]
	s.mu.Unlock()

	switch {
	case fail:
		s.logger.Debug("fixture failing request", "key", key, "status", status)
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return true
	case malformed:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"truncated":`))
		return true
	}
	return false
}

func seedFor(s string) int64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int64(h.Sum32())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
