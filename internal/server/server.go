// Package server exposes the demo ledger over the demand/project REST
// contract the terminal client consumes. One Server speaks for one node
// identity; several may share a database.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/party"
	"github.com/jask/demandboard/internal/service"
)

// Server routes requests for one node.
type Server struct {
	ledger   *service.Ledger
	me       party.Name
	log      *logrus.Entry
	requests *prometheus.CounterVec
	gatherer prometheus.Gatherer
	router   *mux.Router
}

type Option func(*Server)

func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) { s.log = l.WithField("component", "server") }
}

// WithRegistry registers the request counter on reg and serves reg at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		reg.MustRegister(s.requests)
		s.gatherer = reg
	}
}

// New builds the router for identity. Without WithRegistry the counter is
// kept private and /metrics serves the default gatherer.
func New(ledger *service.Ledger, identity string, opts ...Option) *Server {
	s := &Server{
		ledger: ledger,
		me:     party.Parse(identity),
		log:    logrus.NewEntry(logrus.StandardLogger()).WithField("component", "server"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demandboard",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route template and status code.",
		}, []string{"route", "code"}),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// Identity is the node this server answers for.
func (s *Server) Identity() string { return s.me.Raw }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.observe)

	demand := r.PathPrefix("/api/demand").Subrouter()
	demand.HandleFunc("/", s.listDemands).Methods(http.MethodGet)
	demand.HandleFunc("", s.listDemands).Methods(http.MethodGet)
	demand.HandleFunc("/me", s.whoami).Methods(http.MethodGet)
	demand.HandleFunc("/peers", s.peers).Methods(http.MethodGet)
	demand.HandleFunc("/platformLeads", s.platformLeads).Methods(http.MethodGet)
	demand.HandleFunc("/create-demand", s.createDemand).Methods(http.MethodPost)
	demand.HandleFunc("/update-demand", s.updateDemand).Methods(http.MethodPost)

	project := r.PathPrefix("/api/project").Subrouter()
	project.HandleFunc("/", s.listProjects).Methods(http.MethodGet)
	project.HandleFunc("", s.listProjects).Methods(http.MethodGet)
	project.HandleFunc("/me", s.whoami).Methods(http.MethodGet)
	project.HandleFunc("/allocations", s.listAllocations).Methods(http.MethodGet)
	project.HandleFunc("/deliveryTeams", s.deliveryTeams).Methods(http.MethodGet)
	project.HandleFunc("/code/{projectCode}", s.projectByCode).Methods(http.MethodGet)
	project.HandleFunc("/allocate-delivery-team", s.allocateDeliveryTeam).Methods(http.MethodPost)
	project.HandleFunc("/update-allocation", s.updateAllocation).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router = r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(began).String(),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = w.Write([]byte(msg))
}

// statusFor maps ledger errors onto HTTP. Rule violations are the caller's
// problem and carry their own message; anything else is hidden.
func statusFor(err error) (int, string) {
	var re *service.RuleError
	if errors.As(err, &re) {
		return http.StatusBadRequest, re.Msg
	}
	return http.StatusInternalServerError, "Server error"
}

func (s *Server) fail(r *http.Request, err error) (int, string) {
	status, msg := statusFor(err)
	entry := s.log.WithFields(logrus.Fields{"path": r.URL.Path}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	return status, msg
}
