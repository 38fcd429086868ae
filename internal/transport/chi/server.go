package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/facetdex/internal/db"
	"github.com/kailas-cloud/facetdex/internal/domain"
	"github.com/kailas-cloud/facetdex/internal/domain/shape"
	logpkg "github.com/kailas-cloud/facetdex/internal/logger"
	healthuc "github.com/kailas-cloud/facetdex/internal/usecase/health"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest      = "bad_request"
	CodeUnknownQuery    = "unknown_query"
	CodeUnknownFacetSet = "unknown_facet_set"
	CodeInvalidArgument = "invalid_argument"
	CodeInvalidShape    = "invalid_shape"
	CodeMissingField    = "missing_field"
	CodeBackendError    = "backend_error"
	CodeInternalError   = "internal_error"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// QueryRequest is the body of POST /v1/queries/{name}.
type QueryRequest struct {
	Args  map[string]any `json:"args"`
	Shape shape.Field    `json:"shape"`
}

// QueryResponse wraps a query result.
type QueryResponse struct {
	Data any `json:"data"`
}

// FacetRequest is the body of POST /v1/facets/{set}.
type FacetRequest struct {
	Args map[string]any `json:"args"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the query and facet API.
type Server struct {
	queries       QueryRunner
	facets        FacetProvider
	health        *healthuc.Service
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(queries QueryRunner, facets FacetProvider, health *healthuc.Service) *Server {
	s := &Server{
		queries: queries,
		facets:  facets,
		health:  health,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownQuery, http.StatusNotFound, CodeUnknownQuery),
		sentinelHandler(domain.ErrUnknownFacetSet, http.StatusNotFound, CodeUnknownFacetSet),
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidArgument),
		sentinelHandler(domain.ErrInvalidShape, http.StatusBadRequest, CodeInvalidShape),
		sentinelHandler(domain.ErrMissingField, http.StatusBadGateway, CodeMissingField),
		sentinelHandler(db.ErrIndexNotFound, http.StatusBadGateway, CodeBackendError),
		sentinelHandler(db.ErrBadQuery, http.StatusBadGateway, CodeBackendError),
		sentinelHandler(db.ErrBackendStatus, http.StatusBadGateway, CodeBackendError),
		sentinelHandler(db.ErrAggregationType, http.StatusBadGateway, CodeBackendError),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chirouter.Router) {
		r.Get("/queries", s.ListQueries)
		r.Post("/queries/{name}", s.RunQuery)
		r.Get("/facets", s.ListFacetSets)
		r.Post("/facets/{set}", s.FacetBundle)
		r.Delete("/facets/{set}/cache", s.InvalidateFacets)
	})
}

// RunQuery handles POST /v1/queries/{name}.
func (s *Server) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name := chirouter.URLParam(r, "name")
	r = r.WithContext(logpkg.WithFields(r.Context(), zap.String("query", name)))
	data, err := s.queries.Run(r.Context(), name, req.Args, req.Shape)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: data})
}

// ListQueries handles GET /v1/queries.
func (s *Server) ListQueries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"items": s.queries.Names()})
}

// ListFacetSets handles GET /v1/facets.
func (s *Server) ListFacetSets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"items": s.facets.Sets()})
}

// FacetBundle handles POST /v1/facets/{set}.
func (s *Server) FacetBundle(w http.ResponseWriter, r *http.Request) {
	var req FacetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	set := chirouter.URLParam(r, "set")
	r = r.WithContext(logpkg.WithFields(r.Context(), zap.String("facet_set", set)))
	bundle, err := s.facets.Bundle(r.Context(), set, req.Args)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// InvalidateFacets handles DELETE /v1/facets/{set}/cache.
func (s *Server) InvalidateFacets(w http.ResponseWriter, r *http.Request) {
	set := chirouter.URLParam(r, "set")
	r = r.WithContext(logpkg.WithFields(r.Context(), zap.String("facet_set", set)))
	n, err := s.facets.Invalidate(r.Context(), set)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// decodeBody reads an optional JSON body. An empty body leaves v zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeBadRequest,
			Message: "Invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel message and the offending field, never the wrapped chain.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: sentinel.Error()}
		var fe *domain.FieldError
		if errors.As(err, &fe) {
			resp.Field = fe.Field
		}
		writeError(w, status, resp)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponse{Code: CodeInternalError, Message: "internal error"})
}
