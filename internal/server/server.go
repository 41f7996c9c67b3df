// Package server exposes the coordinator's relation-data substrate and its
// status over HTTP. Integrations (workers, s3, certificates, logging,
// tracing) push their relation data here; every mutation turns into a
// notification for the coordinator's event loop.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/coordinator"
	"github.com/edvin/coordinator/internal/relation"
)

// Server is the substrate HTTP API.
type Server struct {
	router chi.Router
	logger zerolog.Logger
	store  *relation.MemoryStore
	coord  *coordinator.Coordinator
	// notify enqueues a notification for the event loop.
	notify func(coordinator.NotificationKind)
	// kinds maps a relation endpoint to the notification its changes
	// produce.
	kinds map[string]coordinator.NotificationKind
}

// NewServer creates the substrate server.
func NewServer(
	logger zerolog.Logger,
	store *relation.MemoryStore,
	coord *coordinator.Coordinator,
	notify func(coordinator.NotificationKind),
	kinds map[string]coordinator.NotificationKind,
) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With().Str("component", "server").Logger(),
		store:  store,
		coord:  coord,
		notify: notify,
		kinds:  kinds,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/verdict", s.handleVerdict)
		r.Get("/scrape-jobs", s.handleScrapeJobs)
		r.Post("/notify/{kind}", s.handleNotify)

		r.Route("/relations/{endpoint}", func(r chi.Router) {
			r.Post("/", s.handleAddRelation)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleRemoveRelation)
				r.Put("/app", s.handleSetAppData)
				r.Put("/units/{unit}", s.handleSetUnitData)
				r.Delete("/units/{unit}", s.handleRemoveUnit)
			})
		})
	})
}

// handleStatus is the status-collection trigger: it projects the current
// coherence state into operator-visible statuses.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.CollectStatus())
}

func (s *Server) handleVerdict(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"verdict":           s.coord.Verdict(),
		"s3_ready":          s.coord.S3Ready(),
		"tls_available":     s.coord.TLSAvailable(),
		"can_handle_events": s.coord.CanHandleEvents(),
	})
}

func (s *Server) handleScrapeJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ScrapeJobs())
}

// handleNotify enqueues a notification by name. This is the delivery path
// for events with no relation endpoint of their own: certificate rotation
// on disk, proxy readiness, revoked object-storage credentials.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	kind, ok := coordinator.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown notification kind")
		return
	}
	s.notify(kind)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAddRelation(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	var req struct {
		RemoteApplication string `json:"remote_application"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	rel := s.store.AddRelation(endpoint, req.RemoteApplication)
	s.notifyEndpoint(endpoint)
	writeJSON(w, http.StatusCreated, map[string]int{"id": rel.ID()})
}

func (s *Server) handleRemoveRelation(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid relation id")
		return
	}
	s.store.RemoveRelation(endpoint, id)
	s.notifyEndpoint(endpoint)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetAppData(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.relationFromRequest(w, r)
	if !ok {
		return
	}
	data, ok := decodeData(w, r)
	if !ok {
		return
	}
	rel.SetRemoteAppData(data)
	s.notifyEndpoint(chi.URLParam(r, "endpoint"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetUnitData(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.relationFromRequest(w, r)
	if !ok {
		return
	}
	data, ok := decodeData(w, r)
	if !ok {
		return
	}
	rel.SetRemoteUnitData(chi.URLParam(r, "unit"), data)
	s.notifyEndpoint(chi.URLParam(r, "endpoint"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveUnit(w http.ResponseWriter, r *http.Request) {
	rel, ok := s.relationFromRequest(w, r)
	if !ok {
		return
	}
	rel.RemoveRemoteUnit(chi.URLParam(r, "unit"))
	s.notifyEndpoint(chi.URLParam(r, "endpoint"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) relationFromRequest(w http.ResponseWriter, r *http.Request) (*relation.MemoryRelation, bool) {
	endpoint := chi.URLParam(r, "endpoint")
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid relation id")
		return nil, false
	}
	rel := s.store.Relation(endpoint, id)
	if rel == nil {
		writeError(w, http.StatusNotFound, "relation not found")
		return nil, false
	}
	return rel, true
}

func (s *Server) notifyEndpoint(endpoint string) {
	kind, ok := s.kinds[endpoint]
	if !ok {
		s.logger.Debug().Str("endpoint", endpoint).Msg("no notification kind for endpoint")
		return
	}
	s.notify(kind)
}

func decodeData(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	var data map[string]string
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
