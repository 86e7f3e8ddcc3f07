package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	screeningservice "baton/contexts/media-safety/screening-service"
	screeningerrors "baton/contexts/media-safety/screening-service/domain/errors"
	screeninghttp "baton/contexts/media-safety/screening-service/transport/http"
	relayservice "baton/contexts/relay-core/relay-service"
	relayerrors "baton/contexts/relay-core/relay-service/domain/errors"
	relayhttp "baton/contexts/relay-core/relay-service/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "baton/internal/platform/httpserver/docs"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	relay     relayservice.Module
	screening screeningservice.Module
}

func New(
	relay relayservice.Module,
	screening screeningservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		relay:     relay,
		screening: screening,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the routed mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/docs/", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /v1/relay/names", s.handleRegisterName)
	s.mux.HandleFunc("POST /v1/relay/profiles", s.handleUpdateProfile)
	s.mux.HandleFunc("POST /v1/relay/contents", s.handleRegisterContent)
	s.mux.HandleFunc("POST /v1/relay/playlists", s.handleSubmitPlaylist)
	s.mux.HandleFunc("POST /v1/relay/posts", s.handleCreatePost)
	s.mux.HandleFunc("GET /v1/relay/jobs/{job_id}", s.handleJobStatus)

	s.mux.HandleFunc("POST /v1/screening/checks", s.handleScreeningCheck)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegisterName(w http.ResponseWriter, r *http.Request) {
	var req relayhttp.RegisterNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	resp, err := s.relay.Handler.RegisterNameHandler(r.Context(), req)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req relayhttp.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	resp, err := s.relay.Handler.UpdateProfileHandler(r.Context(), req)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterContent(w http.ResponseWriter, r *http.Request) {
	var req relayhttp.RegisterContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	resp, err := s.relay.Handler.RegisterContentHandler(r.Context(), req)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitPlaylist(w http.ResponseWriter, r *http.Request) {
	var req relayhttp.SubmitPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	resp, err := s.relay.Handler.SubmitPlaylistHandler(r.Context(), req)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req relayhttp.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRelayError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	resp, err := s.relay.Handler.CreatePostHandler(r.Context(), req)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	resp, err := s.relay.Handler.JobStatusHandler(r.Context(), jobID)
	if err != nil {
		writeRelayDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScreeningCheck(w http.ResponseWriter, r *http.Request) {
	var req screeninghttp.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeScreeningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.screening.Handler.CheckHandler(r.Context(), req)
	if err != nil {
		writeScreeningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeRelayDomainError maps relay sentinels to status codes. Screening
// sentinels appear here too: content-bearing relay operations consult the
// screening service before any paid work.
func writeRelayDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relayerrors.ErrExpired),
		errors.Is(err, relayerrors.ErrSignatureMismatch):
		writeRelayError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, relayerrors.ErrNonceMismatch),
		errors.Is(err, relayerrors.ErrNameUnavailable),
		errors.Is(err, relayerrors.ErrIntentInFlight):
		writeRelayError(w, http.StatusConflict, err.Error())
	case errors.Is(err, relayerrors.ErrMalformedDescriptor),
		errors.Is(err, relayerrors.ErrMalformedRequest),
		errors.Is(err, screeningerrors.ErrInvalidMedia):
		writeRelayError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, screeningerrors.ErrContentRejected):
		writeRelayError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, relayerrors.ErrJobNotFound):
		writeRelayError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, screeningerrors.ErrScreeningUnavailable):
		writeRelayError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeRelayError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeScreeningDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, screeningerrors.ErrInvalidMedia):
		writeScreeningError(w, http.StatusBadRequest, "invalid_media", err.Error())
	case errors.Is(err, screeningerrors.ErrEmptyScreeningRequest):
		writeScreeningError(w, http.StatusBadRequest, "empty_request", err.Error())
	case errors.Is(err, screeningerrors.ErrScreeningUnavailable):
		writeScreeningError(w, http.StatusServiceUnavailable, "screening_unavailable", err.Error())
	default:
		writeScreeningError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRelayError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, relayhttp.ErrorResponse{
		Success: false,
		Error:   message,
	})
}

func writeScreeningError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, screeninghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
