package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	scorevalidation "tiltcheck/contexts/arcade/score-validation"
	domainerrors "tiltcheck/contexts/arcade/score-validation/domain/errors"
	validationhttp "tiltcheck/contexts/arcade/score-validation/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "tiltcheck/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	validation scorevalidation.Module
}

func New(validation scorevalidation.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		validation: validation,
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

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/scores", s.handleSubmitScore)
	s.mux.HandleFunc("GET /api/scores/pending", s.handleMyPending)
	s.mux.HandleFunc("GET /api/scores/{score_id}", s.handleGetScore)
	s.mux.HandleFunc("POST /api/scores/{score_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /api/review-queue", s.handleReviewQueue)
	s.mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /api/notifications/{notification_id}/read", s.handleMarkNotificationRead)
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	var req validationhttp.SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	resp, err := s.validation.Handler.SubmitScoreHandler(r.Context(), userID, req)
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	resp, err := s.validation.Handler.GetScoreHandler(r.Context(), r.PathValue("score_id"))
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	var req validationhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	resp, err := s.validation.Handler.CastVoteHandler(r.Context(), r.PathValue("score_id"), userID, req)
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	resp, err := s.validation.Handler.ReviewQueueHandler(r.Context(), userID)
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyPending(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	resp, err := s.validation.Handler.MyPendingHandler(r.Context(), userID)
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	resp, err := s.validation.Handler.ListNotificationsHandler(r.Context(), userID)
	if err != nil {
		writeValidationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeValidationError(w, http.StatusUnauthorized, "missing_identity", "X-User-Id header is required")
		return
	}
	if err := s.validation.Handler.MarkNotificationReadHandler(r.Context(), r.PathValue("notification_id"), userID); err != nil {
		writeValidationDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeValidationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrScoreNotFound):
		writeValidationError(w, http.StatusNotFound, "score_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrNotificationNotFound):
		writeValidationError(w, http.StatusNotFound, "notification_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidVoter):
		writeValidationError(w, http.StatusForbidden, "invalid_voter", err.Error())
	case errors.Is(err, domainerrors.ErrScoreAlreadyResolved):
		writeValidationError(w, http.StatusConflict, "score_already_resolved", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidSubmission):
		writeValidationError(w, http.StatusBadRequest, "invalid_submission", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidVoteInput):
		writeValidationError(w, http.StatusBadRequest, "invalid_vote_input", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidReasonCode):
		writeValidationError(w, http.StatusBadRequest, "invalid_reason_code", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writeValidationError(w, http.StatusConflict, "write_conflict", err.Error())
	default:
		writeValidationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, validationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}
