package rest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ersimransingh/email-service-sub001/internal/activity"
	"github.com/ersimransingh/email-service-sub001/internal/mailer"
	"github.com/ersimransingh/email-service-sub001/internal/signing"
	"github.com/ersimransingh/email-service-sub001/internal/store"
)

// writeJSON writes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an HTTP error response with a JSON body containing an
// "error" field. Messages passed here must already be non-leaking; raw
// store or transport detail belongs in the log.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Server holds the dependencies needed by the REST handlers.
type Server struct {
	recon    Reconciler
	store    ConfigStore
	mailer   mailer.Mailer
	signer   signing.Signer
	activity ActivityLog
	auth     *Authenticator
	logger   *slog.Logger
}

// NewServer creates a Server with the provided collaborators. logger may be
// nil, in which case slog.Default() is used.
func NewServer(recon Reconciler, cs ConfigStore, m mailer.Mailer, sg signing.Signer,
	al ActivityLog, auth *Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		recon:    recon,
		store:    cs,
		mailer:   m,
		signer:   sg,
		activity: al,
		auth:     auth,
		logger:   logger,
	}
}

// storeError maps a store/reconciler error onto the fixed presentation
// status codes: 404 for missing configuration, 400 for validation, 500 for
// everything else. Full detail is logged; the response body stays generic.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrConfigNotFound):
		writeError(w, http.StatusNotFound, "configuration not found")
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Field+" "+ve.Reason)
	default:
		s.logger.Error(op+" failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// record appends an activity event, logging (but not failing the request)
// when the activity log is unavailable.
func (s *Server) record(r *http.Request, kind string, detail map[string]any) {
	actor, _ := SubjectFromContext(r.Context())
	if err := s.activity.Record(r.Context(), kind, actor, detail); err != nil {
		s.logger.Warn("activity record failed",
			slog.String("kind", kind), slog.Any("error", err))
	}
}

// handleHealthz responds to GET /healthz.
//
// This endpoint does not require authentication and returns HTTP 200 with a
// simple JSON body so load balancers and orchestrators can verify liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin responds to POST /api/auth/login.
//
// The request body is {"username": ..., "password": ...}, checked against
// the dashboard credentials in the stored schedule configuration with
// constant-time comparison. Success returns {"token": ..., "expiresAt":
// ...}; every failure mode returns the same generic 401 so that callers
// cannot distinguish a wrong password from missing configuration.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	cfg, err := s.store.LoadScheduleConfig()
	if err != nil {
		s.logger.Warn("login rejected: schedule config unavailable", slog.Any("error", err))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.Password)) == 1
	if !userOK || !passOK {
		s.logger.Warn("login rejected: bad credentials",
			slog.String("username", req.Username),
			slog.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, exp, err := s.auth.IssueToken(req.Username)
	if err != nil {
		s.logger.Error("token issue failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": exp.UTC().Format(time.RFC3339),
	})
}

// handleStatus responds to GET /api/v1/status with the effective dashboard
// snapshot: persisted intent reconciled against a live connectivity check
// and the configured daily window. Recomputed on every request.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.recon.Snapshot(r.Context())
	if err != nil {
		s.storeError(w, "status query", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStart responds to POST /api/v1/service/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	actor, _ := SubjectFromContext(r.Context())
	rec, err := s.recon.Start(r.Context(), actor)
	if err != nil {
		s.storeError(w, "service start", err)
		return
	}
	s.record(r, activity.KindStarted, nil)
	writeJSON(w, http.StatusOK, rec)
}

// handleStop responds to POST /api/v1/service/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recon.Stop(r.Context())
	if err != nil {
		s.storeError(w, "service stop", err)
		return
	}
	s.record(r, activity.KindStopped, nil)
	writeJSON(w, http.StatusOK, rec)
}

// handleGetDatabaseConfig responds to GET /api/v1/config/database with the
// stored connection tuple, password masked.
func (s *Server) handleGetDatabaseConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.LoadDatabaseConfig()
	if err != nil {
		s.storeError(w, "database config load", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Masked())
}

// handleSaveDatabaseConfig responds to POST /api/v1/config/database.
//
// A password equal to the mask sentinel keeps the previously stored secret;
// sending the sentinel with no prior configuration is a validation error.
func (s *Server) handleSaveDatabaseConfig(w http.ResponseWriter, r *http.Request) {
	var cfg store.ConnectionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.store.SaveDatabaseConfig(cfg); err != nil {
		s.storeError(w, "database config save", err)
		return
	}
	s.record(r, activity.KindConfigSaved, map[string]any{"file": "database"})
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// handleGetEmailConfig responds to GET /api/v1/config/email with the stored
// schedule configuration, password masked.
func (s *Server) handleGetEmailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.LoadScheduleConfig()
	if err != nil {
		s.storeError(w, "email config load", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Masked())
}

// handleSaveEmailConfig responds to POST /api/v1/config/email.
func (s *Server) handleSaveEmailConfig(w http.ResponseWriter, r *http.Request) {
	var cfg store.ScheduleConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.store.SaveScheduleConfig(cfg); err != nil {
		s.storeError(w, "email config save", err)
		return
	}
	s.record(r, activity.KindConfigSaved, map[string]any{"file": "email"})
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

// handleTestEmail responds to POST /api/v1/email/test.
//
// The request body is {"address": ...}. The outcome (success or not) is
// returned with HTTP 200 and folded into the persisted email counters; only
// a malformed request or an internal failure produces an error status.
func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := s.mailer.SendTestEmail(r.Context(), req.Address)
	if err != nil {
		s.logger.Error("test email failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.store.RecordEmailOutcome(res.Success); err != nil {
		s.logger.Warn("email outcome record failed", slog.Any("error", err))
	}
	s.record(r, activity.KindTestEmail, map[string]any{
		"recipient": res.Recipient,
		"success":   res.Success,
	})

	writeJSON(w, http.StatusOK, res)
}

// handleSigningInfo responds to GET /api/v1/signing/info with the
// availability of the external signing application.
func (s *Server) handleSigningInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.signer.Info(r.Context()))
}

// handleActivity responds to GET /api/v1/activity.
//
// Supported query parameters:
//
//	limit – maximum number of events (default 50, max 500)
//
// Events are returned newest first.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "'limit' must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	events, err := s.activity.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("activity query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []activity.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
