package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/mmhmddd/omega-gateway/internal/auth"
	"github.com/mmhmddd/omega-gateway/internal/config"
	"github.com/mmhmddd/omega-gateway/internal/guard"
	"github.com/mmhmddd/omega-gateway/internal/metrics"
	"github.com/mmhmddd/omega-gateway/internal/model"
	"github.com/mmhmddd/omega-gateway/internal/notify"
	"github.com/mmhmddd/omega-gateway/internal/session"
)

type Server struct {
	cfg      config.Config
	store    *session.Store
	authn    *auth.Client
	poller   *notify.Poller
	guard    *guard.Guard
	proxy    *httputil.ReverseProxy
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	registry *prometheus.Registry
}

func NewServer(cfg config.Config, store *session.Store, authn *auth.Client, poller *notify.Poller, proxyTransport http.RoundTripper, collector *metrics.Collector, registry *prometheus.Registry) (*Server, error) {
	backendURL, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(backendURL)
	proxy.Transport = proxyTransport
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// The SPA calls /api/...; the backend serves the same paths
		// without the prefix.
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api")
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		authn:    authn,
		poller:   poller,
		guard:    guard.New(store, cfg.CookieSecret, cfg.LoginRoute, cfg.DefaultRoute),
		proxy:    proxy,
		limiter:  rate.NewLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst),
		metrics:  collector,
		registry: registry,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/auth/forgot-password", s.handleForgotPassword)
	r.Post("/auth/reset-password", s.handleResetPassword)
	r.With(s.guard.RequireSession).Post("/auth/change-password", s.handleChangePassword)
	r.Get("/auth/session", s.handleSession)

	notifyGuard := []func(http.Handler) http.Handler{
		s.guard.RequireSession,
		s.guard.RequireRoles(model.RoleSuperAdmin, model.RoleSecretariat),
	}
	r.With(notifyGuard...).Get("/notifications", s.handleNotifications)
	r.With(notifyGuard...).Get("/notifications/unread-count", s.handleUnreadCount)
	r.With(notifyGuard...).Post("/notifications/{id}/read", s.handleMarkRead)
	r.With(notifyGuard...).Post("/notifications/mark-all-read", s.handleMarkAllRead)

	r.With(s.guard.RequireSession, s.guard.RequireRouteAccess).Handle("/api/*", s.proxy)

	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too_many_attempts")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.authn.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.metrics.RecordLoginFailure()
		writeAuthError(w, err)
		return
	}

	token, err := auth.NewBrowserToken(s.cfg.CookieSecret, s.cfg.CookieIssuer, s.cfg.CookieTTL, auth.CookieClaims{
		UserID: user.ID,
		Role:   string(user.Role),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cookie_error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.CookieTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, model.Envelope{Success: true, Data: mustJSON(map[string]any{"user": user})})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if err := s.authn.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, "logout_failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}
	if err := s.authn.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	// The reset view forwards the one-time token from the reset link's
	// query parameter; tolerate it arriving either way.
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_password")
		return
	}

	err := s.authn.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if errors.Is(err, auth.ErrResetTokenMissing) {
		writeError(w, http.StatusUnprocessableEntity, "missing_reset_token")
		return
	}
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if err := s.authn.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	payload := map[string]any{"authenticated": snap.Authenticated()}
	if snap.User != nil {
		payload["user"] = snap.User
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Notifications())
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"unread": s.poller.UnreadCount()})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing_notification_id")
		return
	}
	if err := s.poller.MarkRead(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, "mark_read_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if err := s.poller.MarkAllRead(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "mark_read_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAuthError maps authenticator failures onto the surface: the
// message stays user-visible, the status mirrors the backend's verdict.
func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		status := authErr.Status
		if status == 0 || status < 400 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, model.Envelope{Success: false, Message: authErr.Message})
		return
	}
	if errors.Is(err, auth.ErrBackendUnreachable) {
		writeError(w, http.StatusServiceUnavailable, "backend_unreachable")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
