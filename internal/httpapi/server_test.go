package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmhmddd/omega-gateway/internal/auth"
	"github.com/mmhmddd/omega-gateway/internal/config"
	"github.com/mmhmddd/omega-gateway/internal/model"
	"github.com/mmhmddd/omega-gateway/internal/notify"
	"github.com/mmhmddd/omega-gateway/internal/session"
	"github.com/mmhmddd/omega-gateway/internal/transport"
)

type fixture struct {
	gateway *httptest.Server
	backend *backendStub
	store   *session.Store
	client  *http.Client
}

type backendStub struct {
	mux        *http.ServeMux
	loginOK    atomic.Bool
	apiHits    atomic.Int64
	lastBearer atomic.Value // string
}

func newBackendStub(t *testing.T) (*backendStub, *httptest.Server) {
	t.Helper()
	stub := &backendStub{mux: http.NewServeMux()}
	stub.loginOK.Store(true)

	stub.mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !stub.loginOK.Load() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(model.Envelope{Success: false, Message: "Invalid username or password."})
			return
		}
		_ = json.NewEncoder(w).Encode(model.Envelope{
			Success: true,
			Data:    json.RawMessage(`{"user":{"id":"u-1","username":"alice","role":"employee","active":true,"routeAccess":["receipts"]},"token":"tok-abc"}`),
		})
	})
	stub.mux.HandleFunc("GET /user-forms/notifications/all", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Envelope{Success: true, Data: json.RawMessage(`[]`)})
	})
	stub.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		stub.apiHits.Add(1)
		stub.lastBearer.Store(r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(model.Envelope{Success: true})
	})

	server := httptest.NewServer(stub.mux)
	t.Cleanup(server.Close)
	return stub, server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend, backendServer := newBackendStub(t)

	store, err := session.NewStore(session.NewFileBackend(filepath.Join(t.TempDir(), "session.json")))
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	cfg := config.Config{
		BackendURL:   backendServer.URL,
		CookieSecret: "test-secret",
		CookieIssuer: "test",
		CookieTTL:    time.Hour,
		LoginRoute:   "/login",
		DefaultRoute: "/",
		LoginRate:    100,
		LoginBurst:   100,
	}

	rt := &transport.BearerRoundTripper{Store: store}
	outbound := &http.Client{Transport: rt}
	authn := auth.NewClient(backendServer.URL, outbound, store)
	poller := notify.NewPoller(store, outbound, backendServer.URL, time.Hour, nil)

	server, err := NewServer(cfg, store, authn, poller, rt, nil, nil)
	if err != nil {
		t.Fatalf("server error: %v", err)
	}

	gateway := httptest.NewServer(server.Router())
	t.Cleanup(gateway.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &fixture{gateway: gateway, backend: backend, store: store, client: client}
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	return resp
}

func TestLoginSetsCookieAndSession(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !f.store.IsAuthenticated() {
		t.Fatalf("login must populate the session store")
	}
	cookie := findCookie(resp.Cookies(), auth.CookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected a session cookie")
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginFailurePassesMessageThrough(t *testing.T) {
	f := newFixture(t)
	f.backend.loginOK.Store(false)

	resp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "wrong",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if env.Message != "Invalid username or password." {
		t.Fatalf("expected backend message, got %q", env.Message)
	}
	if f.store.IsAuthenticated() {
		t.Fatalf("failed login must not create a session")
	}
}

func TestProxyAttachesBearerAndHonorsRouteAccess(t *testing.T) {
	f := newFixture(t)

	loginResp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	loginResp.Body.Close()
	cookie := findCookie(loginResp.Cookies(), auth.CookieName)
	if cookie == nil {
		t.Fatalf("expected a session cookie")
	}

	// alice holds routeAccess=[receipts] only.
	req, _ := http.NewRequest(http.MethodGet, f.gateway.URL+"/api/receipts/1", nil)
	req.AddCookie(cookie)
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected proxied 200, got %d", resp.StatusCode)
	}
	if bearer, _ := f.backend.lastBearer.Load().(string); bearer != "Bearer tok-abc" {
		t.Fatalf("expected bearer on proxied request, got %q", bearer)
	}

	req, _ = http.NewRequest(http.MethodGet, f.gateway.URL+"/api/purchases", nil)
	req.AddCookie(cookie)
	resp, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("denied route must redirect to default landing, got %d", resp.StatusCode)
	}
}

func TestProxyWithoutSessionRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Get(f.gateway.URL + "/api/receipts")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d", resp.StatusCode)
	}
	if f.backend.apiHits.Load() != 0 {
		t.Fatalf("unauthenticated request must never reach the backend")
	}
}

func TestResetPasswordWithoutToken(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.client, f.gateway.URL+"/auth/reset-password", map[string]string{
		"newPassword": "fresh-password",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["error"] != "missing_reset_token" {
		t.Fatalf("expected missing_reset_token, got %v", body)
	}
}

func TestLogoutClearsSessionAndCookie(t *testing.T) {
	f := newFixture(t)

	resp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	resp.Body.Close()
	if !f.store.IsAuthenticated() {
		t.Fatalf("expected session after login")
	}

	resp = postJSON(t, f.client, f.gateway.URL+"/auth/logout", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if f.store.IsAuthenticated() {
		t.Fatalf("logout must clear the session")
	}
	cookie := findCookie(resp.Cookies(), auth.CookieName)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("logout must expire the cookie")
	}
}

func TestSessionEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Get(f.gateway.URL + "/auth/session")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	var body struct {
		Authenticated bool        `json:"authenticated"`
		User          *model.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	resp.Body.Close()
	if body.Authenticated || body.User != nil {
		t.Fatalf("expected anonymous snapshot, got %+v", body)
	}

	loginResp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	loginResp.Body.Close()

	resp, err = f.client.Get(f.gateway.URL + "/auth/session")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	resp.Body.Close()
	if !body.Authenticated || body.User == nil || body.User.Username != "alice" {
		t.Fatalf("expected alice's snapshot, got %+v", body)
	}
}

func TestNotificationsRequireQualifyingRole(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Get(f.gateway.URL + "/notifications")
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d", resp.StatusCode)
	}

	// alice is an employee, below the notification roles.
	loginResp := postJSON(t, f.client, f.gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	loginResp.Body.Close()
	cookie := findCookie(loginResp.Cookies(), auth.CookieName)

	req, _ := http.NewRequest(http.MethodGet, f.gateway.URL+"/notifications", nil)
	req.AddCookie(cookie)
	resp, err = f.client.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/" {
		t.Fatalf("expected redirect to default landing, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimited(t *testing.T) {
	_, backendServer := newBackendStub(t)
	storeTight, err := session.NewStore(session.NewFileBackend(filepath.Join(t.TempDir(), "session.json")))
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	cfg := config.Config{
		BackendURL:   backendServer.URL,
		CookieSecret: "test-secret",
		CookieIssuer: "test",
		CookieTTL:    time.Hour,
		LoginRoute:   "/login",
		DefaultRoute: "/",
		LoginRate:    0.0001,
		LoginBurst:   1,
	}
	rt := &transport.BearerRoundTripper{Store: storeTight}
	outbound := &http.Client{Transport: rt}
	authn := auth.NewClient(backendServer.URL, outbound, storeTight)
	poller := notify.NewPoller(storeTight, outbound, backendServer.URL, time.Hour, nil)
	server, err := NewServer(cfg, storeTight, authn, poller, rt, nil, nil)
	if err != nil {
		t.Fatalf("server error: %v", err)
	}
	gateway := httptest.NewServer(server.Router())
	defer gateway.Close()

	first := postJSON(t, http.DefaultClient, gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	first.Body.Close()
	if first.StatusCode == http.StatusTooManyRequests {
		t.Fatalf("first attempt must pass the limiter")
	}

	second := postJSON(t, http.DefaultClient, gateway.URL+"/auth/login", map[string]string{
		"username": "alice", "password": "secret123",
	})
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.StatusCode)
	}
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Post(f.gateway.URL+"/auth/login", "application/json",
		strings.NewReader(`{"username":"alice","password":"x","extra":true}`))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}
