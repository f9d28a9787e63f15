package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TGlide/sawit-server/internal/middleware"
	"github.com/TGlide/sawit-server/internal/model"
	"github.com/TGlide/sawit-server/internal/session"
)

type memSessionStore struct {
	data map[string]int64
}

func (m *memSessionStore) FindByID(ctx context.Context, id string) (*model.Session, error) {
	userID, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &model.Session{ID: id, UserID: userID}, nil
}

func (m *memSessionStore) Save(ctx context.Context, s *model.Session, ttl time.Duration) error {
	m.data[s.ID] = s.UserID
	return nil
}

func (m *memSessionStore) DeleteByID(ctx context.Context, id string) error {
	delete(m.data, id)
	return nil
}

func newTestDeps(t *testing.T, graphqlHandler http.Handler) *RouterDeps {
	t.Helper()
	manager, err := session.NewManager(&memSessionStore{data: map[string]int64{}}, session.Config{
		Secret: "router-test-secret",
		MaxAge: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	return &RouterDeps{
		SessionLoader:     manager,
		CORSAllowedOrigin: "http://localhost:3000",
		GraphQL:           graphqlHandler,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	}
}

func TestNewRouter_GraphQLReceivesSession(t *testing.T) {
	var sawSession bool
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSession = session.FromContext(r.Context()) != nil
		w.Write([]byte(`{"data":{"hello":"hello world"}}`))
	}))
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !sawSession {
		t.Error("GraphQL handler should see the request session")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestNewRouter_PreflightDoesNotReachGraphQL(t *testing.T) {
	called := false
	router := NewRouter(newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("preflight should be answered by the CORS middleware")
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			t.Error("preflight should not issue a session cookie")
		}
	}
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	router := NewRouter(newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("resolver exploded")
	})))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	limiter := middleware.NewRateLimiter(middleware.PerMinute(1))
	defer limiter.Stop()
	deps.RateLimiter = limiter
	router := NewRouter(deps)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = "198.51.100.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if got := send(); got != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", got)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", got)
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	router := NewRouter(newTestDeps(t, http.NotFoundHandler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK || w.Body.String() != "# metrics" {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	router := NewRouter(newTestDeps(t, http.NotFoundHandler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHealthHandler(t *testing.T) {
	ok := PingFunc{Label: "postgres", Fn: func(ctx context.Context) error { return nil }}
	down := PingFunc{Label: "redis", Fn: func(ctx context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checkers   []HealthChecker
		wantStatus int
		wantBody   string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all healthy", []HealthChecker{ok}, http.StatusOK, "ok"},
		{"one down", []HealthChecker{ok, down}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checkers...).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body healthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Status != tt.wantBody {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantBody)
			}
			if strings.Contains(w.Body.String(), "connection refused") {
				t.Error("error details must not be exposed")
			}
		})
	}
}

func TestHealthHandler_ReportsEachDependency(t *testing.T) {
	router := NewRouter(&RouterDeps{
		GraphQL: http.NotFoundHandler(),
		HealthCheckers: []HealthChecker{
			PingFunc{Label: "postgres", Fn: func(ctx context.Context) error { return nil }},
			PingFunc{Label: "redis", Fn: func(ctx context.Context) error { return context.DeadlineExceeded }},
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Checks["postgres"] != "ok" || body.Checks["redis"] != "unavailable" {
		t.Errorf("checks = %v", body.Checks)
	}
}
