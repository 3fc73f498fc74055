package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blogapi/internal/middleware"
	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/token"
)

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(_ context.Context) error {
	return m.err
}

type routerAuthenticator struct {
	principal *model.Principal
}

func (a *routerAuthenticator) Authenticate(_ context.Context, presented string) (*model.Principal, error) {
	if presented == "valid-token" && a.principal != nil {
		return a.principal, nil
	}
	return nil, token.ErrTokenNotFound
}

func newTestRouter(t *testing.T, deps RouterDeps) http.Handler {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(testWriter{}, nil))
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = &mockHealthChecker{}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.PostService == nil {
		deps.PostService = &mockPostService{}
	}
	if deps.Authenticator == nil {
		deps.Authenticator = &routerAuthenticator{}
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(time.Minute)
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	if deps.RateLimitRegister == 0 {
		deps.RateLimitRegister = 6
	}
	if deps.RateLimitLogin == 0 {
		deps.RateLimitLogin = 10
	}
	if deps.CORSAllowedOrigin == "" {
		deps.CORSAllowedOrigin = "http://localhost:3000"
	}

	return NewRouter(deps)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRouter_HealthEndpoint_DBDown_Returns503(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		HealthChecker: &mockHealthChecker{err: context.DeadlineExceeded},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_PublicReadsRequireNoAuth(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	for _, path := range []string{"/posts", "/posts/post-1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code == http.StatusUnauthorized {
			t.Errorf("GET %s が認証を要求した", path)
		}
	}
}

func TestRouter_WritesRequireAuth(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/posts"},
		{http.MethodPut, "/posts/post-1"},
		{http.MethodDelete, "/posts/post-1"},
		{http.MethodPost, "/auth/logout"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func TestRouter_AuthenticatedWritePasses(t *testing.T) {
	router := newTestRouter(t, RouterDeps{
		Authenticator: &routerAuthenticator{principal: &model.Principal{
			UserID:    "user-1",
			TokenID:   "token-1",
			Abilities: model.DefaultTokenAbilities(),
		}},
	})

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{"title":"t","content":"c"}`))
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201. body: %s", rec.Code, rec.Body.String())
	}
}

// ログインは10回/分を超えると429になる
func TestRouter_LoginRateLimit(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	body := `{"email":"taro@example.com","password":"Secret#123"}`
	var lastCode int
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code

		if i < 10 && rec.Code == http.StatusTooManyRequests {
			t.Fatalf("%d回目で早すぎる429", i+1)
		}
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("11回目のログイン: status = %d, want 429", lastCode)
	}
}

// 登録は6回/時を超えると429になる
func TestRouter_RegisterRateLimit(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	body := `{"name":"Taro","email":"taro@example.com","password":"Secret#123","password_confirmation":"Secret#123"}`
	var lastCode int
	for i := 0; i < 7; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("7回目の登録: status = %d, want 429", lastCode)
	}
}

func TestRouter_SetsSecurityHeaders(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options が付与されていない")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORSヘッダーが付与されていない")
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t, RouterDeps{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
