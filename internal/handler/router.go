package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogapi/internal/metrics"
	"github.com/hitoshi/blogapi/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがこれを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はルーター構築に必要な依存関係。
type RouterDeps struct {
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	AuthService       AuthServiceInterface
	PostService       PostServiceInterface
	Authenticator     middleware.TokenAuthenticator
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector    // nil許容
	Gatherer          prometheus.Gatherer   // nil許容
	CORSAllowedOrigin string
	RateLimitRegister int // 登録の許容回数/時
	RateLimitLogin    int // ログインの許容回数/分
}

// NewRouter はアプリケーションのHTTPルーターを構築する。
// レート制限はエンドポイントごとに独立したルールで適用する。
func NewRouter(deps RouterDeps) chi.Router {
	authHandler := NewAuthHandler(deps.AuthService)
	postHandler := NewPostHandler(deps.PostService)

	r := chi.NewRouter()

	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewRecoveryMiddleware())

	rl := deps.RateLimiter

	registerRule := middleware.RuleFromCount("register", deps.RateLimitRegister, time.Hour)
	loginRule := middleware.RuleFromCount("login", deps.RateLimitLogin, time.Minute)
	listRule := middleware.RuleFromCount("posts_index", 120, time.Minute)
	showRule := middleware.RuleFromCount("posts_show", 300, time.Minute)
	createRule := middleware.RuleFromCount("posts_create", 20, time.Minute)
	updateRule := middleware.RuleFromCount("posts_update", 30, time.Minute)
	deleteRule := middleware.RuleFromCount("posts_delete", 10, time.Minute)
	logoutRule := middleware.RuleFromCount("logout", 60, time.Minute)

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// 公開エンドポイント
	r.With(rl.Middleware(registerRule)).Post("/auth/register", authHandler.Register)
	r.With(rl.Middleware(loginRule)).Post("/auth/login", authHandler.Login)
	r.With(rl.Middleware(listRule)).Get("/posts", postHandler.List)
	r.With(rl.Middleware(showRule)).Get("/posts/{id}", postHandler.Get)

	// ベアラートークン必須のエンドポイント
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))

		r.With(rl.Middleware(logoutRule)).Post("/auth/logout", authHandler.Logout)
		r.With(rl.Middleware(createRule)).Post("/posts", postHandler.Create)
		r.With(rl.Middleware(updateRule)).Put("/posts/{id}", postHandler.Update)
		r.With(rl.Middleware(deleteRule)).Delete("/posts/{id}", postHandler.Delete)
	})

	return r
}

// healthHandler はデータベース接続を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
