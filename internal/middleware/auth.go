// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// TokenAuthenticator はトークン検証に必要なインターフェース。
// token.Managerの部分集合として定義する。
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, presented string) (*model.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 認証主体をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。トークンの期限切れと不存在は
// クライアントには区別せず、ログでのみ区別する。
func NewAuthMiddleware(authenticator TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), presented)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrTokenExpired):
					slog.Warn("expired token presented",
						slog.String("path", r.URL.Path),
						slog.String("ip", clientIP(r)),
					)
				case errors.Is(err, token.ErrTokenNotFound):
					slog.Warn("unknown token presented",
						slog.String("path", r.URL.Path),
						slog.String("ip", clientIP(r)),
					)
				default:
					slog.Error("token authentication failed",
						slog.String("error", err.Error()),
					)
				}
				writeJSONError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || principal == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// clientIP はリクエスト元のIPアドレスを返す。
// リバースプロキシ配下を想定しX-Forwarded-Forの先頭を優先する。
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
