package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/hitoshi/blogapi/internal/auth"
	"github.com/hitoshi/blogapi/internal/middleware"
	"github.com/hitoshi/blogapi/internal/model"
)

// AuthServiceInterface は認証サービスのインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Logout(ctx context.Context, principal *model.Principal) error
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// userResponse はレスポンスに載せるユーザー表現。
// パスワードハッシュは決して含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// registerRequest は登録リクエストのボディ。
// ここに無いフィールドはデコード時に黙って捨てられる。
type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Register は POST /auth/register を処理する。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "The request body must be valid JSON.")
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		User:  toUserResponse(result.User),
		Token: result.Token,
	})
}

// loginAllowedFields はログインボディに許可するフィールド。
var loginAllowedFields = map[string]bool{
	"email":    true,
	"password": true,
}

// invalidFieldsResponse は想定外フィールドを含むログインリクエストへの応答。
type invalidFieldsResponse struct {
	Error         string   `json:"error"`
	InvalidFields []string `json:"invalid_fields"`
}

// Login は POST /auth/login を処理する。
// 許可フィールド以外を含むボディは資格情報の検証前に422で拒否する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "The request body must be valid JSON.")
		return
	}

	var invalid []string
	for field := range raw {
		if !loginAllowedFields[field] {
			invalid = append(invalid, field)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		writeJSON(w, http.StatusUnprocessableEntity, invalidFieldsResponse{
			Error:         "Invalid request format",
			InvalidFields: invalid,
		})
		return
	}

	var email, password string
	if v, ok := raw["email"]; ok {
		_ = json.Unmarshal(v, &email)
	}
	if v, ok := raw["password"]; ok {
		_ = json.Unmarshal(v, &password)
	}

	result, err := h.service.Login(r.Context(), email, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		User:  toUserResponse(result.User),
		Token: result.Token,
	})
}

// Logout は POST /auth/logout を処理する。
// 現在のリクエストに使われたトークンのみを失効させる。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
		return
	}

	if !principal.HasAbility(model.AbilityAuthLogout) {
		apiErr := model.NewForbiddenAbilityError(model.AbilityAuthLogout)
		writeError(w, http.StatusForbidden, apiErr.Summary, apiErr.Message)
		return
	}

	if err := h.service.Logout(r.Context(), principal); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}
