// Package auth はユーザー登録・ログイン・ログアウトのビジネスロジックを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/repository"
)

// TokenIssuer はトークン管理に必要なインターフェース。
// token.Managerの部分集合として定義する。
type TokenIssuer interface {
	Issue(ctx context.Context, userID string, abilities []string, ttl time.Duration) (string, string, error)
	RevokeCurrent(ctx context.Context, tokenID string) error
	CleanupUserTokens(ctx context.Context, userID string) (int64, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL time.Duration // 発行トークンの有効期間
}

// LoginMetrics はログイン成否の計測インターフェース。
// metrics.Collectorの部分集合として定義する。
type LoginMetrics interface {
	RecordLoginSuccess()
	RecordLoginFailure()
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	config   ServiceConfig
	metrics  LoginMetrics // nil許容
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(userRepo repository.UserRepository, tokens TokenIssuer, config ServiceConfig, metrics LoginMetrics) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		config:   config,
		metrics:  metrics,
	}
}

// RegisterInput は登録リクエストの許可フィールド。
// この構造体以外のフィールドは永続化に到達しない。
type RegisterInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// AuthResult は登録・ログイン成功時の結果。
// Tokenは平文で、この結果以外から取得する手段はない。
type AuthResult struct {
	User  *model.User
	Token string
}

// Register は新規ユーザーを作成し、トークンを発行する。
// メールアドレスが既に使われている場合はmessages.emailを持つ
// ValidationErrorを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if verr := validateRegisterInput(in); verr.HasErrors() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicateEmail {
			verr := model.NewValidationError()
			verr.Add("email", "The email has already been taken.")
			return nil, verr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, plaintext, err := s.tokens.Issue(ctx, user.ID, model.DefaultTokenAbilities(), s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &AuthResult{User: user, Token: plaintext}, nil
}

// Login は資格情報を検証し、トークンを発行する。
// 成功時には本人の古いトークンを機会的に掃除する（グローバルな
// プルーニングジョブとは独立した軽量な本人分のみの掃除）。
// メールアドレスの存在有無で応答を変えない。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	verr := model.NewValidationError()
	if email == "" {
		verr.Add("email", "The email field is required.")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "The email must be a valid email address.")
	}
	if password == "" {
		verr.Add("password", "The password field is required.")
	} else if len(password) > 255 {
		verr.Add("password", "The password may not be greater than 255 characters.")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		slog.Warn("failed login attempt",
			slog.String("email", strings.ToLower(email)),
		)
		if s.metrics != nil {
			s.metrics.RecordLoginFailure()
		}
		return nil, model.NewInvalidCredentialsError()
	}

	// 本人の古いトークンの機会的掃除。失敗してもログインは継続する。
	if _, err := s.tokens.CleanupUserTokens(ctx, user.ID); err != nil {
		slog.Warn("login-time token cleanup failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	_, plaintext, err := s.tokens.Issue(ctx, user.ID, model.DefaultTokenAbilities(), s.config.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}

	return &AuthResult{User: user, Token: plaintext}, nil
}

// Logout は現在のリクエストに使われたトークンのみを失効させる。
// 同一ユーザーの他のセッションには影響しない。
func (s *Service) Logout(ctx context.Context, principal *model.Principal) error {
	if principal == nil {
		return model.NewUnauthenticatedError()
	}

	if err := s.tokens.RevokeCurrent(ctx, principal.TokenID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	slog.Info("user logged out",
		slog.String("user_id", principal.UserID),
	)
	return nil
}

// validateRegisterInput は登録入力を検証する。
func validateRegisterInput(in RegisterInput) *model.ValidationError {
	verr := model.NewValidationError()

	if in.Name == "" {
		verr.Add("name", "The name field is required.")
	} else if len(in.Name) > 255 {
		verr.Add("name", "The name may not be greater than 255 characters.")
	}

	if in.Email == "" {
		verr.Add("email", "The email field is required.")
	} else if len(in.Email) > 255 {
		verr.Add("email", "The email may not be greater than 255 characters.")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "The email must be a valid email address.")
	}

	validatePassword(in.Password, in.PasswordConfirmation, verr)

	return verr
}

// validatePassword はパスワード強度を検証する。
// 8文字以上、英字の大小・数字・記号を各1文字以上含むこと。
func validatePassword(password, confirmation string, verr *model.ValidationError) {
	if password == "" {
		verr.Add("password", "The password field is required.")
		return
	}
	if password != confirmation {
		verr.Add("password", "The password confirmation does not match.")
	}
	if len(password) < 8 {
		verr.Add("password", "The password must be at least 8 characters.")
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	if !hasLower || !hasUpper {
		verr.Add("password", "The password must contain both uppercase and lowercase letters.")
	}
	if !hasDigit {
		verr.Add("password", "The password must contain at least one number.")
	}
	if !hasSymbol {
		verr.Add("password", "The password must contain at least one symbol.")
	}
}
