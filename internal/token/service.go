// Package token は不透明ベアラートークンの発行・検証・失効を提供する。
//
// 平文トークンのワイヤ形式は "<token_id>|<secret>"。平文は発行時に一度だけ
// 返却し、以後はSHA-256ハッシュとの照合でのみ検証する。
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/repository"
)

// 認証エラー。ハンドラーは両者とも401に変換するが、ログでは区別する。
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

const (
	// unsetExpiryMaxAge はログイン時掃除での期限未設定トークンの許容年齢。
	// グローバルプルーニングの保持期間より短い二次しきい値。
	unsetExpiryMaxAge = 30 * 24 * time.Hour

	// absoluteMaxAge は期限の有無にかかわらず適用される絶対年齢上限。
	absoluteMaxAge = 90 * 24 * time.Hour
)

// IssueMetrics はトークン発行数の計測インターフェース。
// metrics.Collectorの部分集合として定義する。
type IssueMetrics interface {
	RecordTokenIssued()
}

// Manager はトークンのライフサイクルを管理する。
type Manager struct {
	repo    repository.TokenRepository
	metrics IssueMetrics // nil許容
}

// NewManager はManagerを生成する。metricsはnilでもよい。
func NewManager(repo repository.TokenRepository, metrics IssueMetrics) *Manager {
	return &Manager{repo: repo, metrics: metrics}
}

// Issue は新しいトークンを発行し、トークンIDと平文を返す。
// 平文はこの戻り値以外から取得する手段がない。
// abilitiesは呼び出し側が明示的に渡す許可リストで、空は許容しない
// （省略時に全権限が付与される抜け道を作らない）。
// ttlが0以下の場合は期限未設定のトークンとなるが、
// その場合でもプルーニングの絶対年齢上限の対象にはなる。
func (m *Manager) Issue(ctx context.Context, userID string, abilities []string, ttl time.Duration) (string, string, error) {
	if userID == "" {
		return "", "", fmt.Errorf("user ID is required")
	}
	if len(abilities) == 0 {
		return "", "", fmt.Errorf("at least one ability is required")
	}

	secret, err := generateSecret()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate token secret: %w", err)
	}

	now := time.Now()
	t := &model.Token{
		ID:         uuid.New().String(),
		UserID:     userID,
		SecretHash: hashSecret(secret),
		Abilities:  append([]string(nil), abilities...),
		CreatedAt:  now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		t.ExpiresAt = &expiresAt
	}

	if err := m.repo.Create(ctx, t); err != nil {
		return "", "", fmt.Errorf("failed to save token: %w", err)
	}

	if m.metrics != nil {
		m.metrics.RecordTokenIssued()
	}

	return t.ID, t.ID + "|" + secret, nil
}

// Authenticate は提示された平文トークンを検証し、認証主体を返す。
// 見つからない・ハッシュ不一致はErrTokenNotFound、
// 期限が設定されていて過ぎている場合はErrTokenExpiredを返す。
// 期限未設定のトークンはここでは拒否しない（古いものの回収はプルーニングの責務。
// リクエスト処理中に正当な長期セッションを締め出さないための分担）。
func (m *Manager) Authenticate(ctx context.Context, presented string) (*model.Principal, error) {
	id, secret, ok := strings.Cut(presented, "|")
	if !ok || id == "" || secret == "" {
		return nil, ErrTokenNotFound
	}

	t, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if t == nil {
		return nil, ErrTokenNotFound
	}

	if subtle.ConstantTimeCompare([]byte(hashSecret(secret)), []byte(t.SecretHash)) != 1 {
		return nil, ErrTokenNotFound
	}

	if t.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &model.Principal{
		UserID:    t.UserID,
		TokenID:   t.ID,
		Abilities: t.Abilities,
	}, nil
}

// RevokeCurrent は指定IDのトークンを1件だけ削除する。
// ログアウトで使用する。同一ユーザーの他のトークンには触れない。
func (m *Manager) RevokeCurrent(ctx context.Context, tokenID string) error {
	if tokenID == "" {
		return fmt.Errorf("token ID is required")
	}
	if err := m.repo.DeleteByID(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// CleanupUserTokens はログイン成功時の本人トークンの軽量掃除を行う。
// 期限切れ、絶対年齢上限（90日）超過、および期限未設定で30日より古い
// トークンを削除する。グローバルなプルーニングジョブとは独立に動作する。
func (m *Manager) CleanupUserTokens(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	deleted, err := m.repo.DeleteStaleByUserID(ctx, userID,
		now.Add(-unsetExpiryMaxAge), now.Add(-absoluteMaxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup user tokens: %w", err)
	}

	if deleted > 0 {
		slog.Info("stale tokens cleaned up at login",
			slog.String("user_id", userID),
			slog.Int64("deleted_count", deleted),
		)
	}
	return deleted, nil
}

// generateSecret は暗号的に安全なトークンシークレットを生成する。
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashSecret はシークレットの保存用ハッシュを計算する。
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
