package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/blogapi/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンを作成する。
// アビリティはカンマ区切りのTEXTとして保存する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.Token) error {
	var expiresAt sql.NullTime
	if token.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *token.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, user_id, secret_hash, abilities, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.SecretHash,
		strings.Join(token.Abilities, ","), token.CreatedAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindByID は指定IDのトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByID(ctx context.Context, id string) (*model.Token, error) {
	token := &model.Token{}
	var abilities string
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, secret_hash, abilities, created_at, expires_at
		 FROM tokens
		 WHERE id = $1`,
		id,
	).Scan(&token.ID, &token.UserID, &token.SecretHash, &abilities, &token.CreatedAt, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	if abilities != "" {
		token.Abilities = strings.Split(abilities, ",")
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		token.ExpiresAt = &t
	}

	return token, nil
}

// DeleteByID は指定IDのトークンを1件だけ削除する。
// ログアウトは現在のトークンのみを失効させる（同一ユーザーの他セッションは残す）。
func (r *PostgresTokenRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteStaleByUserID は指定ユーザーの古いトークンを削除し、削除件数を返す。
func (r *PostgresTokenRepo) DeleteStaleByUserID(ctx context.Context, userID string, unsetExpiryCutoff, absoluteCutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens
		 WHERE user_id = $1
		   AND (expires_at < now()
		     OR created_at < $2
		     OR (expires_at IS NULL AND created_at < $3))`,
		userID, absoluteCutoff, unsetExpiryCutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted tokens: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
