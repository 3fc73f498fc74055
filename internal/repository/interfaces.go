// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/blogapi/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email is already taken")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスが既に使用されている場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。
	// 比較は小文字正規化して行う。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenRepository はトークンデータの永続化インターフェース。
// 平文シークレットは保存せず、SecretHashのみを永続化する。
type TokenRepository interface {
	// Create はトークンを作成する。
	Create(ctx context.Context, token *model.Token) error

	// FindByID は指定IDのトークンを取得する。見つからない場合はnilを返す。
	// 期限切れの判定は呼び出し側（token.Manager）が行う。
	FindByID(ctx context.Context, id string) (*model.Token, error)

	// DeleteByID は指定IDのトークンを1件だけ削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteStaleByUserID は指定ユーザーの古いトークンを削除し、削除件数を返す。
	// 削除対象: 期限切れ、created_atがabsoluteCutoffより古い、
	// または期限未設定でcreated_atがunsetExpiryCutoffより古いトークン。
	DeleteStaleByUserID(ctx context.Context, userID string, unsetExpiryCutoff, absoluteCutoff time.Time) (int64, error)
}

// ListFilter は記事一覧の検証済みクエリ条件を表す。
// SortとDirectionは呼び出し側で許可リスト検証済みであることを前提とする。
type ListFilter struct {
	Search    string // タイトル・本文の部分一致検索（空なら無条件）
	UserID    string // 投稿者による絞り込み（空なら無条件）
	Sort      string // created_at / title / updated_at
	Direction string // asc / desc
	PerPage   int
	Page      int
}

// PostWithAuthor は記事と投稿者情報を結合した構造体。
type PostWithAuthor struct {
	model.Post
	AuthorName  string
	AuthorEmail string
}

// PostRepository は記事データの永続化インターフェース。
type PostRepository interface {
	// Create は記事を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの記事を投稿者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*PostWithAuthor, error)

	// Update は記事のタイトル・本文・更新日時を更新する。
	// user_idは更新対象に含めない（所有者は作成後に不変）。
	Update(ctx context.Context, post *model.Post) error

	// DeleteByID は指定IDの記事を削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は条件に合致する記事一覧と総件数を返す。
	List(ctx context.Context, filter ListFilter) ([]PostWithAuthor, int, error)
}
