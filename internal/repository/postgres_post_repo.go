package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/blogapi/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は記事を作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.UserID, post.Title, post.Content, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// FindByID は指定IDの記事を投稿者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*PostWithAuthor, error) {
	post := &PostWithAuthor{}
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		        u.name, u.email
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.id = $1`,
		id,
	).Scan(&post.ID, &post.UserID, &post.Title, &post.Content,
		&post.CreatedAt, &post.UpdatedAt, &post.AuthorName, &post.AuthorEmail)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

// Update は記事のタイトル・本文・更新日時を更新する。
// user_idは更新対象に含めない（所有者は作成後に不変）。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts
		 SET title = $2, content = $3, updated_at = $4
		 WHERE id = $1`,
		post.ID, post.Title, post.Content, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの記事を削除する。
func (r *PostgresPostRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// sortColumns はORDER BY句に埋め込めるカラム名の許可リスト。
// サービス層でも検証済みだが、動的な並び替え句は最終防衛線としてここでも弾く。
var sortColumns = map[string]string{
	"created_at": "p.created_at",
	"title":      "p.title",
	"updated_at": "p.updated_at",
}

// List は条件に合致する記事一覧と総件数を返す。
func (r *PostgresPostRepo) List(ctx context.Context, filter ListFilter) ([]PostWithAuthor, int, error) {
	column, ok := sortColumns[filter.Sort]
	if !ok {
		return nil, 0, fmt.Errorf("invalid sort column: %q", filter.Sort)
	}
	direction := "DESC"
	if strings.EqualFold(filter.Direction, "asc") {
		direction = "ASC"
	}

	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conditions = append(conditions,
			fmt.Sprintf("(p.title ILIKE $%d OR p.content ILIKE $%d)", n, n))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	// 総件数（メタ情報用）
	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM posts p WHERE %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	args = append(args, filter.PerPage, offset)
	query := fmt.Sprintf(
		`SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		        u.name, u.email
		 FROM posts p
		 JOIN users u ON u.id = p.user_id
		 WHERE %s
		 ORDER BY %s %s
		 LIMIT $%d OFFSET $%d`,
		where, column, direction, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []PostWithAuthor{}
	for rows.Next() {
		var post PostWithAuthor
		if err := rows.Scan(&post.ID, &post.UserID, &post.Title, &post.Content,
			&post.CreatedAt, &post.UpdatedAt, &post.AuthorName, &post.AuthorEmail); err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, total, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
