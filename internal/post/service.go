// Package post は記事CRUDのドメインロジックを提供する。
// 書き込み経路は バリデーション → サニタイズ → 認可 → 永続化 の順で、
// 暗黙のフックに頼らず明示的な関数呼び出しで構成する。
package post

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/blogapi/internal/cache"
	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/policy"
	"github.com/hitoshi/blogapi/internal/repository"
	"github.com/hitoshi/blogapi/internal/security"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
	maxTitleLen    = 255
)

// Sanitizer はコンテンツサニタイズのインターフェース。
// security.ContentSanitizerの部分集合として定義する。
type Sanitizer interface {
	SanitizeTitle(raw string) string
	SanitizeContent(raw string) (string, error)
}

// CacheMetrics は一覧キャッシュのヒット率計測インターフェース。
type CacheMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Service は記事管理のサービス層。
type Service struct {
	repo      repository.PostRepository
	sanitizer Sanitizer
	cache     cache.Store
	cacheTTL  time.Duration
	metrics   CacheMetrics // nil許容
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(repo repository.PostRepository, sanitizer Sanitizer, store cache.Store, cacheTTL time.Duration, metrics CacheMetrics) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		cache:     store,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
	}
}

// ListQuery は検証・クランプ済みの一覧クエリ。
type ListQuery struct {
	Search    string
	UserID    string
	Sort      string
	Direction string
	PerPage   int
	Page      int
}

// allowedSorts はORDER BYに使えるカラムの許可リスト。
var allowedSorts = map[string]bool{
	"created_at": true,
	"title":      true,
	"updated_at": true,
}

// ParseListQuery は生のクエリパラメータを検証済みのListQueryに変換する。
// sort / direction は許可リスト照合（外れたらデフォルト値）、
// per_page は[1, 100]にクランプする。動的な並び替え句への注入と
// 過大な結果セットをここで確実に防ぐ。キャッシュキーへの参加とは独立。
func ParseListQuery(params url.Values) ListQuery {
	q := ListQuery{
		Search:    params.Get("search"),
		UserID:    params.Get("user_id"),
		Sort:      "created_at",
		Direction: "desc",
		PerPage:   defaultPerPage,
		Page:      1,
	}

	if sort := params.Get("sort"); allowedSorts[sort] {
		q.Sort = sort
	}

	switch strings.ToLower(params.Get("direction")) {
	case "asc":
		q.Direction = "asc"
	case "desc":
		q.Direction = "desc"
	}

	if v, err := strconv.Atoi(params.Get("per_page")); err == nil {
		q.PerPage = v
	}
	if q.PerPage < 1 {
		q.PerPage = 1
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}

	if v, err := strconv.Atoi(params.Get("page")); err == nil && v > 1 {
		q.Page = v
	}

	return q
}

// ListResult はページネーション付きの一覧結果。
type ListResult struct {
	Posts    []repository.PostWithAuthor
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

// List は記事一覧を返す。公開読み取りで認証不要。
// 結果は生パラメータの許可サブセットから導出したキーでTTL付きキャッシュする。
// 書き込み時の明示的な無効化はしない（TTLぶんの古さは許容する）。
func (s *Service) List(ctx context.Context, params url.Values) (*ListResult, error) {
	key := cache.DeriveKey(params)

	if cached, ok := s.cache.Get(key); ok {
		if result, ok := cached.(*ListResult); ok {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			return result, nil
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	q := ParseListQuery(params)
	posts, total, err := s.repo.List(ctx, repository.ListFilter{
		Search:    q.Search,
		UserID:    q.UserID,
		Sort:      q.Sort,
		Direction: q.Direction,
		PerPage:   q.PerPage,
		Page:      q.Page,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	lastPage := (total + q.PerPage - 1) / q.PerPage
	if lastPage < 1 {
		lastPage = 1
	}

	result := &ListResult{
		Posts:    posts,
		Total:    total,
		Page:     q.Page,
		PerPage:  q.PerPage,
		LastPage: lastPage,
	}

	s.cache.Set(key, result, s.cacheTTL)

	return result, nil
}

// Get は記事を1件返す。見つからない場合はnilを返す。公開読み取り。
func (s *Service) Get(ctx context.Context, id string) (*repository.PostWithAuthor, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// CreateInput は記事作成リクエストの許可フィールド。
// 所有者フィールドを持たない: 所有者は常に認証主体から強制設定され、
// クライアントがボディで指定したuser_idは永続化に到達しない。
type CreateInput struct {
	Title   string
	Content string
}

// Create は記事を作成する。
// 所有者は認証主体のユーザーIDに強制される。
func (s *Service) Create(ctx context.Context, principal *model.Principal, in CreateInput) (*repository.PostWithAuthor, error) {
	if err := policy.Authorize(principal, policy.ActionCreate, nil); err != nil {
		return nil, err
	}

	verr := model.NewValidationError()
	validateTitle(in.Title, verr)
	validateContent(in.Content, verr)
	if verr.HasErrors() {
		return nil, verr
	}

	cleanTitle := s.sanitizer.SanitizeTitle(in.Title)
	cleanContent, err := s.sanitizer.SanitizeContent(in.Content)
	if err != nil {
		verr.Add("content", "The content contains disallowed markup.")
		return nil, verr
	}

	now := time.Now()
	post := &model.Post{
		ID:        uuid.New().String(),
		UserID:    principal.UserID,
		Title:     cleanTitle,
		Content:   cleanContent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	created, err := s.repo.FindByID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load created post: %w", err)
	}
	return created, nil
}

// UpdateInput は記事更新リクエストの許可フィールド。nilのフィールドは変更しない。
type UpdateInput struct {
	Title   *string
	Content *string
}

// Update は記事を部分更新する。所有者のみが実行できる。
func (s *Service) Update(ctx context.Context, principal *model.Principal, id string, in UpdateInput) (*repository.PostWithAuthor, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if existing == nil {
		return nil, model.NewPostNotFoundError()
	}

	if err := policy.Authorize(principal, policy.ActionUpdate, &existing.Post); err != nil {
		return nil, err
	}

	verr := model.NewValidationError()
	if in.Title != nil {
		validateTitle(*in.Title, verr)
	}
	if in.Content != nil {
		validateContent(*in.Content, verr)
	}
	if verr.HasErrors() {
		return nil, verr
	}

	updated := existing.Post
	if in.Title != nil {
		updated.Title = s.sanitizer.SanitizeTitle(*in.Title)
	}
	if in.Content != nil {
		clean, err := s.sanitizer.SanitizeContent(*in.Content)
		if err != nil {
			verr.Add("content", "The content contains disallowed markup.")
			return nil, verr
		}
		updated.Content = clean
	}
	updated.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load updated post: %w", err)
	}
	return result, nil
}

// Delete は記事を削除する。所有者のみが実行できる。
func (s *Service) Delete(ctx context.Context, principal *model.Principal, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find post: %w", err)
	}
	if existing == nil {
		return model.NewPostNotFoundError()
	}

	if err := policy.Authorize(principal, policy.ActionDestroy, &existing.Post); err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// validateTitle はタイトルの必須・長さを検証する。
func validateTitle(title string, verr *model.ValidationError) {
	if strings.TrimSpace(title) == "" {
		verr.Add("title", "The title field is required.")
	} else if len(title) > maxTitleLen {
		verr.Add("title", "The title may not be greater than 255 characters.")
	}
}

// validateContent は本文の必須と危険なマークアップを検証する。
// 生の<script>タグとjavascript: URIはサニタイズより前に422で拒否する。
func validateContent(content string, verr *model.ValidationError) {
	if strings.TrimSpace(content) == "" {
		verr.Add("content", "The content field is required.")
		return
	}
	if security.ContainsRawScript(content) {
		verr.Add("content", "The content contains disallowed markup.")
	}
}
