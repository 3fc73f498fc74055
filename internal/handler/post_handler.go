package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogapi/internal/middleware"
	"github.com/hitoshi/blogapi/internal/model"
	"github.com/hitoshi/blogapi/internal/post"
	"github.com/hitoshi/blogapi/internal/repository"
)

// excerptLen は一覧・詳細レスポンスに含める抜粋の最大文字数。
const excerptLen = 100

// PostServiceInterface は記事サービスのインターフェース。
type PostServiceInterface interface {
	List(ctx context.Context, params url.Values) (*post.ListResult, error)
	Get(ctx context.Context, id string) (*repository.PostWithAuthor, error)
	Create(ctx context.Context, principal *model.Principal, in post.CreateInput) (*repository.PostWithAuthor, error)
	Update(ctx context.Context, principal *model.Principal, id string, in post.UpdateInput) (*repository.PostWithAuthor, error)
	Delete(ctx context.Context, principal *model.Principal, id string) error
}

// PostHandler は記事CRUDのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// authorResponse は記事レスポンスに埋め込む著者表現。
type authorResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// linksResponse は記事リソースへのリンク集合。
type linksResponse struct {
	Self   string `json:"self"`
	Author string `json:"author"`
}

// postResponse は記事リソースのレスポンス表現。
type postResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Excerpt   string         `json:"excerpt"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Author    authorResponse `json:"author"`
	Links     linksResponse  `json:"links"`
}

// excerpt は本文の先頭excerptLen文字を返す。
// 切り詰めた場合は末尾に"..."を付ける。マルチバイトを壊さないようルーン単位で数える。
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLen {
		return content
	}
	return string(runes[:excerptLen]) + "..."
}

func toPostResponse(p *repository.PostWithAuthor) postResponse {
	return postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Excerpt:   excerpt(p.Content),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Author: authorResponse{
			ID:    p.UserID,
			Name:  p.AuthorName,
			Email: p.AuthorEmail,
		},
		Links: linksResponse{
			Self:   fmt.Sprintf("/posts/%s", p.ID),
			Author: fmt.Sprintf("/users/%s", p.UserID),
		},
	}
}

// listMeta はページネーションのメタ情報。
type listMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// listResponse は記事一覧のレスポンス。
type listResponse struct {
	Data []postResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

// List は GET /posts を処理する。認証不要の公開読み取り。
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	data := make([]postResponse, 0, len(result.Posts))
	for i := range result.Posts {
		data = append(data, toPostResponse(&result.Posts[i]))
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data: data,
		Meta: listMeta{
			CurrentPage: result.Page,
			PerPage:     result.PerPage,
			Total:       result.Total,
			LastPage:    result.LastPage,
		},
	})
}

// Get は GET /posts/{id} を処理する。認証不要の公開読み取り。
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if p == nil {
		apiErr := model.NewPostNotFoundError()
		writeError(w, http.StatusNotFound, apiErr.Summary, apiErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]postResponse{"data": toPostResponse(p)})
}

// createRequest は記事作成リクエストのボディ。
// user_id等の想定外フィールドは黙って捨てられ、所有者は認証主体から決まる。
type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create は POST /posts を処理する。
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "The request body must be valid JSON.")
		return
	}

	created, err := h.service.Create(r.Context(), principal, post.CreateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]postResponse{"data": toPostResponse(created)})
}

// updateRequest は記事更新リクエストのボディ。nilのフィールドは変更しない。
type updateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Update は PUT /posts/{id} を処理する。所有者のみ。
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "The request body must be valid JSON.")
		return
	}

	id := chi.URLParam(r, "id")
	updated, err := h.service.Update(r.Context(), principal, id, post.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]postResponse{"data": toPostResponse(updated)})
}

// Delete は DELETE /posts/{id} を処理する。所有者のみ。
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthenticated", "A valid bearer token is required.")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted successfully"})
}
