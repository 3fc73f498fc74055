// Package handler はHTTPハンドラーを提供する。
// サービス層のエラーを統一フォーマットのJSONレスポンスに変換する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogapi/internal/model"
)

// errorResponse は {error, message} 形式のエラーレスポンス。
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// validationResponse は422バリデーションエラーのレスポンス。
type validationResponse struct {
	Error    string              `json:"error"`
	Messages map[string][]string `json:"messages"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError は単純なエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, statusCode int, summary, message string) {
	writeJSON(w, statusCode, errorResponse{Error: summary, Message: message})
}

// writeValidationError は422バリデーションエラーを書き込む。
func writeValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Error:    "Validation failed",
		Messages: verr.Messages,
	})
}

// statusForCode はAPIErrorのコードをHTTPステータスコードに対応づける。
var statusForCode = map[string]int{
	model.ErrCodeUnauthenticated:    http.StatusUnauthorized,
	model.ErrCodeInvalidCredentials: http.StatusUnauthorized,
	model.ErrCodeTokenExpired:       http.StatusUnauthorized,
	model.ErrCodeForbiddenAbility:   http.StatusForbidden,
	model.ErrCodeNotOwner:           http.StatusForbidden,
	model.ErrCodePostNotFound:       http.StatusNotFound,
	model.ErrCodeUserNotFound:       http.StatusNotFound,
}

// writeServiceError はサービス層のエラーを適切なレスポンスに変換する。
// 分類できないエラーは500として記録する。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeValidationError(w, verr)
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status, ok := statusForCode[apiErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		// 401系はmessageを持たないレスポンス形式を維持する
		if status == http.StatusUnauthorized && apiErr.Code == model.ErrCodeInvalidCredentials {
			writeJSON(w, status, errorResponse{Error: apiErr.Summary})
			return
		}
		writeError(w, status, apiErr.Summary, apiErr.Message)
		return
	}

	slog.Error("unhandled service error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred.")
}
