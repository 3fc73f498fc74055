// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
)

// APIError は統一エラーフォーマットを表す。
// Summaryがレスポンスのerrorフィールド、Messageがmessageフィールドに載る。
type APIError struct {
	Code    string // エラーコード
	Summary string // 短い見出し（レスポンスのerror）
	Message string // 説明（レスポンスのmessage）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Summary)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeForbiddenAbility   = "FORBIDDEN_ABILITY"
	ErrCodeNotOwner           = "NOT_OWNER"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Summary: "Unauthenticated",
		Message: "A valid bearer token is required.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無を区別しない定型メッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCredentials,
		Summary: "The provided credentials are incorrect.",
		Message: "The provided credentials are incorrect.",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:    ErrCodeTokenExpired,
		Summary: "Unauthenticated",
		Message: "The provided token has expired.",
	}
}

// NewForbiddenAbilityError はアビリティ不足エラーを生成する。
func NewForbiddenAbilityError(ability string) *APIError {
	return &APIError{
		Code:    ErrCodeForbiddenAbility,
		Summary: "Forbidden",
		Message: fmt.Sprintf("The token is missing the %q ability.", ability),
	}
}

// NewNotOwnerError は所有者以外による書き込みの拒否エラーを生成する。
// actionは"update"または"delete"。
func NewNotOwnerError(action string) *APIError {
	return &APIError{
		Code:    ErrCodeNotOwner,
		Summary: "Unauthorized",
		Message: fmt.Sprintf("You can only %s your own posts", action),
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodePostNotFound,
		Summary: "Post not found",
		Message: "The requested post does not exist",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Summary: "User not found",
		Message: "The requested user does not exist",
	}
}

// ValidationError はフィールド単位のバリデーションエラーを表す。
// 422レスポンスの {error: "Validation failed", messages: {...}} に対応する。
type ValidationError struct {
	Messages map[string][]string
}

// NewValidationError は空のValidationErrorを生成する。
func NewValidationError() *ValidationError {
	return &ValidationError{Messages: make(map[string][]string)}
}

// Add はフィールドにエラーメッセージを追加する。
func (e *ValidationError) Add(field, message string) {
	e.Messages[field] = append(e.Messages[field], message)
}

// HasErrors は1件以上のエラーを保持しているかを返す。
func (e *ValidationError) HasErrors() bool {
	return len(e.Messages) > 0
}

// Error はerrorインターフェースを実装する。
// フィールド名をソートして決定的なメッセージを返す。
func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Messages))
	for f := range e.Messages {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %v", fields)
}
