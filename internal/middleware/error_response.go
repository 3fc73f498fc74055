package middleware

import (
	"encoding/json"
	"net/http"
)

// errorResponseBody はミドルウェア層のエラーレスポンスの形。
type errorResponseBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSONError はJSON形式のエラーレスポンスを書き込む。
// ミドルウェア層の401/429/500で使用する。詳細はログのみに記録し、
// 内部情報はレスポンスに載せない。
func writeJSONError(w http.ResponseWriter, statusCode int, summary, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponseBody{
		Error:   summary,
		Message: message,
	})
}
