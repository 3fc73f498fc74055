// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は投稿コンテンツを保存前にサニタイズし、
// XSS攻撃などのセキュリティリスクから読者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrUnsafeContent はフィルタ通過後もjavascript:が残存した場合に返す。
// フィルタバイパスとみなし、保存せず拒否する（多層防御）。
var ErrUnsafeContent = errors.New("content failed sanitization")

// ContentSanitizer は記事タイトルと本文のサニタイズを提供する。
// ポリシーは初期化時に構築し、スレッドセーフに使い回す。
type ContentSanitizer struct {
	titlePolicy   *bluemonday.Policy
	contentPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// 本文ポリシーの内容:
//   - 許可タグ: p, br, b, i, u, strong, em, ul, ol, li,
//     blockquote, pre, code, h1〜h6, a（href/title属性のみ）
//   - 許可URLスキーム: http, https, mailto。相対URLは不許可。
//   - img, script, iframe, object等は許可リストに含めないことで除去される。
//     外部リソースの埋め込みは一切許可しない。
//
// タイトルポリシーは全タグを除去し、残ったテキストをエスケープする。
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "b", "i", "u", "strong", "em",
		"ul", "ol", "li", "blockquote", "pre", "code",
		"h1", "h2", "h3", "h4", "h5", "h6",
	)

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)

	return &ContentSanitizer{
		titlePolicy:   bluemonday.StrictPolicy(),
		contentPolicy: p,
	}
}

// SanitizeTitle はタイトルから全てのマークアップを除去し、
// 残った特殊文字をエスケープ済みの形で返す。
func (s *ContentSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(s.titlePolicy.Sanitize(raw))
}

// SanitizeContent は本文を許可リストフィルタに通して安全なHTMLを返す。
// フィルタ後の出力にまだjavascript:が（大文字小文字を問わず）含まれる場合は
// ErrUnsafeContentを返し、呼び出し側はバリデーションエラーとして扱う。
func (s *ContentSanitizer) SanitizeContent(raw string) (string, error) {
	clean := s.contentPolicy.Sanitize(raw)
	if strings.Contains(strings.ToLower(clean), "javascript:") {
		return "", ErrUnsafeContent
	}
	return clean, nil
}

// ContainsRawScript は生の入力に<script>タグまたはjavascript: URIが
// 含まれるかを判定する。バリデーション層での事前拒否に使用する
// （422でcontentフィールドにエラーを返すため、サニタイズより先に検査する）。
func ContainsRawScript(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:")
}
