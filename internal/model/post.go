package model

import "time"

// Post はブログ記事を表す。
// UserIDは作成時に認証主体から強制設定され、以後変更されない。
// Titleはマークアップ除去済み、Contentはサニタイズ済みHTMLとして保存される。
type Post struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
