// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// メールアドレスは小文字に正規化して保存し、大文字小文字を区別せず一意とする。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal はトークン検証を通過したリクエストの認証主体を表す。
// ミドルウェアがリクエストコンテキストに注入する。
type Principal struct {
	UserID    string
	TokenID   string
	Abilities []string
}

// HasAbility は指定のアビリティが付与されているかを返す。
func (p *Principal) HasAbility(ability string) bool {
	for _, a := range p.Abilities {
		if a == ability {
			return true
		}
	}
	return false
}
