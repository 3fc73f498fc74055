package model

import "time"

// 発行トークンに付与するアビリティ。
// 登録・ログイン時に明示的にこのセットを渡す（暗黙の全権限付与はしない）。
const (
	AbilityPostsRead   = "posts:read"
	AbilityPostsWrite  = "posts:write-own"
	AbilityProfileRead = "profile:read"
	AbilityAuthLogout  = "auth:logout"
)

// DefaultTokenAbilities は登録・ログイン時に発行するアビリティセットを返す。
func DefaultTokenAbilities() []string {
	return []string{
		AbilityPostsRead,
		AbilityPostsWrite,
		AbilityProfileRead,
		AbilityAuthLogout,
	}
}

// Token はベアラートークンのメタデータを表す。
// 平文シークレットは発行時に一度だけ返し、保存するのはSHA-256ハッシュのみ。
// ExpiresAtがnilのトークンは「明示的な期限なし」だが、
// プルーニングの絶対年齢上限（90日）の対象にはなる。
type Token struct {
	ID         string
	UserID     string
	SecretHash string
	Abilities  []string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

// Expired は期限が設定されており、かつ過ぎているかを返す。
// 期限未設定のトークンはここでは期限切れ扱いにしない（プルーニングの責務）。
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
