package cache

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// whitelistedParams はキャッシュキーに参加できるクエリパラメータの許可リスト。
// 順序はそのまま正規形の並び順になる（安定したフィールド順）。
// 許可リスト外のパラメータは無視し、ゴミパラメータによる
// キー爆発・キャッシュ汚染を防ぐ。
var whitelistedParams = []string{"search", "user_id", "sort", "direction", "per_page", "page"}

const (
	// maxValueLen はキー導出に使う文字列値の上限。
	// 敵対的に長い入力によるキー導出コストを抑える。
	maxValueLen = 50

	// maxCanonicalLen を超える正規形は別ネームスペースに振り分ける。
	// 正しさには影響せず、ヒット率の診断を分けやすくするため。
	maxCanonicalLen = 1000

	defaultKey       = "posts.default"
	keyPrefix        = "posts."
	largeQueryPrefix = "posts.large_query_"
)

// DeriveKey は一覧クエリパラメータからキャッシュキーを導出する。
// 許可リストのパラメータのみを固定順で正規化し、xxhashで要約する
// （偶発的な衝突を避ければ十分で、暗号学的強度は不要）。
// 許可パラメータが1つもない場合はハッシュせず固定キーを返す。
func DeriveKey(params url.Values) string {
	pairs := make([]string, 0, len(whitelistedParams))
	for _, name := range whitelistedParams {
		if !params.Has(name) {
			continue
		}
		v := params.Get(name)
		if len(v) > maxValueLen {
			v = v[:maxValueLen]
		}
		pairs = append(pairs, name+"="+v)
	}

	if len(pairs) == 0 {
		return defaultKey
	}

	canonical := strings.Join(pairs, "&")
	digest := strconv.FormatUint(xxhash.Sum64String(canonical), 16)

	if len(canonical) > maxCanonicalLen {
		return largeQueryPrefix + digest
	}
	return keyPrefix + digest
}
