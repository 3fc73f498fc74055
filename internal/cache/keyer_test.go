package cache

import (
	"net/url"
	"strings"
	"testing"
)

func TestDeriveKey_NoParams_ReturnsDefaultKey(t *testing.T) {
	key := DeriveKey(url.Values{})
	if key != "posts.default" {
		t.Errorf("key = %q, want %q", key, "posts.default")
	}
}

func TestDeriveKey_IgnoresUnknownParams(t *testing.T) {
	// 許可リスト外のパラメータのみ → デフォルトキーと同一
	key := DeriveKey(url.Values{"utm_source": {"mail"}, "callback": {"jsonp"}})
	if key != "posts.default" {
		t.Errorf("key = %q, want %q（ゴミパラメータはキーに参加しない）", key, "posts.default")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	params := url.Values{"search": {"golang"}, "page": {"2"}}

	first := DeriveKey(params)
	second := DeriveKey(params)
	if first != second {
		t.Errorf("同一パラメータから異なるキーが導出された: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "posts.") {
		t.Errorf("key = %q, want posts. プレフィックス", first)
	}
}

func TestDeriveKey_DifferentParamsDifferentKeys(t *testing.T) {
	a := DeriveKey(url.Values{"search": {"golang"}})
	b := DeriveKey(url.Values{"search": {"rust"}})
	if a == b {
		t.Errorf("異なる検索語から同一キーが導出された: %q", a)
	}
}

// 許可リスト外のパラメータを追加してもキーは変わらない
func TestDeriveKey_UnknownParamsDoNotChangeKey(t *testing.T) {
	base := DeriveKey(url.Values{"search": {"golang"}})
	polluted := DeriveKey(url.Values{"search": {"golang"}, "junk": {"1"}})
	if base != polluted {
		t.Errorf("許可リスト外のパラメータがキーに影響した: %q vs %q", base, polluted)
	}
}

func TestDeriveKey_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", 200)
	truncated := strings.Repeat("a", 50)

	a := DeriveKey(url.Values{"search": {long}})
	b := DeriveKey(url.Values{"search": {truncated}})
	if a != b {
		t.Errorf("50文字超の値は切り詰めて同一キーになるべき: %q vs %q", a, b)
	}
}

func TestDeriveKey_LargeCanonicalForm_UsesLargeQueryNamespace(t *testing.T) {
	// 6パラメータ×50文字でも正規形は1000バイトに届かないため、
	// このテストでは上限値の境界は正規形の構成から確認する。
	// 全パラメータを上限いっぱいで渡しても通常ネームスペースに収まる。
	params := url.Values{}
	for _, name := range whitelistedParams {
		params.Set(name, strings.Repeat("x", 50))
	}
	key := DeriveKey(params)
	if !strings.HasPrefix(key, "posts.") {
		t.Errorf("key = %q, want posts. プレフィックス", key)
	}
	if strings.HasPrefix(key, "posts.large_query_") {
		t.Errorf("値の切り詰め後の正規形が上限を超えることはない: %q", key)
	}
}

func TestDeriveKey_ParamOrderIndependent(t *testing.T) {
	// url.Valuesはマップなので挿入順は保持されないが、
	// 正規形は許可リストの固定順で構成されることを確認する
	a := url.Values{}
	a.Set("page", "2")
	a.Set("search", "golang")

	b := url.Values{}
	b.Set("search", "golang")
	b.Set("page", "2")

	if DeriveKey(a) != DeriveKey(b) {
		t.Error("パラメータの設定順がキーに影響した")
	}
}
