package cache

import (
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(time.Minute)
	t.Cleanup(s.Stop)
	return s
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := newTestStore(t)

	s.Set("key", "value", time.Minute)

	v, ok := s.Get("key")
	if !ok {
		t.Fatal("保存した値が取得できない")
	}
	if v != "value" {
		t.Errorf("value = %v, want %q", v, "value")
	}
}

func TestMemoryStore_MissingKey(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.Get("missing"); ok {
		t.Error("存在しないキーで ok=true が返った")
	}
}

func TestMemoryStore_ExpiredEntry_IsRemovedLazily(t *testing.T) {
	s := newTestStore(t)

	s.Set("key", "value", -time.Second) // 既に期限切れ

	if _, ok := s.Get("key"); ok {
		t.Fatal("期限切れエントリが返された")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0（期限切れは遅延削除されるべき）", s.Len())
	}
}

func TestMemoryStore_OverwriteWins(t *testing.T) {
	s := newTestStore(t)

	s.Set("key", "old", time.Minute)
	s.Set("key", "new", time.Minute)

	v, _ := s.Get("key")
	if v != "new" {
		t.Errorf("value = %v, want %q（後勝ち）", v, "new")
	}
}

func TestMemoryStore_StoresArbitraryValues(t *testing.T) {
	s := newTestStore(t)

	type payload struct{ Total int }
	s.Set("key", &payload{Total: 42}, time.Minute)

	v, ok := s.Get("key")
	if !ok {
		t.Fatal("保存した値が取得できない")
	}
	p, ok := v.(*payload)
	if !ok {
		t.Fatalf("型が保持されていない: %T", v)
	}
	if p.Total != 42 {
		t.Errorf("Total = %d, want 42", p.Total)
	}
}

func TestMemoryStore_BackgroundCleanup_RemovesExpired(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	defer s.Stop()

	s.Set("expired", "v", time.Millisecond)
	s.Set("alive", "v", time.Minute)

	// クリーンアップが走るのを待つ
	deadline := time.After(time.Second)
	for s.Len() > 1 {
		select {
		case <-deadline:
			t.Fatalf("クリーンアップが期限切れエントリを削除しなかった。Len() = %d", s.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := s.Get("alive"); !ok {
		t.Error("有効なエントリまで削除された")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set("shared", j, time.Minute)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Get("shared")
			}
		}()
	}
	wg.Wait()
}
