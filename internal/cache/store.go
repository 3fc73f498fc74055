// Package cache はTTL付きキーバリューストアと、
// 記事一覧クエリのキャッシュキー導出を提供する。
package cache

import (
	"sync"
	"time"
)

// Store はTTL付きキーバリューストアのインターフェース。
// グローバル変数ではなく依存として注入し、テストではフェイクに差し替える。
type Store interface {
	// Get はキーに対応する値を返す。存在しないか期限切れの場合はfalseを返す。
	Get(key string) (any, bool)
	// Set は値をTTL付きで保存する。同一キーへの書き込みは後勝ち。
	Set(key string, value any, ttl time.Duration)
}

// entry は値と有効期限の組。
type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryStore はプロセス内メモリのTTL付きストア。
// 読み取り多数を想定しRWMutexで保護する。ミス時に同一キーへ
// 複数の書き込みが競合しても後勝ちで問題ない（値は同一データの再計算）。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	stopCh  chan struct{}
}

// NewMemoryStore はMemoryStoreを生成する。
// バックグラウンドで期限切れエントリの定期クリーンアップを開始する。
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
	}

	go s.cleanupLoop(cleanupInterval)

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Get はキーに対応する値を返す。期限切れエントリは遅延削除する。
func (s *MemoryStore) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set は値をTTL付きで保存する。
func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は期限切れエントリを削除する。
func (s *MemoryStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
