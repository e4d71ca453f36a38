package workflow

import (
	"sync"
	"time"
)

// RegistryConfig はワークフローレジストリの設定。
type RegistryConfig struct {
	TTL             time.Duration // 最終アクセスからの保持期間
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRegistryConfig はデフォルトのレジストリ設定を返す。
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		TTL:             30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// registryEntry は保持中のワークフローとアクセス時刻。
type registryEntry struct {
	workflow   any
	sessionID  string
	lastAccess time.Time
}

// Registry はセッションとリソースの組ごとにワークフローを保持する。
// セッション破棄時にTeardownで、放置されたものはTTLで回収する。
type Registry struct {
	config RegistryConfig

	mu      sync.Mutex
	entries map[string]*registryEntry // キー: sessionID + "/" + resource

	stopCh chan struct{}
}

// NewRegistry は新しいRegistryを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRegistry(config RegistryConfig) *Registry {
	r := &Registry{
		config:  config,
		entries: make(map[string]*registryEntry),
		stopCh:  make(chan struct{}),
	}

	go r.cleanupLoop()

	return r
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (r *Registry) Stop() {
	close(r.stopCh)
}

// GetOrCreate はセッションとリソースの組のワークフローを取得する。
// 存在しない場合はbuildで生成して登録する。
func (r *Registry) GetOrCreate(sessionID, resource string, build func() any) any {
	key := sessionID + "/" + resource

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lastAccess = time.Now()
		return e.workflow
	}

	wf := build()
	r.entries[key] = &registryEntry{
		workflow:   wf,
		sessionID:  sessionID,
		lastAccess: time.Now(),
	}
	return wf
}

// Teardown はセッションに属するワークフローをすべて破棄する。ログアウト時に呼ぶ。
func (r *Registry) Teardown(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		if e.sessionID == sessionID {
			delete(r.entries, key)
		}
	}
}

// Count は保持中のエントリ数を返す。テストおよびメトリクス用。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスがTTLを超えたエントリを削除する。
func (r *Registry) cleanup() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		if now.Sub(e.lastAccess) > r.config.TTL {
			delete(r.entries, key)
		}
	}
}
