// Package notify はセッションごとの通知（トースト）の蓄積と払い出しを提供する。
// 通知は積み重なり（新しい通知が古い通知を消すことはない）、
// 一定時間表示されなかった通知は自動的に破棄される。
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level は通知の種別。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification はUIに表示する通知1件を表す。
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// entry は保持中の通知と破棄期限。
type entry struct {
	notification Notification
	expiresAt    time.Time
}

// CenterConfig は通知センターの設定。
type CenterConfig struct {
	TTL             time.Duration // 払い出されなかった通知の保持期間
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultCenterConfig はデフォルトの通知センター設定を返す。
func DefaultCenterConfig() CenterConfig {
	return CenterConfig{
		TTL:             30 * time.Second,
		CleanupInterval: time.Minute,
	}
}

// Center はセッションごとの通知キューを管理する。
type Center struct {
	config CenterConfig

	mu        sync.Mutex
	bySession map[string][]entry

	stopCh chan struct{}
}

// NewCenter は新しいCenterを生成する。
// バックグラウンドで期限切れ通知のクリーンアップを開始する。
func NewCenter(config CenterConfig) *Center {
	c := &Center{
		config:    config,
		bySession: make(map[string][]entry),
		stopCh:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (c *Center) Stop() {
	close(c.stopCh)
}

// Success は成功通知を積む。
func (c *Center) Success(sessionID, message string) {
	c.push(sessionID, LevelSuccess, message)
}

// Error は失敗通知を積む。
func (c *Center) Error(sessionID, message string) {
	c.push(sessionID, LevelError, message)
}

// push は通知をセッションのキューの末尾に追加する。
func (c *Center) push(sessionID string, level Level, message string) {
	if sessionID == "" {
		return
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bySession[sessionID] = append(c.bySession[sessionID], entry{
		notification: Notification{
			ID:        uuid.New().String(),
			Level:     level,
			Message:   message,
			CreatedAt: now,
		},
		expiresAt: now.Add(c.config.TTL),
	})
}

// Drain はセッションの未表示通知をすべて払い出し、キューを空にする。
// 期限切れの通知は払い出されない。通知がない場合は空のスライスを返す。
func (c *Center) Drain(sessionID string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.bySession[sessionID]
	delete(c.bySession, sessionID)

	now := time.Now()
	notifications := make([]Notification, 0, len(entries))
	for _, e := range entries {
		if now.Before(e.expiresAt) {
			notifications = append(notifications, e.notification)
		}
	}
	return notifications
}

// ClearSession はセッションの通知をすべて破棄する。ログアウト時に呼ぶ。
func (c *Center) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bySession, sessionID)
}

// PendingCount は保持中の通知数を返す。テストおよびメトリクス用。
func (c *Center) PendingCount(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bySession[sessionID])
}

// cleanupLoop はバックグラウンドで期限切れ通知を定期的にクリーンアップする。
func (c *Center) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup は期限切れの通知を削除し、空になったセッションのキューを外す。
func (c *Center) cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for sessionID, entries := range c.bySession {
		kept := entries[:0]
		for _, e := range entries {
			if now.Before(e.expiresAt) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.bySession, sessionID)
			continue
		}
		c.bySession[sessionID] = kept
	}
}
