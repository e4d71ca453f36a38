// Package session はブラウザセッションの発行・参照・更新を提供する。
// 上流APIのbearerトークンとユーザースナップショットは常にペアで扱い、
// どちらか片方だけを書き換える操作は存在しない。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/repository"
)

// CookieName はセッションIDを保持するクッキー名。
const CookieName = "runquest_session"

// StoreConfig はセッションストアの設定。
type StoreConfig struct {
	MaxAge int // セッション有効期間（秒）
}

// Store はセッションのライフサイクルを管理する。
type Store struct {
	repo   repository.SessionRepository
	config StoreConfig
}

// NewStore はStoreを生成する。
func NewStore(repo repository.SessionRepository, config StoreConfig) *Store {
	return &Store{repo: repo, config: config}
}

// Create は新しいセッションを発行し永続化する。
// トークンとユーザースナップショットは1回の書き込みでペアとして保存される。
func (s *Store) Create(ctx context.Context, token string, user model.User) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		Token:     token,
		User:      user,
		ExpiresAt: now.Add(time.Duration(s.config.MaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Get は指定IDのセッションを取得する。
// 存在しない・期限切れ・スナップショット解析不能の場合はnilを返す（フェイルクローズ）。
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Update はセッションのトークンとユーザースナップショットを原子的に置き換える。
// プロフィール選択や名前変更など、上流がユーザーを再発行するたびに呼ばれる。
func (s *Store) Update(ctx context.Context, session *model.Session, token string, user model.User) error {
	session.Token = token
	session.User = user

	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Clear はセッションを破棄する。存在しないIDでもエラーにしない。
func (s *Store) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session cleared", slog.String("session_id", id))
	return nil
}

// StartCleanup は期限切れセッションを定期削除するゴルーチンを起動する。
// ctxがキャンセルされると停止する。
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.repo.DeleteExpired(ctx)
				if err != nil {
					slog.Error("failed to delete expired sessions", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					slog.Info("expired sessions deleted", slog.Int64("count", n))
				}
			}
		}
	}()
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
