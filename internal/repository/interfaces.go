// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/runquest/internal/model"
)

// SessionRepository はセッションデータの永続化インターフェース。
// トークンとユーザースナップショットは常に1レコードとして原子的に読み書きする。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。
	// 期限切れ、または保存されたユーザースナップショットが解析不能な場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update はトークンとユーザースナップショットを1回のUPDATEで置き換える。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションをまとめて削除する。
	DeleteExpired(ctx context.Context) (int64, error)
}
