package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/repository"
)

// --- モック定義 ---

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.Session) error
	findByIDFn      func(ctx context.Context, id string) (*model.Session, error)
	updateFn        func(ctx context.Context, session *model.Session) error
	deleteByIDFn    func(ctx context.Context, id string) error
	deleteExpiredFn func(ctx context.Context) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) Update(ctx context.Context, session *model.Session) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// --- テスト ---

// Createがトークンとユーザーをペアで保存することを検証
func TestCreate_SavesTokenAndUserTogether(t *testing.T) {
	var saved *model.Session
	repo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			saved = session
			return nil
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	user := model.User{ID: "user-1", Email: "taro@example.com"}
	session, err := store.Create(context.Background(), "token-abc", user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if saved == nil {
		t.Fatal("session was not saved")
	}
	if saved.Token != "token-abc" {
		t.Errorf("saved.Token = %q, want %q", saved.Token, "token-abc")
	}
	if saved.User.ID != "user-1" {
		t.Errorf("saved.User.ID = %q, want %q", saved.User.ID, "user-1")
	}
	if session.ID == "" {
		t.Error("session ID should be generated")
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64 hex chars", len(session.ID))
	}
}

// Createが有効期限を設定することを検証
func TestCreate_SetsExpiry(t *testing.T) {
	repo := &mockSessionRepo{}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	before := time.Now()
	session, err := store.Create(context.Background(), "token", model.User{ID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantMin := before.Add(time.Hour)
	if session.ExpiresAt.Before(wantMin) {
		t.Errorf("ExpiresAt = %v, want at least %v", session.ExpiresAt, wantMin)
	}
}

// Getが空IDでnilを返すことを検証
func TestGet_EmptyID_ReturnsNil(t *testing.T) {
	called := false
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			called = true
			return nil, nil
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	session, err := store.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Error("expected nil session for empty ID")
	}
	if called {
		t.Error("repository should not be queried for empty ID")
	}
}

// Getが存在しないセッションでnilを返すことを検証
func TestGet_NotFound_ReturnsNil(t *testing.T) {
	repo := &mockSessionRepo{}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	session, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Error("expected nil session for missing ID")
	}
}

// Getがリポジトリエラーをラップして返すことを検証
func TestGet_RepoError_ReturnsError(t *testing.T) {
	repo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	_, err := store.Get(context.Background(), "some-id")
	if err == nil {
		t.Fatal("expected error")
	}
}

// Updateがトークンとスナップショットを同時に置き換えることを検証
func TestUpdate_ReplacesTokenAndUserTogether(t *testing.T) {
	var updated *model.Session
	repo := &mockSessionRepo{
		updateFn: func(ctx context.Context, session *model.Session) error {
			updated = session
			return nil
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	session := &model.Session{
		ID:    "sess-1",
		Token: "old-token",
		User:  model.User{ID: "u1", Name: "Old"},
	}
	profile := model.ProfileCoach
	newUser := model.User{ID: "u1", Name: "New", Profile: &profile}

	if err := store.Update(context.Background(), session, "new-token", newUser); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated == nil {
		t.Fatal("session was not updated")
	}
	if updated.Token != "new-token" {
		t.Errorf("updated.Token = %q, want %q", updated.Token, "new-token")
	}
	if updated.User.Name != "New" {
		t.Errorf("updated.User.Name = %q, want %q", updated.User.Name, "New")
	}
	if !updated.User.HasProfile() {
		t.Error("updated user should have a profile")
	}
}

// Clearが空IDでエラーにならないことを検証
func TestClear_EmptyID_NoError(t *testing.T) {
	repo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			t.Error("delete should not be called for empty ID")
			return nil
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	if err := store.Clear(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Clearがセッションを削除することを検証
func TestClear_DeletesSession(t *testing.T) {
	var deletedID string
	repo := &mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	store := NewStore(repo, StoreConfig{MaxAge: 3600})

	if err := store.Clear(context.Background(), "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deletedID != "sess-1" {
		t.Errorf("deleted ID = %q, want %q", deletedID, "sess-1")
	}
}

// 生成されるセッションIDが毎回異なることを検証
func TestGenerateSessionID_Unique(t *testing.T) {
	a, err := generateSessionID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := generateSessionID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Error("session IDs should be unique")
	}
}
