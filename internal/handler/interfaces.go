// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"time"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/notify"
	"github.com/hitoshi/runquest/internal/questapi"
)

// AuthAPI は認証・アカウント系の上流操作。questapi.Clientの部分集合。
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*questapi.AuthResult, error)
	SignUp(ctx context.Context, name, email, password string) (*questapi.AuthResult, error)
	SignInProvider(ctx context.Context, idToken string) (*questapi.AuthResult, error)
	UpdateProfile(ctx context.Context, token string, profile model.Profile) (*questapi.AuthResult, error)
	UpdateUser(ctx context.Context, token, name string) (*model.User, error)
	UpdatePassword(ctx context.Context, token, oldPassword, newPassword string) error
	DeleteUser(ctx context.Context, token string) error
	RequestRecovery(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, recoveryToken, password string) error
}

// ActivityAPI はアクティビティ系の上流操作。questapi.Clientの部分集合。
type ActivityAPI interface {
	ListActivities(ctx context.Context, token string, memberID *string) ([]model.Activity, error)
	ListWeekActivities(ctx context.Context, token string, startAt time.Time) ([]model.DaySchedule, error)
	CreateActivity(ctx context.Context, token string, in questapi.ActivityInput) (*model.Activity, error)
	UpdateActivity(ctx context.Context, token, id string, in questapi.ActivityInput) (*model.Activity, error)
	DeleteActivity(ctx context.Context, token, id string) error
}

// TypeAPI はアクティビティ種別系の上流操作。questapi.Clientの部分集合。
type TypeAPI interface {
	ListTypes(ctx context.Context, token string) ([]model.ActivityType, error)
	CreateType(ctx context.Context, token, typeName, description string) (*model.ActivityType, error)
	UpdateType(ctx context.Context, token, id, typeName, description string) (*model.ActivityType, error)
	DeleteType(ctx context.Context, token, id string) error
}

// TeamAPI はチーム系の上流操作。questapi.Clientの部分集合。
type TeamAPI interface {
	ListCoachTeams(ctx context.Context, token string) ([]model.Team, error)
	ListAthleteTeams(ctx context.Context, token string) (*model.AthleteTeams, error)
	GetTeam(ctx context.Context, token, id string) (*model.TeamDetail, error)
	CreateTeam(ctx context.Context, token, name, description string, members []string) (*model.Team, error)
	UpdateTeam(ctx context.Context, token, id, name, description string) (*model.Team, error)
	DeleteTeam(ctx context.Context, token, id string) error
	CreateMembers(ctx context.Context, token, teamID string, members []string) error
	DeleteMember(ctx context.Context, token, memberID string) error
	AcceptInvitation(ctx context.Context, token, invitationID string) error
}

// SessionStore はセッションのライフサイクル操作。session.Storeの部分集合。
type SessionStore interface {
	Create(ctx context.Context, token string, user model.User) (*model.Session, error)
	Update(ctx context.Context, session *model.Session, token string, user model.User) error
	Clear(ctx context.Context, id string) error
}

// NotificationCenter は通知の蓄積と払い出し。notify.Centerの部分集合。
type NotificationCenter interface {
	Success(sessionID, message string)
	Error(sessionID, message string)
	Drain(sessionID string) []notify.Notification
	ClearSession(sessionID string)
}

// WorkflowRegistry はセッションごとのワークフローの保持。workflow.Registryの部分集合。
type WorkflowRegistry interface {
	GetOrCreate(sessionID, resource string, build func() any) any
	Teardown(sessionID string)
}
