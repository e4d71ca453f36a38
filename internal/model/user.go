// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Profile はユーザーの役割（Athlete / Coach）を表す閉じた列挙型。
// 文字列の自由入力を許さず、役割ディスパッチを網羅的に行うための型。
type Profile string

const (
	// ProfileAthlete はアスリート（自分のアクティビティを記録する利用者）。
	ProfileAthlete Profile = "ATHLETE"
	// ProfileCoach はコーチ（チームとメンバーのトレーニングを管理する利用者）。
	ProfileCoach Profile = "COACH"
)

// ParseProfile は文字列をProfileに変換する。
// 未知の値はエラーを返す（フェイルクローズ）。
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileAthlete:
		return ProfileAthlete, nil
	case ProfileCoach:
		return ProfileCoach, nil
	default:
		return "", fmt.Errorf("unknown profile: %q", s)
	}
}

// Valid はProfileが定義済みの値かどうかを返す。
func (p Profile) Valid() bool {
	return p == ProfileAthlete || p == ProfileCoach
}

// User はRun Questの利用者を表す。
// ProfileはオンボーディングでAthlete/Coachを選択するまでnil。
type User struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Profile *Profile `json:"profile,omitempty"`
}

// HasProfile はオンボーディング（プロフィール選択）が完了しているかを返す。
func (u *User) HasProfile() bool {
	return u != nil && u.Profile != nil && u.Profile.Valid()
}

// Session はブラウザセッションを表す。
// 上流APIのbearerトークンとユーザースナップショットを常にペアで保持する。
// どちらか片方だけが設定された状態は存在しない。
type Session struct {
	ID        string
	Token     string
	User      User
	ExpiresAt time.Time
	CreatedAt time.Time
}
