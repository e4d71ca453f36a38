package model

import "time"

// ActivityStatus はアクティビティの状態を表す。
type ActivityStatus string

const (
	StatusPlanned   ActivityStatus = "Planned"
	StatusCompleted ActivityStatus = "Completed"
	StatusCanceled  ActivityStatus = "Canceled"
)

// ValidActivityStatus は定義済みのActivityStatusかどうかを返す。
func ValidActivityStatus(s string) bool {
	switch ActivityStatus(s) {
	case StatusPlanned, StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}

// ActivityType はユーザー定義のアクティビティ種別（例: Easy Run, Interval）を表す。
type ActivityType struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// RowID はグリッド行としての安定識別子を返す。
func (t ActivityType) RowID() string { return t.ID }

// Activity はトレーニングアクティビティを表す。
// GoalDistance / Distance は任意項目で、未入力はnil（ゼロではない）。
type Activity struct {
	ID           string        `json:"id"`
	Datetime     time.Time     `json:"datetime"`
	Status       string        `json:"status"`
	Type         *ActivityType `json:"type,omitempty"`
	GoalDistance *float64      `json:"goalDistance,omitempty"`
	Distance     *float64      `json:"distance,omitempty"`
	GoalDuration string        `json:"goalDuration,omitempty"`
	Duration     string        `json:"duration,omitempty"`
}

// RowID はグリッド行としての安定識別子を返す。
func (a Activity) RowID() string { return a.ID }

// Team はコーチが管理するチームを表す。
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Coach       *User     `json:"coach,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RowID はグリッド行としての安定識別子を返す。
func (t Team) RowID() string { return t.ID }

// TeamMember はチームへの招待・参加状態を表す。
// Userがnilの間は招待中、AcceptedAtが設定されると参加済み。
type TeamMember struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	User       *User      `json:"user,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// RowID はグリッド行としての安定識別子を返す。
func (m TeamMember) RowID() string { return m.ID }

// TeamDetail はチーム詳細（メンバー一覧付き）を表す。
type TeamDetail struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Coach       *User        `json:"coach,omitempty"`
	Members     []TeamMember `json:"members"`
}

// Invitation はアスリートから見た未承諾の招待を表す。
type Invitation struct {
	ID   string `json:"id"`
	Team *Team  `json:"team,omitempty"`
}

// Membership はアスリートから見た参加済みチームを表す。
type Membership struct {
	ID         string     `json:"id"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
	Team       *Team      `json:"team,omitempty"`
}

// AthleteTeams はアスリートのチームページに表示する招待と参加済みチームの組。
type AthleteTeams struct {
	Invitations []Invitation `json:"invitations"`
	Teams       []Membership `json:"teams"`
}

// DaySchedule はホーム画面の週間ビュー1日分を表す。
type DaySchedule struct {
	Day        time.Time  `json:"day"`
	Activities []Activity `json:"activities"`
}

// NewsItem はホーム画面に表示するランニングニュースの1記事を表す。
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}
