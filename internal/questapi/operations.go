package questapi

import (
	"context"
	"time"

	"github.com/hitoshi/runquest/internal/model"
)

// ユーザーの標準フィールド選択。認証系の全操作で共通。
const userFields = `id name email profile`

// AuthResult は認証操作の結果（bearerトークンとユーザーの組）。
type AuthResult struct {
	Token string
	User  model.User
}

// authPayload は上流の認証レスポンスの形。
type authPayload struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// ActivityInput はアクティビティ作成・更新の入力。
// GoalDistance / Distance はnilで「未指定」を表す。
type ActivityInput struct {
	Datetime     time.Time
	Status       string
	TypeID       string
	GoalDistance *float64
	Distance     *float64
	GoalDuration string
	Duration     string
}

func (in ActivityInput) variables() map[string]any {
	vars := map[string]any{
		"datetime": in.Datetime.Format(time.RFC3339),
		"status":   in.Status,
		"typeId":   in.TypeID,
	}
	if in.GoalDistance != nil {
		vars["goalDistance"] = *in.GoalDistance
	}
	if in.Distance != nil {
		vars["distance"] = *in.Distance
	}
	if in.GoalDuration != "" {
		vars["goalDuration"] = in.GoalDuration
	}
	if in.Duration != "" {
		vars["duration"] = in.Duration
	}
	return vars
}

// --- 認証・アカウント ---

// SignIn はメールアドレスとパスワードで認証し、トークンとユーザーを取得する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	query := `mutation SignIn($email: String!, $password: String!) {
		signIn(email: $email, password: $password) {
			access_token
			user { ` + userFields + ` }
		}
	}`

	var resp struct {
		SignIn authPayload `json:"signIn"`
	}
	err := c.do(ctx, "", "signIn", query, map[string]any{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: resp.SignIn.AccessToken, User: resp.SignIn.User}, nil
}

// SignUp はアカウントを作成し、そのままサインイン状態にする。
func (c *Client) SignUp(ctx context.Context, name, email, password string) (*AuthResult, error) {
	query := `mutation SignUp($name: String!, $email: String!, $password: String!) {
		signUp(name: $name, email: $email, password: $password) {
			access_token
			user { ` + userFields + ` }
		}
	}`

	var resp struct {
		SignUp authPayload `json:"signUp"`
	}
	err := c.do(ctx, "", "signUp", query, map[string]any{"name": name, "email": email, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: resp.SignUp.AccessToken, User: resp.SignUp.User}, nil
}

// SignInProvider は外部IdPのIDトークンで認証する。
func (c *Client) SignInProvider(ctx context.Context, idToken string) (*AuthResult, error) {
	query := `mutation SignInProvider($token: String!) {
		signInProvider(token: $token) {
			access_token
			user { ` + userFields + ` }
		}
	}`

	var resp struct {
		SignInProvider authPayload `json:"signInProvider"`
	}
	err := c.do(ctx, "", "signInProvider", query, map[string]any{"token": idToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: resp.SignInProvider.AccessToken, User: resp.SignInProvider.User}, nil
}

// UpdateProfile はユーザーの役割（ATHLETE / COACH）を設定する。
// 上流はトークンを再発行するため、戻り値のトークンとユーザーでセッションを置き換えること。
func (c *Client) UpdateProfile(ctx context.Context, token string, profile model.Profile) (*AuthResult, error) {
	query := `mutation UpdateProfile($profile: EnumProfiles!) {
		updateProfile(profile: $profile) {
			access_token
			user { ` + userFields + ` }
		}
	}`

	var resp struct {
		UpdateProfile authPayload `json:"updateProfile"`
	}
	err := c.do(ctx, token, "updateProfile", query, map[string]any{"profile": string(profile)}, &resp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: resp.UpdateProfile.AccessToken, User: resp.UpdateProfile.User}, nil
}

// UpdateUser はユーザーの表示名を変更する。
func (c *Client) UpdateUser(ctx context.Context, token, name string) (*model.User, error) {
	query := `mutation UpdateUser($name: String!) {
		updateUser(name: $name) { ` + userFields + ` }
	}`

	var resp struct {
		UpdateUser model.User `json:"updateUser"`
	}
	err := c.do(ctx, token, "updateUser", query, map[string]any{"name": name}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.UpdateUser, nil
}

// UpdatePassword はパスワードを変更する。
func (c *Client) UpdatePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	query := `mutation UpdatePassword($oldPassword: String!, $newPassword: String!) {
		updatePassword(oldPassword: $oldPassword, newPassword: $newPassword) { id }
	}`

	var resp struct {
		UpdatePassword struct {
			ID string `json:"id"`
		} `json:"updatePassword"`
	}
	return c.do(ctx, token, "updatePassword", query, map[string]any{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	}, &resp)
}

// DeleteUser はアカウントを削除する。
func (c *Client) DeleteUser(ctx context.Context, token string) error {
	query := `mutation DeleteUser {
		deleteUser { id }
	}`

	var resp struct {
		DeleteUser struct {
			ID string `json:"id"`
		} `json:"deleteUser"`
	}
	return c.do(ctx, token, "deleteUser", query, nil, &resp)
}

// RequestRecovery はパスワード再設定メールの送信を要求する。
func (c *Client) RequestRecovery(ctx context.Context, email string) error {
	query := `mutation RequestRecovery($email: String!) {
		requestRecovery(email: $email) { id }
	}`

	var resp struct {
		RequestRecovery struct {
			ID string `json:"id"`
		} `json:"requestRecovery"`
	}
	return c.do(ctx, "", "requestRecovery", query, map[string]any{"email": email}, &resp)
}

// ResetPassword は再設定トークンでパスワードを更新する。
func (c *Client) ResetPassword(ctx context.Context, recoveryToken, password string) error {
	query := `mutation ResetPassword($token: String!, $password: String!) {
		resetPassword(token: $token, password: $password) { id }
	}`

	var resp struct {
		ResetPassword struct {
			ID string `json:"id"`
		} `json:"resetPassword"`
	}
	return c.do(ctx, "", "resetPassword", query, map[string]any{
		"token":    recoveryToken,
		"password": password,
	}, &resp)
}

// --- アクティビティ ---

const activityFields = `id datetime status goalDistance distance goalDuration duration
		type { id type description }`

// ListActivities はアクティビティ一覧を取得する。
// memberIDを指定すると、コーチとしてそのメンバーのアクティビティを取得する。
func (c *Client) ListActivities(ctx context.Context, token string, memberID *string) ([]model.Activity, error) {
	query := `query ListActivities($memberId: ID) {
		listActivities(memberId: $memberId) { ` + activityFields + ` }
	}`

	vars := map[string]any{}
	if memberID != nil {
		vars["memberId"] = *memberID
	}

	var resp struct {
		ListActivities []model.Activity `json:"listActivities"`
	}
	if err := c.do(ctx, token, "listActivities", query, vars, &resp); err != nil {
		return nil, err
	}
	return resp.ListActivities, nil
}

// ListWeekActivities は指定日から1週間分のスケジュールを取得する。
func (c *Client) ListWeekActivities(ctx context.Context, token string, startAt time.Time) ([]model.DaySchedule, error) {
	query := `query ListWeekActivities($startAt: DateTime!) {
		listWeekActivities(startAt: $startAt) {
			day
			activities { ` + activityFields + ` }
		}
	}`

	var resp struct {
		ListWeekActivities []model.DaySchedule `json:"listWeekActivities"`
	}
	err := c.do(ctx, token, "listWeekActivities", query, map[string]any{
		"startAt": startAt.Format(time.RFC3339),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.ListWeekActivities, nil
}

// CreateActivity はアクティビティを作成する。
func (c *Client) CreateActivity(ctx context.Context, token string, in ActivityInput) (*model.Activity, error) {
	query := `mutation CreateActivity($datetime: DateTime!, $status: EnumStatus!, $typeId: ID!,
		$goalDistance: Float, $distance: Float, $goalDuration: String, $duration: String) {
		createActivity(datetime: $datetime, status: $status, typeId: $typeId,
			goalDistance: $goalDistance, distance: $distance,
			goalDuration: $goalDuration, duration: $duration) { ` + activityFields + ` }
	}`

	var resp struct {
		CreateActivity model.Activity `json:"createActivity"`
	}
	if err := c.do(ctx, token, "createActivity", query, in.variables(), &resp); err != nil {
		return nil, err
	}
	return &resp.CreateActivity, nil
}

// UpdateActivity はアクティビティを更新する。
func (c *Client) UpdateActivity(ctx context.Context, token, id string, in ActivityInput) (*model.Activity, error) {
	query := `mutation UpdateActivity($id: ID!, $datetime: DateTime!, $status: EnumStatus!, $typeId: ID!,
		$goalDistance: Float, $distance: Float, $goalDuration: String, $duration: String) {
		updateActivity(id: $id, datetime: $datetime, status: $status, typeId: $typeId,
			goalDistance: $goalDistance, distance: $distance,
			goalDuration: $goalDuration, duration: $duration) { ` + activityFields + ` }
	}`

	vars := in.variables()
	vars["id"] = id

	var resp struct {
		UpdateActivity model.Activity `json:"updateActivity"`
	}
	if err := c.do(ctx, token, "updateActivity", query, vars, &resp); err != nil {
		return nil, err
	}
	return &resp.UpdateActivity, nil
}

// DeleteActivity はアクティビティを削除する。
func (c *Client) DeleteActivity(ctx context.Context, token, id string) error {
	query := `mutation DeleteActivity($id: ID!) {
		deleteActivity(id: $id) { id }
	}`

	var resp struct {
		DeleteActivity struct {
			ID string `json:"id"`
		} `json:"deleteActivity"`
	}
	return c.do(ctx, token, "deleteActivity", query, map[string]any{"id": id}, &resp)
}

// --- アクティビティ種別 ---

// ListTypes はアクティビティ種別の一覧を取得する。
func (c *Client) ListTypes(ctx context.Context, token string) ([]model.ActivityType, error) {
	query := `query ListTypes {
		listTypes { id type description }
	}`

	var resp struct {
		ListTypes []model.ActivityType `json:"listTypes"`
	}
	if err := c.do(ctx, token, "listTypes", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ListTypes, nil
}

// CreateType はアクティビティ種別を作成する。
func (c *Client) CreateType(ctx context.Context, token, typeName, description string) (*model.ActivityType, error) {
	query := `mutation CreateType($type: String!, $description: String) {
		createType(type: $type, description: $description) { id type description }
	}`

	var resp struct {
		CreateType model.ActivityType `json:"createType"`
	}
	err := c.do(ctx, token, "createType", query, map[string]any{
		"type":        typeName,
		"description": description,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.CreateType, nil
}

// UpdateType はアクティビティ種別を更新する。
func (c *Client) UpdateType(ctx context.Context, token, id, typeName, description string) (*model.ActivityType, error) {
	query := `mutation UpdateType($id: ID!, $type: String!, $description: String) {
		updateType(id: $id, type: $type, description: $description) { id type description }
	}`

	var resp struct {
		UpdateType model.ActivityType `json:"updateType"`
	}
	err := c.do(ctx, token, "updateType", query, map[string]any{
		"id":          id,
		"type":        typeName,
		"description": description,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.UpdateType, nil
}

// DeleteType はアクティビティ種別を削除する。
func (c *Client) DeleteType(ctx context.Context, token, id string) error {
	query := `mutation DeleteType($id: ID!) {
		deleteType(id: $id) { id }
	}`

	var resp struct {
		DeleteType struct {
			ID string `json:"id"`
		} `json:"deleteType"`
	}
	return c.do(ctx, token, "deleteType", query, map[string]any{"id": id}, &resp)
}

// --- チーム ---

const teamFields = `id name description createdAt updatedAt
		coach { id name email }`

// ListCoachTeams はコーチが管理するチームの一覧を取得する。
func (c *Client) ListCoachTeams(ctx context.Context, token string) ([]model.Team, error) {
	query := `query ListCoachTeams {
		listCoachTeams { ` + teamFields + ` }
	}`

	var resp struct {
		ListCoachTeams []model.Team `json:"listCoachTeams"`
	}
	if err := c.do(ctx, token, "listCoachTeams", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ListCoachTeams, nil
}

// ListAthleteTeams はアスリートの招待と参加済みチームを取得する。
func (c *Client) ListAthleteTeams(ctx context.Context, token string) (*model.AthleteTeams, error) {
	query := `query ListAthleteTeams {
		listAthleteTeams {
			invitations {
				id
				team { ` + teamFields + ` }
			}
			teams {
				id
				acceptedAt
				team { ` + teamFields + ` }
			}
		}
	}`

	var resp struct {
		ListAthleteTeams model.AthleteTeams `json:"listAthleteTeams"`
	}
	if err := c.do(ctx, token, "listAthleteTeams", query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.ListAthleteTeams, nil
}

// GetTeam はチーム詳細（メンバー一覧付き）を取得する。
func (c *Client) GetTeam(ctx context.Context, token, id string) (*model.TeamDetail, error) {
	query := `query GetTeam($id: ID!) {
		getTeam(id: $id) {
			id name description
			coach { id name email }
			members {
				id email acceptedAt createdAt
				user { id name email }
			}
		}
	}`

	var resp struct {
		GetTeam model.TeamDetail `json:"getTeam"`
	}
	if err := c.do(ctx, token, "getTeam", query, map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	return &resp.GetTeam, nil
}

// CreateTeam はチームを作成し、メンバー候補へ招待を送る。
func (c *Client) CreateTeam(ctx context.Context, token, name, description string, members []string) (*model.Team, error) {
	query := `mutation CreateTeam($name: String!, $description: String, $members: [String!]) {
		createTeam(name: $name, description: $description, members: $members) { ` + teamFields + ` }
	}`

	var resp struct {
		CreateTeam model.Team `json:"createTeam"`
	}
	err := c.do(ctx, token, "createTeam", query, map[string]any{
		"name":        name,
		"description": description,
		"members":     members,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.CreateTeam, nil
}

// UpdateTeam はチームの名前と説明を更新する。
func (c *Client) UpdateTeam(ctx context.Context, token, id, name, description string) (*model.Team, error) {
	query := `mutation UpdateTeam($id: ID!, $name: String!, $description: String) {
		updateTeam(id: $id, name: $name, description: $description) { ` + teamFields + ` }
	}`

	var resp struct {
		UpdateTeam model.Team `json:"updateTeam"`
	}
	err := c.do(ctx, token, "updateTeam", query, map[string]any{
		"id":          id,
		"name":        name,
		"description": description,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.UpdateTeam, nil
}

// DeleteTeam はチームを削除する。
func (c *Client) DeleteTeam(ctx context.Context, token, id string) error {
	query := `mutation DeleteTeam($id: ID!) {
		deleteTeam(id: $id) { id }
	}`

	var resp struct {
		DeleteTeam struct {
			ID string `json:"id"`
		} `json:"deleteTeam"`
	}
	return c.do(ctx, token, "deleteTeam", query, map[string]any{"id": id}, &resp)
}

// --- チームメンバー ---

// CreateMembers はチームへメンバーを追加招待する。
func (c *Client) CreateMembers(ctx context.Context, token, teamID string, members []string) error {
	query := `mutation CreateMembers($id: ID!, $members: [String!]!) {
		createMembers(id: $id, members: $members) { id }
	}`

	var resp struct {
		CreateMembers struct {
			ID string `json:"id"`
		} `json:"createMembers"`
	}
	return c.do(ctx, token, "createMembers", query, map[string]any{
		"id":      teamID,
		"members": members,
	}, &resp)
}

// DeleteMember はチームからメンバー（または招待）を削除する。
func (c *Client) DeleteMember(ctx context.Context, token, memberID string) error {
	query := `mutation DeleteMember($id: ID!) {
		deleteMember(id: $id) { id }
	}`

	var resp struct {
		DeleteMember struct {
			ID string `json:"id"`
		} `json:"deleteMember"`
	}
	return c.do(ctx, token, "deleteMember", query, map[string]any{"id": memberID}, &resp)
}

// AcceptInvitation はアスリートがチームへの招待を承諾する。
func (c *Client) AcceptInvitation(ctx context.Context, token, invitationID string) error {
	query := `mutation AcceptInvitation($id: ID!) {
		acceptInvitation(id: $id) { id }
	}`

	var resp struct {
		AcceptInvitation struct {
			ID string `json:"id"`
		} `json:"acceptInvitation"`
	}
	return c.do(ctx, token, "acceptInvitation", query, map[string]any{"id": invitationID}, &resp)
}
