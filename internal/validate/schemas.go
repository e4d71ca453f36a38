package validate

import "github.com/hitoshi/runquest/internal/model"

// 各フォームの長さ上限。
const (
	maxNameLen        = 40
	maxDescriptionLen = 300
)

// SignInSchema はサインインフォームの規則。
var SignInSchema = Schema{
	Name: "signIn",
	Fields: []Field{
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
		{Name: "password", Label: "Password", Kind: KindPassword, Required: true},
	},
}

// SignUpSchema はサインアップフォームの規則。
// パスワードの文字種規則は課さず、長さのみ検証する。
var SignUpSchema = Schema{
	Name: "signUp",
	Fields: []Field{
		{Name: "name", Label: "Name", Kind: KindText, Required: true, MaxLen: maxNameLen},
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
		{Name: "password", Label: "Password", Kind: KindPassword, Required: true, MinLen: 5},
		{Name: "confirmPassword", Label: "Password confirmation", Kind: KindPassword, Required: true,
			MatchField: "password", MatchLabel: "Password"},
	},
}

// ProfileNameSchema は表示名変更フォームの規則。
var ProfileNameSchema = Schema{
	Name: "profileName",
	Fields: []Field{
		{Name: "name", Label: "Name", Kind: KindText, Required: true, MaxLen: maxNameLen},
	},
}

// PasswordChangeSchema はパスワード変更フォームの規則。
var PasswordChangeSchema = Schema{
	Name: "passwordChange",
	Fields: []Field{
		{Name: "oldPassword", Label: "Current password", Kind: KindPassword, Required: true},
		{Name: "password", Label: "Password", Kind: KindPassword, Required: true, MinLen: 8, Strong: true},
		{Name: "confirmPassword", Label: "Password confirmation", Kind: KindPassword, Required: true,
			MatchField: "password", MatchLabel: "Password"},
	},
}

// PasswordResetSchema は再設定トークンによるパスワード更新フォームの規則。
var PasswordResetSchema = Schema{
	Name: "passwordReset",
	Fields: []Field{
		{Name: "password", Label: "Password", Kind: KindPassword, Required: true, MinLen: 8, Strong: true},
		{Name: "confirmPassword", Label: "Password confirmation", Kind: KindPassword, Required: true,
			MatchField: "password", MatchLabel: "Password"},
	},
}

// RecoveryRequestSchema はパスワード再設定メール要求フォームの規則。
var RecoveryRequestSchema = Schema{
	Name: "recoveryRequest",
	Fields: []Field{
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
	},
}

// TeamSchema はチーム作成・編集フォームの規則。
var TeamSchema = Schema{
	Name: "team",
	Fields: []Field{
		{Name: "name", Label: "Name", Kind: KindText, Required: true, MaxLen: maxNameLen},
		{Name: "description", Label: "Description", Kind: KindText, MaxLen: maxDescriptionLen},
	},
}

// TypeSchema はアクティビティ種別フォームの規則。
var TypeSchema = Schema{
	Name: "type",
	Fields: []Field{
		{Name: "type", Label: "Type", Kind: KindText, Required: true, MaxLen: maxNameLen},
		{Name: "description", Label: "Description", Kind: KindText, MaxLen: maxDescriptionLen},
	},
}

// ActivitySchema はアクティビティフォームの規則。
// 距離と時間は任意項目で、未入力は「未指定」として扱う。
var ActivitySchema = Schema{
	Name: "activity",
	Fields: []Field{
		{Name: "datetime", Label: "Datetime", Kind: KindDatetime, Required: true},
		{Name: "status", Label: "Status", Kind: KindChoice, Required: true,
			Choices: []string{string(model.StatusPlanned), string(model.StatusCompleted), string(model.StatusCanceled)}},
		{Name: "typeId", Label: "Type", Kind: KindText, Required: true},
		{Name: "goalDistance", Label: "Goal distance", Kind: KindNumber},
		{Name: "distance", Label: "Distance", Kind: KindNumber},
		{Name: "goalDuration", Label: "Goal duration", Kind: KindDuration},
		{Name: "duration", Label: "Duration", Kind: KindDuration},
	},
}

// MemberInviteSchema はチームメンバー招待フォームの規則。
var MemberInviteSchema = Schema{
	Name: "memberInvite",
	Fields: []Field{
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
	},
}
