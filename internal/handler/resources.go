package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/questapi"
	"github.com/hitoshi/runquest/internal/security"
	"github.com/hitoshi/runquest/internal/validate"
	"github.com/hitoshi/runquest/internal/workflow"
)

// レジストリ上のリソース名。セッションごとのワークフローのキーになる。
const (
	resourceActivities = "activities"
	resourceTypes      = "types"
	resourceTeams      = "teams"
)

// parseActivityInput は検証済みのフォーム値を上流の入力に変換する。
// 値はスキーマ検証を通過している前提だが、数値の解釈だけは再確認する。
func parseActivityInput(values map[string]string) (questapi.ActivityInput, error) {
	datetime, err := time.Parse(time.RFC3339, strings.TrimSpace(values["datetime"]))
	if err != nil {
		return questapi.ActivityInput{}, fmt.Errorf("invalid datetime: %w", err)
	}

	goalDistance, err := validate.OptionalNumber(values["goalDistance"])
	if err != nil {
		return questapi.ActivityInput{}, err
	}
	distance, err := validate.OptionalNumber(values["distance"])
	if err != nil {
		return questapi.ActivityInput{}, err
	}

	return questapi.ActivityInput{
		Datetime:     datetime,
		Status:       strings.TrimSpace(values["status"]),
		TypeID:       strings.TrimSpace(values["typeId"]),
		GoalDistance: goalDistance,
		Distance:     distance,
		GoalDuration: strings.TrimSpace(values["goalDuration"]),
		Duration:     strings.TrimSpace(values["duration"]),
	}, nil
}

// presentActivity はアクティビティを編集フォームの初期値に展開する。
func presentActivity(a model.Activity) map[string]string {
	values := map[string]string{
		"datetime":     a.Datetime.Format(time.RFC3339),
		"status":       a.Status,
		"goalDuration": a.GoalDuration,
		"duration":     a.Duration,
	}
	if a.Type != nil {
		values["typeId"] = a.Type.ID
	}
	if a.GoalDistance != nil {
		values["goalDistance"] = strconv.FormatFloat(*a.GoalDistance, 'f', -1, 64)
	}
	if a.Distance != nil {
		values["distance"] = strconv.FormatFloat(*a.Distance, 'f', -1, 64)
	}
	return values
}

// newActivityWorkflow は自分のアクティビティのワークフローを生成する。
func newActivityWorkflow(api ActivityAPI, token string, notifier workflow.Notifier) *workflow.Workflow[model.Activity] {
	ops := workflow.Ops[model.Activity]{
		List: func(ctx context.Context) ([]model.Activity, error) {
			return api.ListActivities(ctx, token, nil)
		},
		Create: func(ctx context.Context, values map[string]string) error {
			in, err := parseActivityInput(values)
			if err != nil {
				return model.NewInvalidRequestError()
			}
			_, err = api.CreateActivity(ctx, token, in)
			return err
		},
		Update: func(ctx context.Context, id string, values map[string]string) error {
			in, err := parseActivityInput(values)
			if err != nil {
				return model.NewInvalidRequestError()
			}
			_, err = api.UpdateActivity(ctx, token, id, in)
			return err
		},
		Delete: func(ctx context.Context, id string) error {
			return api.DeleteActivity(ctx, token, id)
		},
		Present: presentActivity,
	}
	return workflow.New(ops, validate.ActivitySchema, notifier, workflow.DefaultMessages())
}

// newTypeWorkflow はアクティビティ種別のワークフローを生成する。
// 自由入力の項目はサニタイズしてから上流へ渡す。
func newTypeWorkflow(api TypeAPI, token string, sanitizer security.TextSanitizerService, notifier workflow.Notifier) *workflow.Workflow[model.ActivityType] {
	clean := func(s string) string { return sanitizer.Sanitize(strings.TrimSpace(s)) }
	ops := workflow.Ops[model.ActivityType]{
		List: func(ctx context.Context) ([]model.ActivityType, error) {
			return api.ListTypes(ctx, token)
		},
		Create: func(ctx context.Context, values map[string]string) error {
			_, err := api.CreateType(ctx, token, clean(values["type"]), clean(values["description"]))
			return err
		},
		Update: func(ctx context.Context, id string, values map[string]string) error {
			_, err := api.UpdateType(ctx, token, id, clean(values["type"]), clean(values["description"]))
			return err
		},
		Delete: func(ctx context.Context, id string) error {
			return api.DeleteType(ctx, token, id)
		},
		Present: func(t model.ActivityType) map[string]string {
			return map[string]string{
				"type":        t.Type,
				"description": t.Description,
			}
		},
	}
	return workflow.New(ops, validate.TypeSchema, notifier, workflow.DefaultMessages())
}

// parseMemberEmails はカンマ区切りの招待先メールアドレスを分解する。
func parseMemberEmails(value string) []string {
	var members []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			members = append(members, s)
		}
	}
	return members
}

// newTeamWorkflow はコーチのチームのワークフローを生成する。
// 作成フォームのmembersは招待先メールアドレスのカンマ区切り。
// 自由入力の項目はサニタイズしてから上流へ渡す。
func newTeamWorkflow(api TeamAPI, token string, sanitizer security.TextSanitizerService, notifier workflow.Notifier) *workflow.Workflow[model.Team] {
	clean := func(s string) string { return sanitizer.Sanitize(strings.TrimSpace(s)) }
	ops := workflow.Ops[model.Team]{
		List: func(ctx context.Context) ([]model.Team, error) {
			return api.ListCoachTeams(ctx, token)
		},
		Create: func(ctx context.Context, values map[string]string) error {
			_, err := api.CreateTeam(ctx, token,
				clean(values["name"]),
				clean(values["description"]),
				parseMemberEmails(values["members"]),
			)
			return err
		},
		Update: func(ctx context.Context, id string, values map[string]string) error {
			_, err := api.UpdateTeam(ctx, token, id,
				clean(values["name"]),
				clean(values["description"]),
			)
			return err
		},
		Delete: func(ctx context.Context, id string) error {
			return api.DeleteTeam(ctx, token, id)
		},
		Present: func(t model.Team) map[string]string {
			return map[string]string{
				"name":        t.Name,
				"description": t.Description,
			}
		},
	}
	return workflow.New(ops, validate.TeamSchema, notifier, workflow.DefaultMessages())
}
