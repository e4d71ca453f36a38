package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/security"
	"github.com/hitoshi/runquest/internal/session"
	"github.com/hitoshi/runquest/internal/validate"
	"github.com/hitoshi/runquest/internal/workflow"
)

// --- モック定義 ---

type mockTypeAPI struct {
	listCalls int
	types     []model.ActivityType

	createErr error
	deleteErr error
}

func (m *mockTypeAPI) ListTypes(ctx context.Context, token string) ([]model.ActivityType, error) {
	m.listCalls++
	out := make([]model.ActivityType, len(m.types))
	copy(out, m.types)
	return out, nil
}

func (m *mockTypeAPI) CreateType(ctx context.Context, token, typeName, description string) (*model.ActivityType, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	t := model.ActivityType{ID: "t-new", Type: typeName, Description: description}
	m.types = append(m.types, t)
	return &t, nil
}

func (m *mockTypeAPI) UpdateType(ctx context.Context, token, id, typeName, description string) (*model.ActivityType, error) {
	for i, t := range m.types {
		if t.ID == id {
			m.types[i].Type = typeName
			m.types[i].Description = description
			return &m.types[i], nil
		}
	}
	return nil, model.NewUpstreamError("Type not found")
}

func (m *mockTypeAPI) DeleteType(ctx context.Context, token, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, t := range m.types {
		if t.ID == id {
			m.types = append(m.types[:i], m.types[i+1:]...)
			return nil
		}
	}
	return model.NewUpstreamError("Type not found")
}

// --- ヘルパー ---

func newTypeResourceHandler(api TypeAPI, notifications *mockNotificationCenter) (*ResourceHandler[model.ActivityType], *mockRegistry, http.Handler) {
	registry := newMockRegistry()
	h := NewResourceHandler(
		resourceTypes, registry, &mockSessionStore{}, notifications, false, "",
		func(sess *model.Session) *workflow.Workflow[model.ActivityType] {
			notifier := sessionNotifier{center: notifications, sessionID: sess.ID}
			return newTypeWorkflow(api, sess.Token, security.NewTextSanitizer(), notifier)
		},
	)

	r := chi.NewRouter()
	r.Route("/api/types", h.Mount)
	return h, registry, r
}

func testSession() *model.Session {
	return &model.Session{ID: "sess-1", Token: "token-1",
		User: model.User{ID: "u1", Profile: profilePtr(model.ProfileAthlete)}}
}

func doResourceRequest(t *testing.T, router http.Handler, sess *model.Session, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = jsonRequest(t, method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req = withSession(req, sess)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- テスト ---

// 一覧が返り、2回目のGETでは上流を呼ばないことを検証
func TestResourceHandler_List_FetchesOnce(t *testing.T) {
	api := &mockTypeAPI{types: []model.ActivityType{
		{ID: "t1", Type: "Easy Run"},
		{ID: "t2", Type: "Interval"},
	}}
	_, _, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	rec := doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Rows []model.ActivityType `json:"rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(resp.Rows))
	}

	doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)
	if api.listCalls != 1 {
		t.Errorf("list calls = %d, want 1 (cached)", api.listCalls)
	}
}

// refresh=1で上流から取り直し、サーバー側の変更が見えることを検証
func TestResourceHandler_List_RefreshRefetches(t *testing.T) {
	api := &mockTypeAPI{types: []model.ActivityType{{ID: "t1", Type: "Easy Run"}}}
	_, _, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)

	// 別の経路で追加された行はキャッシュには見えない
	api.types = append(api.types, model.ActivityType{ID: "t2", Type: "Interval"})

	rec := doResourceRequest(t, router, sess, http.MethodGet, "/api/types?refresh=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Rows []model.ActivityType `json:"rows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Errorf("rows = %d, want 2 after refresh", len(resp.Rows))
	}
	if api.listCalls != 2 {
		t.Errorf("list calls = %d, want 2 (initial + refresh)", api.listCalls)
	}
}

// 作成成功でフォームが閉じ、再取得した一覧が返ることを検証
func TestResourceHandler_Submit_Create_RefetchesList(t *testing.T) {
	api := &mockTypeAPI{types: []model.ActivityType{{ID: "t1", Type: "Easy Run"}}}
	_, _, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)
	doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form", map[string]string{})

	rec := doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form/submit", map[string]any{
		"values": map[string]string{"type": "Tempo Run", "description": "Threshold pace"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Rows []model.ActivityType `json:"rows"`
		Form workflow.Snapshot    `json:"form"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Errorf("rows = %d, want 2 after refetch", len(resp.Rows))
	}
	if resp.Form.Mode != workflow.ModeClosed {
		t.Errorf("form mode = %q, want closed", resp.Form.Mode)
	}
	if api.listCalls != 2 {
		t.Errorf("list calls = %d, want 2 (initial + refetch)", api.listCalls)
	}
}

// 検証エラーで422が返り、フォームとドラフトが保持されることを検証
func TestResourceHandler_Submit_ValidationError_KeepsDraft(t *testing.T) {
	api := &mockTypeAPI{}
	_, _, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form", map[string]string{})

	rec := doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form/submit", map[string]any{
		"values": map[string]string{"type": "", "description": "no name"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Fields["type"] != "Type is required" {
		t.Errorf("fields = %+v", body.Fields)
	}

	formRec := doResourceRequest(t, router, sess, http.MethodGet, "/api/types/form", nil)
	var formResp struct {
		Form workflow.Snapshot `json:"form"`
	}
	if err := json.NewDecoder(formRec.Body).Decode(&formResp); err != nil {
		t.Fatalf("failed to decode form: %v", err)
	}
	if formResp.Form.Mode != workflow.ModeCreating {
		t.Errorf("form mode = %q, want creating", formResp.Form.Mode)
	}
	if formResp.Form.Draft["description"] != "no name" {
		t.Errorf("draft = %+v, want retained input", formResp.Form.Draft)
	}
}

// 上流の認証失効で401が返り、セッションとワークフローが破棄されることを検証
func TestResourceHandler_Submit_UnauthorizedEndsSession(t *testing.T) {
	api := &mockTypeAPI{createErr: model.ErrUnauthorized}
	_, registry, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form", map[string]string{})

	rec := doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form/submit", map[string]any{
		"values": map[string]string{"type": "Tempo Run"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if len(registry.tornDown) != 1 || registry.tornDown[0] != "sess-1" {
		t.Errorf("registry teardown = %v, want [sess-1]", registry.tornDown)
	}

	cookieCleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cookieCleared = true
		}
	}
	if !cookieCleared {
		t.Error("session cookie should be cleared")
	}
}

// 削除失敗で行が消えず、エラー通知が積まれることを検証
func TestResourceHandler_Delete_Failure_KeepsRowAndNotifies(t *testing.T) {
	api := &mockTypeAPI{
		types:     []model.ActivityType{{ID: "t1", Type: "Easy Run"}},
		deleteErr: model.NewUpstreamError("API error"),
	}
	notifications := newMockNotificationCenter()
	_, _, router := newTypeResourceHandler(api, notifications)
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)

	rec := doResourceRequest(t, router, sess, http.MethodDelete, "/api/types/t1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	listRec := doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)
	var resp struct {
		Rows []model.ActivityType `json:"rows"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 1 {
		t.Errorf("rows = %d, want 1 (row kept)", len(resp.Rows))
	}

	msgs := notifications.Drain("sess-1")
	if len(msgs) != 1 || msgs[0].Message != "API error" {
		t.Errorf("notifications = %+v, want one API error", msgs)
	}
}

// 編集フォームを開くと既存の値が初期値になることを検証
func TestResourceHandler_OpenForm_Edit_PrefillsDraft(t *testing.T) {
	api := &mockTypeAPI{types: []model.ActivityType{
		{ID: "t1", Type: "Easy Run", Description: "Aerobic base"},
	}}
	_, _, router := newTypeResourceHandler(api, newMockNotificationCenter())
	sess := testSession()

	doResourceRequest(t, router, sess, http.MethodGet, "/api/types", nil)

	rec := doResourceRequest(t, router, sess, http.MethodPost, "/api/types/form", map[string]string{"id": "t1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Form workflow.Snapshot `json:"form"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Form.Mode != workflow.ModeEditing || resp.Form.RowID != "t1" {
		t.Errorf("form = %+v, want editing t1", resp.Form)
	}
	if resp.Form.Draft["type"] != "Easy Run" || resp.Form.Draft["description"] != "Aerobic base" {
		t.Errorf("draft = %+v, want prefilled values", resp.Form.Draft)
	}
}

// アクティビティ入力の解釈（任意項目のnil化とRFC3339）を検証
func TestParseActivityInput(t *testing.T) {
	in, err := parseActivityInput(map[string]string{
		"datetime":     "2026-01-05T07:00:00Z",
		"status":       "Planned",
		"typeId":       "t1",
		"goalDistance": "12.5",
		"distance":     "",
		"goalDuration": "01:10:00",
		"duration":     "",
	})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if in.Status != "Planned" || in.TypeID != "t1" {
		t.Errorf("input = %+v", in)
	}
	if in.GoalDistance == nil || *in.GoalDistance != 12.5 {
		t.Errorf("goalDistance = %v, want 12.5", in.GoalDistance)
	}
	if in.Distance != nil {
		t.Errorf("distance = %v, want nil for empty input", in.Distance)
	}
	if in.GoalDuration != "01:10:00" || in.Duration != "" {
		t.Errorf("durations = %q / %q", in.GoalDuration, in.Duration)
	}
}

// アクティビティのフォーム展開が入力をそのまま往復させることを検証
func TestPresentActivity_RoundTrip(t *testing.T) {
	goal := 12.5
	values := presentActivity(model.Activity{
		ID:           "a1",
		Datetime:     mustParseTime(t, "2026-01-05T07:00:00Z"),
		Status:       "Planned",
		Type:         &model.ActivityType{ID: "t1", Type: "Easy Run"},
		GoalDistance: &goal,
		GoalDuration: "01:10:00",
	})

	if values["datetime"] != "2026-01-05T07:00:00Z" {
		t.Errorf("datetime = %q", values["datetime"])
	}
	if values["typeId"] != "t1" || values["goalDistance"] != "12.5" {
		t.Errorf("values = %+v", values)
	}
	if _, ok := values["distance"]; ok {
		t.Error("unset distance should be absent")
	}

	// 展開した値はそのままスキーマ検証を通ること
	if fieldErrors := validate.Validate(validate.ActivitySchema, values); len(fieldErrors) > 0 {
		t.Errorf("field errors = %+v, want none", fieldErrors)
	}
}

// チーム作成フォームのメンバー欄の分解を検証
func TestParseMemberEmails(t *testing.T) {
	members := parseMemberEmails(" a@example.com, b@example.com ,, ")
	if len(members) != 2 || members[0] != "a@example.com" || members[1] != "b@example.com" {
		t.Errorf("members = %v", members)
	}
	if parseMemberEmails("") != nil {
		t.Error("empty input should produce nil")
	}
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}
	return parsed
}
