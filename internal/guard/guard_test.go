package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/runquest/internal/model"
)

func sessionWithProfile(p model.Profile) *model.Session {
	return &model.Session{
		ID:    "sess-1",
		Token: "token-1",
		User:  model.User{ID: "user-1", Email: "taro@example.com", Profile: &p},
	}
}

func sessionWithoutProfile() *model.Session {
	return &model.Session{
		ID:    "sess-2",
		Token: "token-2",
		User:  model.User{ID: "user-2", Email: "new@example.com"},
	}
}

// 判定表のすべての組み合わせを検証
func TestEvaluate_DecisionTable(t *testing.T) {
	coach := model.ProfileCoach

	tests := []struct {
		name string
		sess *model.Session
		rule Rule
		want Decision
	}{
		// 公開ルートは常に許可
		{"public/guest", nil, Rule{Access: AccessPublic}, Allow},
		{"public/authenticated", sessionWithProfile(model.ProfileAthlete), Rule{Access: AccessPublic}, Allow},

		// 未認証専用ルート
		{"guest-only/guest", nil, Rule{Access: AccessGuestOnly}, Allow},
		{"guest-only/no-profile", sessionWithoutProfile(), Rule{Access: AccessGuestOnly}, RedirectSelectProfile},
		{"guest-only/authenticated", sessionWithProfile(model.ProfileAthlete), Rule{Access: AccessGuestOnly}, RedirectHome},

		// プロフィール選択画面
		{"onboarding/guest", nil, Rule{Access: AccessOnboarding}, RedirectSignIn},
		{"onboarding/no-profile", sessionWithoutProfile(), Rule{Access: AccessOnboarding}, Allow},
		{"onboarding/with-profile", sessionWithProfile(model.ProfileCoach), Rule{Access: AccessOnboarding}, RedirectHome},

		// 認証必須ルート
		{"private/guest", nil, Rule{Access: AccessPrivate}, RedirectSignIn},
		{"private/no-profile", sessionWithoutProfile(), Rule{Access: AccessPrivate}, RedirectSelectProfile},
		{"private/athlete", sessionWithProfile(model.ProfileAthlete), Rule{Access: AccessPrivate}, Allow},
		{"private/coach", sessionWithProfile(model.ProfileCoach), Rule{Access: AccessPrivate}, Allow},

		// 役割限定ルート
		{"coach-only/coach", sessionWithProfile(model.ProfileCoach), Rule{Access: AccessPrivate, Profile: &coach}, Allow},
		{"coach-only/athlete", sessionWithProfile(model.ProfileAthlete), Rule{Access: AccessPrivate, Profile: &coach}, RedirectHome},
		{"coach-only/guest", nil, Rule{Access: AccessPrivate, Profile: &coach}, RedirectSignIn},
		{"coach-only/no-profile", sessionWithoutProfile(), Rule{Access: AccessPrivate, Profile: &coach}, RedirectSelectProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.sess, tt.rule)
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

// 未認証チェックがプロフィールチェックより先に行われることを検証
func TestEvaluate_ChecksAuthenticationFirst(t *testing.T) {
	coach := model.ProfileCoach
	got := Evaluate(nil, Rule{Access: AccessPrivate, Profile: &coach})
	if got != RedirectSignIn {
		t.Errorf("Evaluate() = %v, want RedirectSignIn", got)
	}
}

// DecisionごとのRedirectPathを検証
func TestDecision_RedirectPath(t *testing.T) {
	tests := []struct {
		decision Decision
		wantPath string
		wantOK   bool
	}{
		{Allow, "", false},
		{RedirectSignIn, PathSignIn, true},
		{RedirectSelectProfile, PathSelectProfile, true},
		{RedirectHome, PathHome, true},
	}

	for _, tt := range tests {
		path, ok := tt.decision.RedirectPath()
		if path != tt.wantPath || ok != tt.wantOK {
			t.Errorf("RedirectPath(%v) = (%q, %v), want (%q, %v)", tt.decision, path, ok, tt.wantPath, tt.wantOK)
		}
	}
}

// ミドルウェアが未認証リクエストを303でサインインへ送ることを検証
func TestRequire_GuestOnPrivateRoute_Redirects(t *testing.T) {
	handler := Require(Rule{Access: AccessPrivate})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != PathSignIn {
		t.Errorf("Location = %q, want %q", loc, PathSignIn)
	}
}

// ミドルウェアがプロフィール未選択ユーザーを選択画面へ送ることを検証
func TestRequire_NoProfileOnPrivateRoute_RedirectsToSelection(t *testing.T) {
	handler := Require(Rule{Access: AccessPrivate})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req = req.WithContext(ContextWithSession(req.Context(), sessionWithoutProfile()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != PathSelectProfile {
		t.Errorf("Location = %q, want %q", loc, PathSelectProfile)
	}
}

// ミドルウェアが許可されたリクエストを通すことを検証
func TestRequire_AllowedRequest_PassesThrough(t *testing.T) {
	reached := false
	handler := Require(Rule{Access: AccessPrivate})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req = req.WithContext(ContextWithSession(req.Context(), sessionWithProfile(model.ProfileAthlete)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Error("handler should be reached")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// SessionFromContextがセッションなしでnilを返すことを検証
func TestSessionFromContext_Empty_ReturnsNil(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if sess := SessionFromContext(req.Context()); sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}
}
