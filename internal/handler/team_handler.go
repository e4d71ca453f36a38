package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/validate"
)

// TeamHandler はチーム詳細・メンバー管理・招待のエンドポイントを処理する。
// チームの一覧と作成・編集はResourceHandler側が受け持つ。
type TeamHandler struct {
	api TeamAPI

	sessionEnder
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(
	api TeamAPI,
	sessions SessionStore,
	registry WorkflowRegistry,
	notifications NotificationCenter,
	cookieSecure bool,
	cookieDomain string,
) *TeamHandler {
	return &TeamHandler{
		api: api,
		sessionEnder: sessionEnder{
			sessions:      sessions,
			registry:      registry,
			notifications: notifications,
			cookieSecure:  cookieSecure,
			cookieDomain:  cookieDomain,
		},
	}
}

// Detail はチーム詳細（メンバー一覧付き）を返す。コーチ専用。
// GET /api/teams/{id}
func (h *TeamHandler) Detail(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	id := chi.URLParam(r, "id")
	team, err := h.api.GetTeam(r.Context(), sess.Token, id)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": team})
}

// InviteMembers はチームへメンバーを追加招待する。コーチ専用。
// POST /api/teams/{id}/members
func (h *TeamHandler) InviteMembers(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var body struct {
		Emails []string `json:"emails"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	if len(body.Emails) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "At least one email is required.",
			Category: "validation",
			Action:   "Enter the email of the athlete to invite.",
		})
		return
	}

	// 招待先メールアドレスは1件ずつ検証する
	for _, email := range body.Emails {
		fieldErrors := validate.Validate(validate.MemberInviteSchema, map[string]string{"email": email})
		if len(fieldErrors) > 0 {
			middleware.WriteValidationErrorResponse(w, fieldErrors)
			return
		}
	}

	teamID := chi.URLParam(r, "id")
	if err := h.api.CreateMembers(r.Context(), sess.Token, teamID, body.Emails); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	h.notifications.Success(sess.ID, "Saved.")
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はチームからメンバー（または招待）を外す。コーチ専用。
// DELETE /api/teams/{id}/members/{memberId}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	memberID := chi.URLParam(r, "memberId")
	if err := h.api.DeleteMember(r.Context(), sess.Token, memberID); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	h.notifications.Success(sess.ID, "Deleted.")
	w.WriteHeader(http.StatusNoContent)
}

// AthleteTeams はアスリートの招待と参加済みチームを返す。アスリート専用。
// GET /api/athlete/teams
func (h *TeamHandler) AthleteTeams(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	teams, err := h.api.ListAthleteTeams(r.Context(), sess.Token)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

// AcceptInvitation はアスリートがチームへの招待を承諾する。アスリート専用。
// POST /api/athlete/invitations/{id}/accept
func (h *TeamHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	invitationID := chi.URLParam(r, "id")
	if err := h.api.AcceptInvitation(r.Context(), sess.Token, invitationID); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	h.notifications.Success(sess.ID, "Saved.")
	w.WriteHeader(http.StatusNoContent)
}
