package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
)

// NewsProvider はニュースキャッシュの参照。news.Serviceの部分集合。
type NewsProvider interface {
	Items() []model.NewsItem
	FetchedAt() time.Time
}

// HomeHandler はホーム画面向けのエンドポイント（週間スケジュール、
// コーチによるメンバーのアクティビティ参照、ニュース）を処理する。
type HomeHandler struct {
	activities ActivityAPI
	news       NewsProvider

	sessionEnder
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(
	activities ActivityAPI,
	news NewsProvider,
	sessions SessionStore,
	registry WorkflowRegistry,
	notifications NotificationCenter,
	cookieSecure bool,
	cookieDomain string,
) *HomeHandler {
	return &HomeHandler{
		activities: activities,
		news:       news,
		sessionEnder: sessionEnder{
			sessions:      sessions,
			registry:      registry,
			notifications: notifications,
			cookieSecure:  cookieSecure,
			cookieDomain:  cookieDomain,
		},
	}
}

// Schedule は指定日から1週間分のスケジュールを返す。
// startAt未指定時は現在時刻を起点にする。
// GET /api/schedule?startAt=2026-01-05T00:00:00Z
func (h *HomeHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	startAt := time.Now()
	if raw := r.URL.Query().Get("startAt"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     model.ErrCodeInvalidRequest,
				Message:  "startAt must be an RFC 3339 datetime.",
				Category: "validation",
				Action:   "Send startAt like 2026-01-05T00:00:00Z.",
			})
			return
		}
		startAt = parsed
	}

	days, err := h.activities.ListWeekActivities(r.Context(), sess.Token, startAt)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if days == nil {
		days = []model.DaySchedule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// MemberActivities はコーチがチームメンバーのアクティビティを参照する。
// 読み取り専用のためワークフローは介さない。コーチ専用。
// GET /api/members/{id}/activities
func (h *HomeHandler) MemberActivities(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	memberID := chi.URLParam(r, "id")
	activities, err := h.activities.ListActivities(r.Context(), sess.Token, &memberID)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": activities})
}

// News はキャッシュ中のニュース記事を返す。
// GET /api/news
func (h *HomeHandler) News(w http.ResponseWriter, r *http.Request) {
	items := h.news.Items()
	if items == nil {
		items = []model.NewsItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":     items,
		"fetchedAt": h.news.FetchedAt(),
	})
}
