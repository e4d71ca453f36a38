package handler

import (
	"net/http"

	"github.com/hitoshi/runquest/internal/notify"
)

// NotificationHandler はセッションの未表示通知の払い出しを処理する。
type NotificationHandler struct {
	center NotificationCenter
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(center NotificationCenter) *NotificationHandler {
	return &NotificationHandler{center: center}
}

// Drain は未表示の通知をすべて払い出す。払い出された通知はキューから消える。
// GET /api/notifications
func (h *NotificationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	notifications := h.center.Drain(sess.ID)
	if notifications == nil {
		notifications = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}
