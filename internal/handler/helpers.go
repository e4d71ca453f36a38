package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/workflow"
)

// decodeJSON はリクエストボディをJSONとして読み込む。
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewInvalidRequestError()
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// statusForAPIError はエラーコードに対応するHTTPステータスを返す。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSubmitInFlight:
		return http.StatusConflict
	case model.ErrCodeUpstreamError:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamDown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeUpstreamError は上流エラーをHTTPレスポンスに変換する。
// 認証失効(model.ErrUnauthorized)はここでは扱わない。呼び出し側が
// セッション破棄とセットで処理すること。
func writeUpstreamError(w http.ResponseWriter, err error) {
	var validationErr *workflow.ValidationError
	if errors.As(err, &validationErr) {
		middleware.WriteValidationErrorResponse(w, validationErr.FieldErrors)
		return
	}

	if errors.Is(err, model.ErrUpstreamUnavailable) {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamUnavailableError())
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("unexpected error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// sessionEnder はセッション失効時の後始末をまとめる。
// 上流が認証失効を通知した場合とログアウトの両方で使う。
type sessionEnder struct {
	sessions      SessionStore
	registry      WorkflowRegistry
	notifications NotificationCenter
	cookieSecure  bool
	cookieDomain  string
}

// endSession はセッションと付随する状態をすべて破棄し、Cookieを削除する。
func (e *sessionEnder) endSession(ctx context.Context, w http.ResponseWriter, sess *model.Session) {
	if sess != nil {
		if err := e.sessions.Clear(ctx, sess.ID); err != nil {
			slog.Error("failed to clear session", slog.String("error", err.Error()))
		}
		e.registry.Teardown(sess.ID)
		e.notifications.ClearSession(sess.ID)
	}
	middleware.ClearSessionCookie(w, e.cookieSecure, e.cookieDomain)
}

// handleWorkflowError はワークフロー操作のエラーをレスポンスに変換する。
// 認証失効の場合はセッションを破棄して401を返す。
func (e *sessionEnder) handleWorkflowError(w http.ResponseWriter, r *http.Request, sess *model.Session, err error) {
	if errors.Is(err, model.ErrUnauthorized) {
		e.endSession(r.Context(), w, sess)
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeUpstreamError(w, err)
}

// sessionNotifier は通知センターを特定セッションに束縛するアダプター。
type sessionNotifier struct {
	center    NotificationCenter
	sessionID string
}

// Success は成功通知を積む。
func (n sessionNotifier) Success(message string) { n.center.Success(n.sessionID, message) }

// Error は失敗通知を積む。
func (n sessionNotifier) Error(message string) { n.center.Error(n.sessionID, message) }
