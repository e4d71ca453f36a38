package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/runquest/internal/auth"
	"github.com/hitoshi/runquest/internal/guard"
	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/validate"
)

// oidcStateCookieName はOIDC認可フローのstateを保持するCookie名。
const oidcStateCookieName = "runquest_oidc_state"

// AuthHandlerConfig はAuthHandlerの設定。
type AuthHandlerConfig struct {
	SessionMaxAge int
	CookieSecure  bool
	CookieDomain  string
}

// AuthHandler は認証・アカウント系のエンドポイントを処理する。
type AuthHandler struct {
	api      AuthAPI
	sessions SessionStore
	oidc     auth.OIDCProvider // nilの場合はOIDCサインイン無効
	config   AuthHandlerConfig

	sessionEnder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	api AuthAPI,
	sessions SessionStore,
	registry WorkflowRegistry,
	notifications NotificationCenter,
	oidc auth.OIDCProvider,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		api:      api,
		sessions: sessions,
		oidc:     oidc,
		config:   config,
		sessionEnder: sessionEnder{
			sessions:      sessions,
			registry:      registry,
			notifications: notifications,
			cookieSecure:  config.CookieSecure,
			cookieDomain:  config.CookieDomain,
		},
	}
}

// userResponse は認証系エンドポイントの共通レスポンス。
type userResponse struct {
	User model.User `json:"user"`
}

// issueSession はセッションを発行してCookieを設定する。
func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, token string, user model.User) (*model.Session, error) {
	sess, err := h.sessions.Create(r.Context(), token, user)
	if err != nil {
		return nil, err
	}
	middleware.SetSessionCookie(w, sess.ID, h.config.SessionMaxAge, h.config.CookieSecure, h.config.CookieDomain)
	return sess, nil
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	fieldErrors := validate.Validate(validate.SignInSchema, map[string]string{
		"email":    body.Email,
		"password": body.Password,
	})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	result, err := h.api.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		// 資格情報の誤りは上流のメッセージをそのまま401で返す
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstreamError {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
			return
		}
		writeUpstreamError(w, err)
		return
	}

	if _, err := h.issueSession(w, r, result.Token, result.User); err != nil {
		slog.Error("failed to issue session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Info("user signed in", slog.String("user_id", result.User.ID))
	writeJSON(w, http.StatusOK, userResponse{User: result.User})
}

// SignUp はアカウントを作成し、そのままサインイン状態にする。
// POST /auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	fieldErrors := validate.Validate(validate.SignUpSchema, map[string]string{
		"name":            body.Name,
		"email":           body.Email,
		"password":        body.Password,
		"confirmPassword": body.ConfirmPassword,
	})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	result, err := h.api.SignUp(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	if _, err := h.issueSession(w, r, result.Token, result.User); err != nil {
		slog.Error("failed to issue session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Info("user signed up", slog.String("user_id", result.User.ID))
	writeJSON(w, http.StatusOK, userResponse{User: result.User})
}

// Me は現在のセッションのユーザーを返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: sess.User})
}

// SelectProfile はオンボーディングで役割（ATHLETE / COACH）を確定する。
// 上流はトークンを再発行するため、セッションのトークンとユーザーをペアで置き換える。
// POST /api/profile
func (h *AuthHandler) SelectProfile(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var body struct {
		Profile string `json:"profile"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	profile, err := model.ParseProfile(body.Profile)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "Profile must be ATHLETE or COACH.",
			Category: "validation",
			Action:   "Choose one of the presented profiles.",
		})
		return
	}

	result, err := h.api.UpdateProfile(r.Context(), sess.Token, profile)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	if err := h.sessions.Update(r.Context(), sess, result.Token, result.User); err != nil {
		slog.Error("failed to update session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	slog.Info("profile selected",
		slog.String("user_id", result.User.ID),
		slog.String("profile", string(profile)),
	)
	writeJSON(w, http.StatusOK, userResponse{User: result.User})
}

// UpdateName はユーザーの表示名を変更する。
// POST /api/me/name
func (h *AuthHandler) UpdateName(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	fieldErrors := validate.Validate(validate.ProfileNameSchema, map[string]string{"name": body.Name})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	user, err := h.api.UpdateUser(r.Context(), sess.Token, body.Name)
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	// トークンは変わらないが、スナップショットはペアで更新する
	if err := h.sessions.Update(r.Context(), sess, sess.Token, *user); err != nil {
		slog.Error("failed to update session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.notifications.Success(sess.ID, "Saved.")
	writeJSON(w, http.StatusOK, userResponse{User: *user})
}

// UpdatePassword はパスワードを変更する。
// POST /api/me/password
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var body struct {
		OldPassword     string `json:"oldPassword"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	fieldErrors := validate.Validate(validate.PasswordChangeSchema, map[string]string{
		"oldPassword":     body.OldPassword,
		"password":        body.Password,
		"confirmPassword": body.ConfirmPassword,
	})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	if err := h.api.UpdatePassword(r.Context(), sess.Token, body.OldPassword, body.Password); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	h.notifications.Success(sess.ID, "Saved.")
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount はアカウントを削除し、セッションを破棄する。
// DELETE /api/me
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.api.DeleteUser(r.Context(), sess.Token); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	h.endSession(r.Context(), w, sess)
	slog.Info("account deleted", slog.String("user_id", sess.User.ID))
	w.WriteHeader(http.StatusNoContent)
}

// RequestRecovery はパスワード再設定メールの送信を要求する。
// POST /auth/recovery
func (h *AuthHandler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	fieldErrors := validate.Validate(validate.RecoveryRequestSchema, map[string]string{"email": body.Email})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	if err := h.api.RequestRecovery(r.Context(), body.Email); err != nil {
		writeUpstreamError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword は再設定トークンでパスワードを更新する。
// POST /auth/reset
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	if body.Token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "Recovery token is missing.",
			Category: "validation",
			Action:   "Open the link from the recovery email again.",
		})
		return
	}

	fieldErrors := validate.Validate(validate.PasswordResetSchema, map[string]string{
		"password":        body.Password,
		"confirmPassword": body.ConfirmPassword,
	})
	if len(fieldErrors) > 0 {
		middleware.WriteValidationErrorResponse(w, fieldErrors)
		return
	}

	if err := h.api.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		writeUpstreamError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Logout はセッションと付随する状態をすべて破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := guard.SessionFromContext(r.Context())
	h.endSession(r.Context(), w, sess)
	w.WriteHeader(http.StatusNoContent)
}

// OIDCLogin は外部IdPの認証画面へリダイレクトする。
// GET /auth/oidc/login
func (h *AuthHandler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.NotFound(w, r)
		return
	}

	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate OIDC state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookieName,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oidc.GetLoginURL(state), http.StatusFound)
}

// OIDCCallback はIdPからの認可コードを受け取り、サインインを完了する。
// IDトークンの検証は上流のsignInProviderに任せる。
// GET /auth/oidc/callback
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.NotFound(w, r)
		return
	}

	stateCookie, err := r.Cookie(oidcStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		slog.Warn("OIDC state mismatch")
		http.Redirect(w, r, guard.PathSignIn, http.StatusSeeOther)
		return
	}

	// stateは使い捨て
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, guard.PathSignIn, http.StatusSeeOther)
		return
	}

	idToken, err := h.oidc.ExchangeCode(r.Context(), code)
	if err != nil {
		slog.Error("OIDC code exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, guard.PathSignIn, http.StatusSeeOther)
		return
	}

	result, err := h.api.SignInProvider(r.Context(), idToken)
	if err != nil {
		slog.Error("provider sign-in failed", slog.String("error", err.Error()))
		http.Redirect(w, r, guard.PathSignIn, http.StatusSeeOther)
		return
	}

	if _, err := h.issueSession(w, r, result.Token, result.User); err != nil {
		slog.Error("failed to issue session", slog.String("error", err.Error()))
		http.Redirect(w, r, guard.PathSignIn, http.StatusSeeOther)
		return
	}

	slog.Info("user signed in via provider", slog.String("user_id", result.User.ID))

	// プロフィール未選択ならオンボーディングへ
	if !result.User.HasProfile() {
		http.Redirect(w, r, guard.PathSelectProfile, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, guard.PathHome, http.StatusSeeOther)
}
