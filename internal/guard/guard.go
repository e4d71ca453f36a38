// Package guard はルートごとのアクセス制御を提供する。
// 認証状態とプロフィール選択状態から遷移先を決定する純粋な判定関数と、
// それをHTTPリダイレクトとして適用するミドルウェアからなる。
package guard

import (
	"context"
	"net/http"

	"github.com/hitoshi/runquest/internal/model"
)

// リダイレクト先のパス。SPA側のルーティングと一致させる。
const (
	PathSignIn        = "/sign-in"
	PathSelectProfile = "/sign-up/profile-selection"
	PathHome          = "/"
)

// Access はルートの公開区分。
type Access int

const (
	// AccessPublic は誰でもアクセスできるルート。
	AccessPublic Access = iota
	// AccessGuestOnly は未認証ユーザー専用のルート（サインイン、サインアップ等）。
	AccessGuestOnly
	// AccessOnboarding はプロフィール選択画面。認証済みかつプロフィール未選択のみ。
	AccessOnboarding
	// AccessPrivate は認証済みかつプロフィール選択済みユーザー専用のルート。
	AccessPrivate
)

// Rule はルートのアクセス要件。
// Profileを指定すると、その役割のユーザーのみアクセスできる。
type Rule struct {
	Access  Access
	Profile *model.Profile
}

// Decision はアクセス判定の結果。
type Decision int

const (
	// Allow はアクセスを許可する。
	Allow Decision = iota
	// RedirectSignIn はサインイン画面へリダイレクトする。
	RedirectSignIn
	// RedirectSelectProfile はプロフィール選択画面へリダイレクトする。
	RedirectSelectProfile
	// RedirectHome はホーム画面へリダイレクトする。
	RedirectHome
)

// RedirectPath は判定結果に対応するリダイレクト先を返す。
// Allowの場合は第2戻り値がfalseになる。
func (d Decision) RedirectPath() (string, bool) {
	switch d {
	case RedirectSignIn:
		return PathSignIn, true
	case RedirectSelectProfile:
		return PathSelectProfile, true
	case RedirectHome:
		return PathHome, true
	default:
		return "", false
	}
}

// Evaluate はセッション状態とルートの要件からアクセス判定を行う。
// 判定順序は固定: 未認証チェック → プロフィール未選択チェック → 役割チェック。
func Evaluate(sess *model.Session, rule Rule) Decision {
	switch rule.Access {
	case AccessPublic:
		return Allow

	case AccessGuestOnly:
		if sess == nil {
			return Allow
		}
		if !sess.User.HasProfile() {
			return RedirectSelectProfile
		}
		return RedirectHome

	case AccessOnboarding:
		if sess == nil {
			return RedirectSignIn
		}
		if sess.User.HasProfile() {
			return RedirectHome
		}
		return Allow

	case AccessPrivate:
		if sess == nil {
			return RedirectSignIn
		}
		if !sess.User.HasProfile() {
			return RedirectSelectProfile
		}
		if rule.Profile != nil && *sess.User.Profile != *rule.Profile {
			return RedirectHome
		}
		return Allow

	default:
		// 未知の区分は許可しない
		return RedirectSignIn
	}
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 未認証リクエストではnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// Require はルールに基づくアクセス制御ミドルウェアを返す。
// 許可されないリクエストは303 See Otherで対応する画面へリダイレクトする。
func Require(rule Rule) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Evaluate(SessionFromContext(r.Context()), rule)
			if path, redirect := decision.RedirectPath(); redirect {
				http.Redirect(w, r, path, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
