package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/runquest/internal/auth"
	"github.com/hitoshi/runquest/internal/config"
	"github.com/hitoshi/runquest/internal/guard"
	"github.com/hitoshi/runquest/internal/metrics"
	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/questapi"
	"github.com/hitoshi/runquest/internal/security"
	"github.com/hitoshi/runquest/internal/session"
	"github.com/hitoshi/runquest/internal/workflow"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *sql.DB
	Sessions      *session.Store
	QuestAPI      *questapi.Client
	Registry      *workflow.Registry
	Notifications NotificationCenter
	News          NewsProvider
	OIDC          auth.OIDCProvider // nilの場合はOIDCサインイン無効
	RateLimiter   *middleware.RateLimiter
	Gatherer      prometheus.Gatherer
}

// NewRouter はアプリケーションのルーターを構築する。
// ミドルウェアの適用順序:
//  1. Recovery（最外周でpanicを拾う）
//  2. セキュリティヘッダー
//  3. CORS
//  4. セッション読み込み（以降のログ・レート制限・ガードが参照する）
//  5. リクエストログ
//  6. CSRF検証
//  7. レート制限
func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}
	sanitizer := security.NewTextSanitizer()

	authHandler := NewAuthHandler(
		deps.QuestAPI, deps.Sessions, deps.Registry, deps.Notifications, deps.OIDC,
		AuthHandlerConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			CookieSecure:  cfg.CookieSecure,
			CookieDomain:  cfg.CookieDomain,
		},
	)

	activityHandler := NewResourceHandler(
		resourceActivities, deps.Registry, deps.Sessions, deps.Notifications,
		cfg.CookieSecure, cfg.CookieDomain,
		func(sess *model.Session) *workflow.Workflow[model.Activity] {
			notifier := sessionNotifier{center: deps.Notifications, sessionID: sess.ID}
			return newActivityWorkflow(deps.QuestAPI, sess.Token, notifier)
		},
	)
	typeHandler := NewResourceHandler(
		resourceTypes, deps.Registry, deps.Sessions, deps.Notifications,
		cfg.CookieSecure, cfg.CookieDomain,
		func(sess *model.Session) *workflow.Workflow[model.ActivityType] {
			notifier := sessionNotifier{center: deps.Notifications, sessionID: sess.ID}
			return newTypeWorkflow(deps.QuestAPI, sess.Token, sanitizer, notifier)
		},
	)
	teamResourceHandler := NewResourceHandler(
		resourceTeams, deps.Registry, deps.Sessions, deps.Notifications,
		cfg.CookieSecure, cfg.CookieDomain,
		func(sess *model.Session) *workflow.Workflow[model.Team] {
			notifier := sessionNotifier{center: deps.Notifications, sessionID: sess.ID}
			return newTeamWorkflow(deps.QuestAPI, sess.Token, sanitizer, notifier)
		},
	)

	teamHandler := NewTeamHandler(
		deps.QuestAPI, deps.Sessions, deps.Registry, deps.Notifications,
		cfg.CookieSecure, cfg.CookieDomain,
	)
	homeHandler := NewHomeHandler(
		deps.QuestAPI, deps.News, deps.Sessions, deps.Registry, deps.Notifications,
		cfg.CookieSecure, cfg.CookieDomain,
	)
	notificationHandler := NewNotificationHandler(deps.Notifications)
	healthHandler := NewHealthHandler(deps.DB)

	coach := model.ProfileCoach
	athlete := model.ProfileAthlete
	privateRule := guard.Rule{Access: guard.AccessPrivate}
	coachRule := guard.Rule{Access: guard.AccessPrivate, Profile: &coach}
	athleteRule := guard.Rule{Access: guard.AccessPrivate, Profile: &athlete}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.Sessions))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	// 運用系（認証不要）
	r.Get("/healthz", healthHandler.Healthz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// 認証（未認証ユーザー専用）
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(guard.Rule{Access: guard.AccessGuestOnly}))
		r.With(deps.RateLimiter.SignInMiddleware()).Post("/auth/sign-in", authHandler.SignIn)
		r.Post("/auth/sign-up", authHandler.SignUp)
		r.Post("/auth/recovery", authHandler.RequestRecovery)
		r.Post("/auth/reset", authHandler.ResetPassword)
		r.Get("/auth/oidc/login", authHandler.OIDCLogin)
		r.Get("/auth/oidc/callback", authHandler.OIDCCallback)
	})

	// セッションがあれば誰でも（プロフィール未選択も含む）
	r.Get("/api/me", authHandler.Me)
	r.Post("/auth/logout", authHandler.Logout)

	// オンボーディング（認証済みかつプロフィール未選択のみ）
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(guard.Rule{Access: guard.AccessOnboarding}))
		r.Post("/api/profile", authHandler.SelectProfile)
	})

	// 認証済みかつプロフィール選択済み
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(privateRule))

		r.Post("/api/me/name", authHandler.UpdateName)
		r.Post("/api/me/password", authHandler.UpdatePassword)
		r.Delete("/api/me", authHandler.DeleteAccount)

		r.Route("/api/activities", activityHandler.Mount)
		r.Route("/api/types", typeHandler.Mount)

		r.Get("/api/schedule", homeHandler.Schedule)
		r.Get("/api/news", homeHandler.News)
		r.Get("/api/notifications", notificationHandler.Drain)
	})

	// コーチ専用
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(coachRule))

		r.Route("/api/teams", func(r chi.Router) {
			teamResourceHandler.Mount(r)
			r.Get("/{id}", teamHandler.Detail)
			r.Post("/{id}/members", teamHandler.InviteMembers)
			r.Delete("/{id}/members/{memberId}", teamHandler.RemoveMember)
		})
		r.Get("/api/members/{id}/activities", homeHandler.MemberActivities)
	})

	// アスリート専用
	r.Group(func(r chi.Router) {
		r.Use(guard.Require(athleteRule))

		r.Get("/api/athlete/teams", teamHandler.AthleteTeams)
		r.Post("/api/athlete/invitations/{id}/accept", teamHandler.AcceptInvitation)
	})

	return r
}
