package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/runquest/internal/guard"
	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/workflow"
)

// ResourceHandler はワークフローに基づくリソースのCRUDエンドポイントを処理する。
// 一覧・フォーム・送信・削除はすべてセッションごとのワークフローに委譲し、
// 変更成功後の一覧再取得もワークフロー側の規則に従う。
type ResourceHandler[R workflow.Row] struct {
	resource string
	registry WorkflowRegistry
	build    func(sess *model.Session) *workflow.Workflow[R]

	sessionEnder
}

// NewResourceHandler はResourceHandlerを生成する。
// buildはセッションに束縛されたワークフローを生成するファクトリ。
func NewResourceHandler[R workflow.Row](
	resource string,
	registry WorkflowRegistry,
	sessions SessionStore,
	notifications NotificationCenter,
	cookieSecure bool,
	cookieDomain string,
	build func(sess *model.Session) *workflow.Workflow[R],
) *ResourceHandler[R] {
	return &ResourceHandler[R]{
		resource: resource,
		registry: registry,
		build:    build,
		sessionEnder: sessionEnder{
			sessions:      sessions,
			registry:      registry,
			notifications: notifications,
			cookieSecure:  cookieSecure,
			cookieDomain:  cookieDomain,
		},
	}
}

// listResponse は一覧エンドポイントのレスポンス。
type listResponse[R workflow.Row] struct {
	Rows []R `json:"rows"`
}

// formResponse はフォーム状態エンドポイントのレスポンス。
type formResponse struct {
	Form workflow.Snapshot `json:"form"`
}

// listFormResponse は一覧とフォーム状態を同時に返すレスポンス。
type listFormResponse[R workflow.Row] struct {
	Rows []R               `json:"rows"`
	Form workflow.Snapshot `json:"form"`
}

// workflowFor はセッションに対応するワークフローを取得する。
func (h *ResourceHandler[R]) workflowFor(sess *model.Session) *workflow.Workflow[R] {
	wf := h.registry.GetOrCreate(sess.ID, h.resource, func() any {
		return h.build(sess)
	})
	return wf.(*workflow.Workflow[R])
}

// requireSession はコンテキストからセッションを取得する。
// ガードの後段で呼ばれるため通常はnilにならないが、念のため401を返す。
func requireSession(w http.ResponseWriter, r *http.Request) *model.Session {
	sess := guard.SessionFromContext(r.Context())
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	}
	return sess
}

// List は一覧を返す。未取得の場合のみ上流から取得する。
// refresh=1を指定すると画面の再表示時などに強制的に取り直せる。
// GET /api/{resource}[?refresh=1]
func (h *ResourceHandler[R]) List(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	wf := h.workflowFor(sess)
	var rows []R
	var err error
	if r.URL.Query().Get("refresh") == "1" {
		rows, err = wf.Refresh(r.Context())
	} else {
		rows, err = wf.Rows(r.Context())
	}
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if rows == nil {
		rows = []R{}
	}
	writeJSON(w, http.StatusOK, listResponse[R]{Rows: rows})
}

// Form は現在のフォーム状態を返す。
// GET /api/{resource}/form
func (h *ResourceHandler[R]) Form(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, formResponse{Form: h.workflowFor(sess).Form()})
}

// OpenForm はフォームを開く。idが指定された場合は編集、なければ新規作成。
// POST /api/{resource}/form
func (h *ResourceHandler[R]) OpenForm(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}

	wf := h.workflowFor(sess)
	var snap workflow.Snapshot
	if body.ID != "" {
		snap = wf.OpenEdit(body.ID)
	} else {
		snap = wf.OpenCreate()
	}
	writeJSON(w, http.StatusOK, formResponse{Form: snap})
}

// Submit はフォームの値を検証して作成・更新を実行する。
// 成功するとフォームが閉じ、再取得済みの一覧を返す。
// POST /api/{resource}/form/submit
func (h *ResourceHandler[R]) Submit(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var body struct {
		Values map[string]string `json:"values"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeUpstreamError(w, err)
		return
	}
	if body.Values == nil {
		body.Values = map[string]string{}
	}

	wf := h.workflowFor(sess)
	if err := wf.Submit(r.Context(), body.Values); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	rows, err := wf.Rows(r.Context())
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if rows == nil {
		rows = []R{}
	}
	writeJSON(w, http.StatusOK, listFormResponse[R]{Rows: rows, Form: wf.Form()})
}

// CloseForm はフォームを閉じる。すでに閉じている場合は再取得しない。
// POST /api/{resource}/form/close
func (h *ResourceHandler[R]) CloseForm(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	wf := h.workflowFor(sess)
	if err := wf.Close(r.Context()); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	rows, err := wf.Rows(r.Context())
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if rows == nil {
		rows = []R{}
	}
	writeJSON(w, http.StatusOK, listFormResponse[R]{Rows: rows, Form: wf.Form()})
}

// Delete は行を削除する。成功すると再取得済みの一覧を返す。
// DELETE /api/{resource}/{id}
func (h *ResourceHandler[R]) Delete(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeUpstreamError(w, model.NewInvalidRequestError())
		return
	}

	wf := h.workflowFor(sess)
	if err := wf.Delete(r.Context(), id); err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}

	rows, err := wf.Rows(r.Context())
	if err != nil {
		h.handleWorkflowError(w, r, sess, err)
		return
	}
	if rows == nil {
		rows = []R{}
	}
	writeJSON(w, http.StatusOK, listResponse[R]{Rows: rows})
}

// Mount はリソースのルートをルーターに登録する。
func (h *ResourceHandler[R]) Mount(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/form", h.Form)
	r.Post("/form", h.OpenForm)
	r.Post("/form/submit", h.Submit)
	r.Post("/form/close", h.CloseForm)
	r.Delete("/{id}", h.Delete)
}
