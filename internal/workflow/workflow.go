// Package workflow はリソース共通のCRUDワークフローを提供する。
// 一覧・フォーム状態・送信・削除を1つの状態機械として扱い、
// どのリソースでも同じ遷移規則に従う:
//   - 変更成功後は必ず一覧を再取得する（手元の一覧を直接書き換えない）
//   - 送信失敗時はフォームと入力値を保持する
//   - フォームを閉じると一覧を1回だけ再取得する（二重closeは再取得しない）
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hitoshi/runquest/internal/model"
	"github.com/hitoshi/runquest/internal/validate"
)

// Row は一覧に表示できる行。RowIDは一覧内で安定な識別子を返す。
type Row interface {
	RowID() string
}

// Mode はフォームの状態。
type Mode string

const (
	ModeClosed   Mode = "closed"
	ModeCreating Mode = "creating"
	ModeEditing  Mode = "editing"
)

// Ops はリソースごとの上流操作。
// Presentは編集フォームの初期値として行をフォーム値に展開する。
type Ops[R Row] struct {
	List    func(ctx context.Context) ([]R, error)
	Create  func(ctx context.Context, values map[string]string) error
	Update  func(ctx context.Context, id string, values map[string]string) error
	Delete  func(ctx context.Context, id string) error
	Present func(row R) map[string]string
}

// Notifier は通知の送り先。セッションに束縛された通知センターを渡す。
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Messages は成功時の通知文言。
type Messages struct {
	Saved   string
	Deleted string
}

// DefaultMessages はデフォルトの通知文言を返す。
func DefaultMessages() Messages {
	return Messages{Saved: "Saved.", Deleted: "Deleted."}
}

// ValidationError は検証失敗を表す。項目名→メッセージを保持する。
type ValidationError struct {
	FieldErrors map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d fields", len(e.FieldErrors))
}

// Snapshot はフォーム状態の読み取り専用コピー。
type Snapshot struct {
	Mode   Mode              `json:"mode"`
	RowID  string            `json:"rowId,omitempty"`
	Draft  map[string]string `json:"draft,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Workflow は1セッション・1リソースのCRUD状態機械。
type Workflow[R Row] struct {
	mu sync.Mutex

	ops      Ops[R]
	schema   validate.Schema
	notifier Notifier
	messages Messages

	rows    []R
	fetched bool

	mode   Mode
	rowID  string
	draft  map[string]string
	errors map[string]string

	inFlight bool
}

// New はWorkflowを生成する。
func New[R Row](ops Ops[R], schema validate.Schema, notifier Notifier, messages Messages) *Workflow[R] {
	return &Workflow[R]{
		ops:      ops,
		schema:   schema,
		notifier: notifier,
		messages: messages,
		mode:     ModeClosed,
	}
}

// Rows は一覧を返す。未取得の場合のみ上流から取得する。
func (w *Workflow[R]) Rows(ctx context.Context) ([]R, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.fetched {
		if err := w.refetchLocked(ctx); err != nil {
			return nil, err
		}
	}
	return w.rows, nil
}

// Refresh は一覧を強制的に再取得する。
// 変更操作の応答待ちの間は再取得を発行しない。
func (w *Workflow[R]) Refresh(ctx context.Context) ([]R, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return nil, model.NewSubmitInFlightError()
	}
	if err := w.refetchLocked(ctx); err != nil {
		return nil, err
	}
	return w.rows, nil
}

// refetchLocked は上流から一覧を取り直す。ロック保持中に呼ぶこと。
func (w *Workflow[R]) refetchLocked(ctx context.Context) error {
	rows, err := w.ops.List(ctx)
	if err != nil {
		return err
	}
	w.rows = rows
	w.fetched = true
	return nil
}

// OpenCreate は新規作成フォームを開く。前回の入力値とエラーは破棄される。
func (w *Workflow[R]) OpenCreate() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.mode = ModeCreating
	w.rowID = ""
	w.draft = map[string]string{}
	w.errors = nil
	return w.snapshotLocked()
}

// OpenEdit は編集フォームを開く。対象行は直近に取得した一覧から引く。
// 行が見つからない場合は新規作成フォームとして開く。
func (w *Workflow[R]) OpenEdit(id string) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, row := range w.rows {
		if row.RowID() == id {
			w.mode = ModeEditing
			w.rowID = id
			w.errors = nil
			if w.ops.Present != nil {
				w.draft = w.ops.Present(row)
			} else {
				w.draft = map[string]string{}
			}
			return w.snapshotLocked()
		}
	}

	w.mode = ModeCreating
	w.rowID = ""
	w.draft = map[string]string{}
	w.errors = nil
	return w.snapshotLocked()
}

// Submit はフォームの値を検証し、作成または更新を実行する。
// 成功するとフォームを閉じて一覧を再取得する。
// 失敗した場合はフォームと入力値を保持したままエラーを返す。
func (w *Workflow[R]) Submit(ctx context.Context, values map[string]string) error {
	w.mu.Lock()

	if w.mode == ModeClosed {
		w.mu.Unlock()
		return model.NewInvalidRequestError()
	}
	if w.inFlight {
		w.mu.Unlock()
		return model.NewSubmitInFlightError()
	}

	// 入力値は成否にかかわらずドラフトとして保持する
	w.draft = values

	fieldErrors := validate.Validate(w.schema, values)
	if len(fieldErrors) > 0 {
		w.errors = fieldErrors
		w.mu.Unlock()
		return &ValidationError{FieldErrors: fieldErrors}
	}
	w.errors = nil

	mode := w.mode
	rowID := w.rowID
	w.inFlight = true
	w.mu.Unlock()

	var err error
	if mode == ModeEditing {
		err = w.ops.Update(ctx, rowID, values)
	} else {
		err = w.ops.Create(ctx, values)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false

	if err != nil {
		// フォームは開いたまま、ドラフトも保持する
		w.notifyError(err)
		return err
	}

	w.mode = ModeClosed
	w.rowID = ""
	w.draft = nil

	if refetchErr := w.refetchLocked(ctx); refetchErr != nil {
		return refetchErr
	}

	if w.notifier != nil && w.messages.Saved != "" {
		w.notifier.Success(w.messages.Saved)
	}
	return nil
}

// Delete は行を削除する。成功すると一覧を再取得する。
// 失敗した場合は一覧に手を付けず、エラー通知を積む。
func (w *Workflow[R]) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	if w.inFlight {
		w.mu.Unlock()
		return model.NewSubmitInFlightError()
	}
	w.inFlight = true
	w.mu.Unlock()

	err := w.ops.Delete(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight = false

	if err != nil {
		w.notifyError(err)
		return err
	}

	if refetchErr := w.refetchLocked(ctx); refetchErr != nil {
		return refetchErr
	}

	if w.notifier != nil && w.messages.Deleted != "" {
		w.notifier.Success(w.messages.Deleted)
	}
	return nil
}

// Close はフォームを閉じ、一覧を1回だけ再取得する。
// すでに閉じている場合は何もしない（再取得も行わない）。
// 変更操作の応答待ちの間は拒否する。応答を見る前に再取得を発行しないため。
func (w *Workflow[R]) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.mode == ModeClosed {
		return nil
	}
	if w.inFlight {
		return model.NewSubmitInFlightError()
	}

	w.mode = ModeClosed
	w.rowID = ""
	w.draft = nil
	w.errors = nil

	return w.refetchLocked(ctx)
}

// Form は現在のフォーム状態のコピーを返す。
func (w *Workflow[R]) Form() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// snapshotLocked はフォーム状態をコピーする。ロック保持中に呼ぶこと。
func (w *Workflow[R]) snapshotLocked() Snapshot {
	snap := Snapshot{Mode: w.mode, RowID: w.rowID}
	if w.draft != nil {
		snap.Draft = make(map[string]string, len(w.draft))
		for k, v := range w.draft {
			snap.Draft[k] = v
		}
	}
	if w.errors != nil {
		snap.Errors = make(map[string]string, len(w.errors))
		for k, v := range w.errors {
			snap.Errors[k] = v
		}
	}
	return snap
}

// notifyError は上流エラーを通知に変換する。
// 認証失効はセッション破棄で扱うため通知しない。
func (w *Workflow[R]) notifyError(err error) {
	if w.notifier == nil {
		return
	}
	if errors.Is(err, model.ErrUnauthorized) {
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		w.notifier.Error(apiErr.Message)
		return
	}
	w.notifier.Error(model.NewUpstreamUnavailableError().Message)
}
