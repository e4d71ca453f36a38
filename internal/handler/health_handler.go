package handler

import (
	"database/sql"
	"net/http"
)

// HealthHandler はヘルスチェックエンドポイントを処理する。
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz はデータベース接続を確認して稼働状態を返す。
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
