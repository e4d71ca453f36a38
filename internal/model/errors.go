package model

import (
	"errors"
	"fmt"
)

// ErrUnauthorized は上流APIが認証情報の失効を通知したことを表すセンチネル。
// このエラーだけは通知（トースト）にならず、セッション破棄を引き起こす。
var ErrUnauthorized = errors.New("unauthorized")

// ErrUpstreamUnavailable はネットワーク/トランスポート層の失敗を表すセンチネル。
// アプリケーションエラー（GraphQLエラー）とは区別して扱う。
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, resource, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
	ErrCodeUpstreamDown     = "UPSTREAM_UNAVAILABLE"
	ErrCodeSubmitInFlight   = "SUBMIT_IN_FLIGHT"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Failed to parse the request body.",
		Category: "validation",
		Action:   "Send a well-formed JSON request.",
	}
}

// NewUpstreamError は上流APIがオペレーションを拒否した場合のエラーを生成する。
// messageには上流の先頭エラーメッセージをそのまま渡す（正準のユーザー向け理由）。
func NewUpstreamError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  message,
		Category: "resource",
		Action:   "Correct the input and try again.",
	}
}

// NewUpstreamUnavailableError はネットワーク層の失敗を表すエラーを生成する。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamDown,
		Message:  "An error occurred. Please try again.",
		Category: "system",
		Action:   "Wait a moment and retry.",
	}
}

// NewSubmitInFlightError は同一フォームの二重送信を表すエラーを生成する。
func NewSubmitInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodeSubmitInFlight,
		Message:  "A request for this form is already in progress.",
		Category: "validation",
		Action:   "Wait for the current request to finish.",
	}
}
