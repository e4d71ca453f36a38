// Package security は入力テキストの無害化と外部フェッチの保護を提供する。
package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService はユーザー入力テキストの無害化インターフェース。
// チーム名・説明などの自由入力を上流へ渡す前、および表示前に使用する。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（タグを一切許可しない）を保持する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はテキストからすべてのHTMLタグを除去する。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// NewsSanitizerService はニュース記事の要約HTMLの無害化インターフェース。
type NewsSanitizerService interface {
	Sanitize(rawHTML string) string
}

// newsSanitizer は外部フィード由来の要約に限定的なインラインタグのみを許可する。
type newsSanitizer struct {
	policy *bluemonday.Policy
}

// NewNewsSanitizer はNewsSanitizerServiceの新しいインスタンスを生成する。
// 許可タグはp, br, strong, emのみ。リンクや画像は要約では許可しない。
func NewNewsSanitizer() *newsSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em")
	return &newsSanitizer{policy: p}
}

// Sanitize は要約HTMLをサニタイズして安全なHTMLを返す。
func (s *newsSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
