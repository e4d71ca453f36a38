// Package validate はスキーマ駆動のフォーム検証を提供する。
// スキーマは項目ごとの規則の列で、検証結果は項目名からメッセージへのマップ。
// メッセージはそのままUIに表示される。
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind は入力項目の種別。
type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindNumber
	KindPassword
	KindDatetime
	KindDuration
	KindChoice
)

// Field は1項目の検証規則。
type Field struct {
	Name     string // フォーム上の項目名
	Label    string // メッセージに使う表示名
	Kind     Kind
	Required bool
	MinLen   int
	MaxLen   int
	Choices  []string // KindChoiceの許容値
	// Strong はパスワード文字種規則（小文字・大文字・数字・記号を各1文字以上）を課す。
	Strong bool
	// MatchField を指定すると、その項目と値が一致しなければならない。
	MatchField string
	MatchLabel string
}

// Schema は1フォームの検証規則。
type Schema struct {
	Name   string
	Fields []Field
}

// 文字種規則。1種でも欠けると項目エラーになる。
var (
	lowercasePattern = regexp.MustCompile(`[a-z]`)
	uppercasePattern = regexp.MustCompile(`[A-Z]`)
	digitPattern     = regexp.MustCompile(`[0-9]`)
	symbolPattern    = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	durationPattern  = regexp.MustCompile(`^\d{1,2}:\d{2}:\d{2}$`)
)

// Validate は値のマップをスキーマで検証し、項目名→メッセージのマップを返す。
// すべての項目が規則を満たす場合は空のマップを返す。
// 未入力の任意項目は種別検証の対象にならない（「未指定」として扱う）。
func Validate(schema Schema, values map[string]string) map[string]string {
	fieldErrors := make(map[string]string)

	for _, f := range schema.Fields {
		value := strings.TrimSpace(values[f.Name])

		if value == "" {
			if f.Required {
				fieldErrors[f.Name] = fmt.Sprintf("%s is required", f.Label)
			}
			continue
		}

		if msg := f.check(value, values); msg != "" {
			fieldErrors[f.Name] = msg
		}
	}

	return fieldErrors
}

// check は入力済みの値に対する種別・長さ・一致の検証を行う。
// 最初に違反した規則のメッセージを返す。
func (f Field) check(value string, values map[string]string) string {
	if f.MinLen > 0 && len(value) < f.MinLen {
		return fmt.Sprintf("%s must be at least %d characters", f.Label, f.MinLen)
	}
	if f.MaxLen > 0 && len(value) > f.MaxLen {
		return fmt.Sprintf("%s must be at most %d characters", f.Label, f.MaxLen)
	}

	switch f.Kind {
	case KindEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Sprintf("%s must be a valid email", f.Label)
		}
	case KindNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("%s must be a number", f.Label)
		}
	case KindDatetime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Sprintf("%s must be a valid datetime", f.Label)
		}
	case KindDuration:
		if !durationPattern.MatchString(value) {
			return fmt.Sprintf("%s must be in HH:MM:SS format", f.Label)
		}
	case KindChoice:
		if !contains(f.Choices, value) {
			return fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(f.Choices, ", "))
		}
	case KindPassword:
		if f.Strong {
			if msg := checkPasswordStrength(f.Label, value); msg != "" {
				return msg
			}
		}
	}

	if f.MatchField != "" && value != values[f.MatchField] {
		return fmt.Sprintf("%s must match %s", f.Label, f.MatchLabel)
	}

	return ""
}

// checkPasswordStrength は文字種規則を検証する。
func checkPasswordStrength(label, value string) string {
	if !lowercasePattern.MatchString(value) {
		return fmt.Sprintf("%s must contain at least one lowercase letter", label)
	}
	if !uppercasePattern.MatchString(value) {
		return fmt.Sprintf("%s must contain at least one uppercase letter", label)
	}
	if !digitPattern.MatchString(value) {
		return fmt.Sprintf("%s must contain at least one number", label)
	}
	if !symbolPattern.MatchString(value) {
		return fmt.Sprintf("%s must contain at least one symbol", label)
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// OptionalNumber は任意の数値項目を解釈する。
// 空文字は「未指定」としてnilを返す（ゼロとは区別される）。
func OptionalNumber(value string) (*float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number: %q", value)
	}
	return &n, nil
}
