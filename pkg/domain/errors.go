package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はエラーの分類を表します。呼び出し側はこの値でリトライ可否などを判断します。
type ErrorKind string

const (
	KindParse         ErrorKind = "parse"
	KindValidation    ErrorKind = "validation"
	KindGeneration    ErrorKind = "generation"
	KindComposite     ErrorKind = "composite"
	KindNotFound      ErrorKind = "not_found"
	KindConfiguration ErrorKind = "configuration"
	KindUnknown       ErrorKind = "unknown"
)

var (
	// ErrTimeout は外部呼び出しが期限内に完了しなかったことを示します。
	ErrTimeout = errors.New("timeout")
	// ErrNoImage はバックエンドの応答に画像パートが含まれていなかったことを示します。
	ErrNoImage = errors.New("no image part in response")
)

// ErrorClassifier は ErrorKind を返すエラーが実装するインターフェースです。
type ErrorClassifier interface {
	ErrorKind() ErrorKind
}

// KindOf はエラーチェーンを辿り、最初に見つかった分類を返します。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return KindUnknown
}

// ParseError は生成テキストを必要な形へデコードできなかったことを表します。
// Stage には "config" や "planning" などの発生箇所が入ります。
type ParseError struct {
	Stage   string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	msg := joinDetail("parse failed", e.Stage)
	if e.Excerpt != "" {
		msg += fmt.Sprintf(" (応答抜粋: %q)", e.Excerpt)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) ErrorKind() ErrorKind { return KindParse }

// ValidationError はデコード済みの値が構造上の不変条件を満たさないことを表します。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return joinDetail("validation failed", e.Field, e.Reason)
}

func (e *ValidationError) ErrorKind() ErrorKind { return KindValidation }

// GenerationError は画像・テキスト生成の上流呼び出しが失敗したことを表します。
// Variation は該当しない場合 -1 です。
type GenerationError struct {
	ProjectID string
	Category  string
	Variation int
	Err       error
}

func (e *GenerationError) Error() string {
	parts := []string{"generation failed"}
	if e.ProjectID != "" {
		parts = append(parts, "project "+e.ProjectID)
	}
	if e.Category != "" {
		parts = append(parts, "category "+e.Category)
	}
	if e.Variation >= 0 {
		parts = append(parts, fmt.Sprintf("variation %d", e.Variation))
	}
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error        { return e.Err }
func (e *GenerationError) ErrorKind() ErrorKind { return KindGeneration }

// CompositeError は合成リクエストが画像を返さなかったことを表します。
type CompositeError struct {
	TraitCount int
	Err        error
}

func (e *CompositeError) Error() string {
	msg := fmt.Sprintf("composite failed (traits: %d)", e.TraitCount)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompositeError) Unwrap() error        { return e.Err }
func (e *CompositeError) ErrorKind() ErrorKind { return KindComposite }

// NotFoundError は ID による解決が失敗したことを表します。
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorKind() ErrorKind { return KindNotFound }

// ConfigurationError は必須の設定値（認証情報など）が欠けていることを表します。
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return joinDetail("configuration error", e.Key, e.Reason)
}

func (e *ConfigurationError) ErrorKind() ErrorKind { return KindConfiguration }

// IsNotFound は err が NotFoundError を含むかどうかを返します。
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func joinDetail(head string, parts ...string) string {
	out := []string{head}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ": ")
}
