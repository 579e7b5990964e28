package domain

import (
	"strings"
)

// GenerationConfig は1プロジェクトの生成条件です。パース後は変更しません。
type GenerationConfig struct {
	Subject string `json:"subject"`
	Theme   string `json:"theme"`
	Style   string `json:"style"`
	Supply  int    `json:"supply"`
}

// Validate は必須項目が揃っているかを確認します。
// subject と theme の欠落は ParseError として扱うのだ。
func (c GenerationConfig) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return &ParseError{Stage: "config", Err: &ValidationError{Field: "subject", Reason: "missing"}}
	}
	if strings.TrimSpace(c.Theme) == "" {
		return &ParseError{Stage: "config", Err: &ValidationError{Field: "theme", Reason: "missing"}}
	}
	if c.Supply < 1 {
		return &ValidationError{Field: "supply", Reason: "must be >= 1"}
	}
	return nil
}

// Summary はプロンプトに埋め込むための1行表現を返します。
func (c GenerationConfig) Summary() string {
	parts := []string{c.Subject}
	if c.Theme != "" {
		parts = append(parts, "theme: "+c.Theme)
	}
	if c.Style != "" {
		parts = append(parts, "style: "+c.Style)
	}
	return strings.Join(parts, ", ")
}
