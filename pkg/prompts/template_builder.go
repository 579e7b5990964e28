package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// PromptBuilder は、テーマ解析とコレクション計画のテキストプロンプトを組み立てる契約です。
type PromptBuilder interface {
	Build(mode string, data TemplateData) (string, error)
}

// TextPromptBuilder は ModeConfig と ModePlan の埋め込みテンプレートを解析済みで保持します。
type TextPromptBuilder struct {
	templates map[string]*template.Template
}

// NewTextPromptBuilder はすべてのモードのテンプレートを解析します。
// 埋め込みファイルが空か壊れている場合は ConfigurationError を返すのだ。
func NewTextPromptBuilder() (*TextPromptBuilder, error) {
	templates := make(map[string]*template.Template, len(allTemplates))
	for mode, body := range allTemplates {
		if strings.TrimSpace(body) == "" {
			return nil, &domain.ConfigurationError{Key: "prompts." + mode, Reason: "embedded template is empty"}
		}
		tmpl, err := template.New(mode).Option("missingkey=error").Parse(body)
		if err != nil {
			return nil, &domain.ConfigurationError{Key: "prompts." + mode, Reason: err.Error()}
		}
		templates[mode] = tmpl
	}
	return &TextPromptBuilder{templates: templates}, nil
}

// Build は mode のテンプレートに data を埋め込みます。
// ModeConfig はテーマ文を、ModePlan は subject・件数・カテゴリを参照します。
// 未知の mode は ValidationError です。
func (b *TextPromptBuilder) Build(mode string, data TemplateData) (string, error) {
	tmpl, ok := b.templates[mode]
	if !ok {
		return "", &domain.ValidationError{Field: "mode", Reason: fmt.Sprintf("no prompt template for %q", mode)}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%s プロンプトの組み立てに失敗しました (subject=%q, theme=%q): %w", mode, data.Subject, data.Theme, err)
	}
	return sb.String(), nil
}
