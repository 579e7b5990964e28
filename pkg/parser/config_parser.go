// Package parser は自由テキストのテーマを GenerationConfig に変換します。
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/prompts"
	"github.com/shouni/go-trait-kit/pkg/textgen"
)

// Parser はテーマ文字列を生成設定に変換する契約です。
type Parser interface {
	Parse(ctx context.Context, theme string) (domain.GenerationConfig, error)
}

// ConfigParser はテキスト生成バックエンドを1回呼び、結果を構造検証します。
// 内部で再試行は行いません。
type ConfigParser struct {
	text          backend.TextGenerator
	promptBuilder prompts.PromptBuilder
	defaultStyle  string
	defaultSupply int
}

// NewConfigParser は新しい ConfigParser を生成します。
func NewConfigParser(text backend.TextGenerator, pb prompts.PromptBuilder, defaultStyle string, defaultSupply int) *ConfigParser {
	if defaultSupply < 1 {
		defaultSupply = domain.DefaultCollectionSize
	}
	return &ConfigParser{
		text:          text,
		promptBuilder: pb,
		defaultStyle:  defaultStyle,
		defaultSupply: defaultSupply,
	}
}

type configResponse struct {
	Subject string `json:"subject"`
	Theme   string `json:"theme"`
	Style   string `json:"style"`
	Supply  int    `json:"supply"`
}

// Parse はテーマを解析します。subject か theme が欠けていれば ParseError を返し、部分的な設定は返しません。
func (p *ConfigParser) Parse(ctx context.Context, theme string) (domain.GenerationConfig, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return domain.GenerationConfig{}, &domain.ParseError{Stage: "config", Err: &domain.ValidationError{Field: "theme", Reason: "empty input"}}
	}

	if backend.IsSimulated(p.text) {
		slog.WarnContext(ctx, "認証情報がないためシミュレーション設定を返します", "theme", theme)
		return p.simulated(theme), nil
	}

	prompt, err := p.promptBuilder.Build(prompts.ModeConfig, prompts.TemplateData{Theme: theme})
	if err != nil {
		return domain.GenerationConfig{}, fmt.Errorf("プロンプト生成に失敗: %w", err)
	}

	raw, err := p.text.GenerateText(ctx, prompts.ConfigSystemInstruction, prompt)
	if err != nil {
		return domain.GenerationConfig{}, &domain.GenerationError{Category: "config", Variation: -1, Err: err}
	}

	resp, err := textgen.Decode[configResponse]("config", raw)
	if err != nil {
		return domain.GenerationConfig{}, err
	}

	cfg := domain.GenerationConfig{
		Subject: strings.TrimSpace(resp.Subject),
		Theme:   strings.TrimSpace(resp.Theme),
		Style:   strings.TrimSpace(resp.Style),
		Supply:  resp.Supply,
	}
	if cfg.Style == "" {
		cfg.Style = p.defaultStyle
	}
	if cfg.Supply < 1 {
		cfg.Supply = p.defaultSupply
	}
	if err := cfg.Validate(); err != nil {
		return domain.GenerationConfig{}, err
	}

	slog.InfoContext(ctx, "生成設定を解析しました", "subject", cfg.Subject, "theme", cfg.Theme, "supply", cfg.Supply)
	return cfg, nil
}

func (p *ConfigParser) simulated(theme string) domain.GenerationConfig {
	return domain.GenerationConfig{
		Subject: backend.SimulatedLabel + " " + theme,
		Theme:   theme,
		Style:   p.defaultStyle,
		Supply:  p.defaultSupply,
	}
}
