// Package planner は生成設定からコレクションマニフェストを計画します。
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/parser"
	"github.com/shouni/go-trait-kit/pkg/prompts"
	"github.com/shouni/go-trait-kit/pkg/textgen"
)

// placeholderPattern はモデルに提示する image フィールドの形です。
const placeholderPattern = "ipfs://placeholder/{edition}.png"

// Planner は1回のテキスト生成でマニフェストを作り、厳密に検証します。
// 件数の不一致や dna の衝突は補正せずエラーとして返すのだ。
type Planner struct {
	text          backend.TextGenerator
	promptBuilder prompts.PromptBuilder
	parser        parser.Parser
	categories    []string
	now           func() time.Time
}

// Option は Planner の任意設定です。
type Option func(*Planner)

// WithCategories は必須カテゴリ以外に提案させるカテゴリを指定します。
func WithCategories(categories []string) Option {
	return func(p *Planner) {
		p.categories = extraCategories(categories)
	}
}

// WithClock はタイムスタンプ補完に使う時計を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New は新しい Planner を生成します。
func New(text backend.TextGenerator, pb prompts.PromptBuilder, cp parser.Parser, opts ...Option) *Planner {
	p := &Planner{
		text:          text,
		promptBuilder: pb,
		parser:        cp,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlanTheme はテーマを解析してから計画します。n が 0 以下なら設定の supply を使います。
func (p *Planner) PlanTheme(ctx context.Context, theme string, n int) (domain.CollectionManifest, error) {
	if p.parser == nil {
		return nil, &domain.ConfigurationError{Key: "planner.parser", Reason: "not configured"}
	}
	cfg, err := p.parser.Parse(ctx, theme)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = cfg.Supply
	}
	return p.Plan(ctx, cfg, n)
}

// Plan は cfg から n 件のマニフェストを計画します。n が 0 以下なら既定の 5 件です。
func (p *Planner) Plan(ctx context.Context, cfg domain.GenerationConfig, n int) (domain.CollectionManifest, error) {
	if n <= 0 {
		n = domain.DefaultCollectionSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.With("subject", cfg.Subject, "size", n)
	if backend.IsSimulated(p.text) {
		logger.Warn("認証情報がないためシミュレーションのマニフェストを返します")
		return p.simulated(cfg, n), nil
	}

	prompt, err := p.promptBuilder.Build(prompts.ModePlan, prompts.TemplateData{
		Subject:          cfg.Subject,
		Theme:            cfg.Theme,
		Style:            cfg.Style,
		Size:             n,
		Categories:       p.categories,
		PlaceholderImage: placeholderPattern,
	})
	if err != nil {
		return nil, fmt.Errorf("プロンプト生成に失敗: %w", err)
	}

	startTime := time.Now()
	raw, err := p.text.GenerateText(ctx, prompts.PlanSystemInstruction, prompt)
	if err != nil {
		return nil, &domain.GenerationError{Category: "planning", Variation: -1, Err: err}
	}

	manifest, err := textgen.Decode[domain.CollectionManifest]("planning", raw)
	if err != nil {
		return nil, err
	}
	p.fillPlaceholders(manifest)

	if err := manifest.Validate(n); err != nil {
		return nil, err
	}

	logger.Info("コレクションを計画しました", "duration", time.Since(startTime).Round(time.Millisecond))
	return manifest, nil
}

// fillPlaceholders は計画段階で空のまま返りがちな image と date を補います。件数には触れません。
func (p *Planner) fillPlaceholders(m domain.CollectionManifest) {
	ts := p.now().UnixMilli()
	for i := range m {
		img := strings.TrimSpace(m[i].Image)
		if img == "" || strings.Contains(img, "{edition}") {
			m[i].Image = fmt.Sprintf(domain.PlaceholderImageFormat, m[i].Edition)
		}
		if m[i].Timestamp == 0 {
			m[i].Timestamp = ts
		}
	}
}

func (p *Planner) simulated(cfg domain.GenerationConfig, n int) domain.CollectionManifest {
	ts := p.now().UnixMilli()
	manifest := make(domain.CollectionManifest, 0, n)
	seen := make(map[string]bool, n)
	for i := 1; i <= n; i++ {
		dna := simulatedDNA(cfg.Subject, i, seen)
		attrs := []domain.Attribute{
			{TraitType: domain.CategoryBackground, Value: fmt.Sprintf("%s backdrop %d", cfg.Theme, i)},
			{TraitType: domain.CategoryBody, Value: fmt.Sprintf("%s body", cfg.Subject)},
			{TraitType: domain.CategoryHead, Value: fmt.Sprintf("%s head variant %d", cfg.Subject, i)},
		}
		for j, category := range p.categories {
			attrs = append(attrs, domain.Attribute{TraitType: category, Value: fmt.Sprintf("%s option %d", strings.ToLower(category), (i+j)%3+1)})
		}
		manifest = append(manifest, domain.CharacterPlan{
			Name:        fmt.Sprintf("%s #%d", backend.SimulatedLabel, i),
			Description: fmt.Sprintf("%s placeholder character for %s", backend.SimulatedLabel, cfg.Summary()),
			DNA:         dna,
			Edition:     i,
			Timestamp:   ts,
			Image:       fmt.Sprintf(domain.PlaceholderImageFormat, i),
			Attributes:  attrs,
		})
	}
	return manifest
}

func simulatedDNA(subject string, edition int, seen map[string]bool) string {
	for salt := 0; ; salt++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", subject, edition, salt)))
		dna := fmt.Sprintf("cn_%08x", binary.BigEndian.Uint32(sum[:4]))
		if !seen[dna] {
			seen[dna] = true
			return dna
		}
	}
}

// extraCategories は必須カテゴリを除いたカテゴリを返します。
func extraCategories(categories []string) []string {
	var out []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || isRequired(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isRequired(category string) bool {
	for _, r := range domain.RequiredCategories {
		if strings.EqualFold(r, category) {
			return true
		}
	}
	return false
}
