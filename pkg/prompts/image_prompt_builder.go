package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// ImagePromptBuilder は、ベース画像とトレイト画像のプロンプトを構築します。
type ImagePromptBuilder struct {
	defaultSuffix string // "clean line art, ..." 等の共通サフィックス
}

// NewImagePromptBuilder は新しい ImagePromptBuilder を生成します。
func NewImagePromptBuilder(suffix string) *ImagePromptBuilder {
	return &ImagePromptBuilder{defaultSuffix: suffix}
}

// TraitPrompt はトレイト1件分のプロンプトと説明文です。
type TraitPrompt struct {
	UserPrompt   string
	SystemPrompt string
	Description  string
}

func (pb *ImagePromptBuilder) systemPrompt(role string, cfg domain.GenerationConfig) string {
	parts := []string{role, RenderingStyle}
	if cfg.Style != "" {
		parts = append(parts, fmt.Sprintf("### ARTISTIC STYLE ###\n%s", cfg.Style))
	}
	if pb.defaultSuffix != "" {
		parts = append(parts, fmt.Sprintf("### GLOBAL VISUAL STYLE ###\n%s", pb.defaultSuffix))
	}
	return strings.Join(parts, "\n\n")
}

// BuildBasePrompt は、コレクション全体のアンカーとなるベースキャラクターのプロンプトを生成します。
func (pb *ImagePromptBuilder) BuildBasePrompt(cfg domain.GenerationConfig) (userPrompt, systemPrompt string) {
	const baseSystemInstruction = "You are a character designer. Create the single base character that every trait in the collection will be layered onto."
	systemPrompt = pb.systemPrompt(baseSystemInstruction, cfg)

	userPrompt = joinClean(
		fmt.Sprintf("base %s character", cfg.Subject),
		cfg.Theme,
		"neutral expression, neutral pose, no clothing accessories or headwear",
		CharacterSheetTags,
	)
	return userPrompt, systemPrompt
}

// BuildTraitPrompt は、カテゴリとバリエーション番号から単体トレイトのプロンプトを生成します。
// 同じ入力からは常に同じ説明文が得られるのだ。
func (pb *ImagePromptBuilder) BuildTraitPrompt(category string, cfg domain.GenerationConfig, variation int) TraitPrompt {
	const traitSystemInstruction = "You are a character asset artist. Draw one isolated trait item that can later be layered onto a base character."

	motif := motifFor(category, variation)
	description := fmt.Sprintf("%s: %s for %s (%s)", category, motif, cfg.Subject, cfg.Theme)

	userPrompt := joinClean(
		fmt.Sprintf("isolated %s trait", strings.ToLower(category)),
		motif,
		fmt.Sprintf("designed for a %s character", cfg.Subject),
		cfg.Theme,
		"placement: "+PlacementFor(category),
		"plain transparent-looking background, no character body",
	)

	return TraitPrompt{
		UserPrompt:   userPrompt,
		SystemPrompt: pb.systemPrompt(traitSystemInstruction, cfg),
		Description:  description,
	}
}

func joinClean(parts ...string) string {
	cleanParts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			cleanParts = append(cleanParts, s)
		}
	}
	return strings.Join(cleanParts, ", ")
}
