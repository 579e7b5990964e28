package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/prompts"
)

// AssetGenerator はベース画像とトレイト画像を生成します。
// 状態を持たないため、異なるカテゴリ・バリエーションの呼び出しは並列に実行できます。
type AssetGenerator struct {
	images        backend.ImageGenerator
	promptBuilder *prompts.ImagePromptBuilder
	limiter       *rate.Limiter
	temperature   *float32
}

// NewAssetGenerator は AssetGenerator を初期化します。limiter が nil の場合は制限しません。
func NewAssetGenerator(images backend.ImageGenerator, pb *prompts.ImagePromptBuilder, limiter *rate.Limiter, temperature float32) *AssetGenerator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &AssetGenerator{
		images:        images,
		promptBuilder: pb,
		limiter:       limiter,
		temperature:   &temperature,
	}
}

// GenerateBase はコレクションのアンカーとなるベース画像を生成します。
func (g *AssetGenerator) GenerateBase(ctx context.Context, cfg domain.GenerationConfig) ([]byte, error) {
	userPrompt, systemPrompt := g.promptBuilder.BuildBasePrompt(cfg)
	seed := seedFor(cfg.Subject)

	logger := slog.With("category", domain.CategoryBody, "simulated", backend.IsSimulated(g.images))
	logger.Info("Starting base generation")
	startTime := time.Now()

	resp, err := g.images.GenerateImage(ctx, backend.ImageRequest{
		Prompt:       userPrompt,
		SystemPrompt: systemPrompt,
		Seed:         &seed,
		Temperature:  g.temperature,
	})
	if err != nil {
		return nil, &domain.GenerationError{Category: domain.CategoryBody, Variation: 0, Err: err}
	}

	data, _, err := domain.NormalizeImageData(resp.Data)
	if err != nil {
		return nil, &domain.GenerationError{Category: domain.CategoryBody, Variation: 0, Err: err}
	}

	logger.Info("Base generation completed", "duration", time.Since(startTime).Round(time.Millisecond), "bytes", len(data))
	return data, nil
}

// GenerateTrait は1カテゴリ1バリエーションのトレイト画像と説明文を生成します。
// 内部で再試行はしません（バックエンド側のポリシーのみ）。
func (g *AssetGenerator) GenerateTrait(ctx context.Context, category string, cfg domain.GenerationConfig, variation int) (TraitResult, error) {
	tp := g.promptBuilder.BuildTraitPrompt(category, cfg, variation)
	seed := seedFor(fmt.Sprintf("%s|%s#%d", cfg.Subject, category, variation))

	logger := slog.With("category", category, "variation", variation)
	logger.Info("Starting trait generation")
	startTime := time.Now()

	resp, err := g.images.GenerateImage(ctx, backend.ImageRequest{
		Prompt:       tp.UserPrompt + ". Avoid: " + prompts.TraitNegativePrompt,
		SystemPrompt: tp.SystemPrompt,
		Seed:         &seed,
		Temperature:  g.temperature,
	})
	if err != nil {
		return TraitResult{}, &domain.GenerationError{Category: category, Variation: variation, Err: err}
	}

	data, mimeType, err := domain.NormalizeImageData(resp.Data)
	if err != nil {
		return TraitResult{}, &domain.GenerationError{Category: category, Variation: variation, Err: err}
	}
	if resp.MimeType != "" {
		mimeType = resp.MimeType
	}

	description := tp.Description
	if backend.IsSimulated(g.images) {
		description = backend.SimulatedLabel + " " + description
	}

	logger.Info("Trait generation completed", "duration", time.Since(startTime).Round(time.Millisecond))
	return TraitResult{
		Category:    category,
		Variation:   variation,
		Description: description,
		ImageData:   data,
		MimeType:    mimeType,
	}, nil
}
