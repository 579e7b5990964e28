// Package compositor はベース画像にトレイト画像を重ねた1枚の完成画像を生成します。
package compositor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/prompts"
)

// CompositeCategory は合成呼び出しの失敗を GenerationError で報告するときのカテゴリ名です。
const CompositeCategory = "composite"

// SeedFunc は合成ごとのシードを返します。
type SeedFunc func() int64

// TimeSeed は現在時刻から 31bit のシードを作ります。
func TimeSeed() int64 {
	return time.Now().UnixNano() & 0x7FFFFFFF
}

// Option は Compositor の設定を変更します。
type Option func(*Compositor)

// WithSeedFunc はシードの生成方法を差し替えます。
func WithSeedFunc(f SeedFunc) Option {
	return func(c *Compositor) {
		if f != nil {
			c.seed = f
		}
	}
}

// WithTemperature は合成時の温度を指定します。
func WithTemperature(t float32) Option {
	return func(c *Compositor) {
		c.temperature = &t
	}
}

// Compositor は画像バックエンドへの1回の呼び出しで合成を行います。
type Compositor struct {
	images      backend.ImageGenerator
	seed        SeedFunc
	temperature *float32
}

// New は Compositor を生成します。
func New(images backend.ImageGenerator, opts ...Option) *Compositor {
	c := &Compositor{images: images, seed: TimeSeed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompositeRequest は組み立て済みの合成入力を処理します。
func (c *Compositor) CompositeRequest(ctx context.Context, req domain.CompositeRequest) ([]byte, error) {
	return c.Composite(ctx, req.BaseImage, req.Traits)
}

// Composite は base の上に traits を重ねた画像を返します。traits が空でも呼び出しは有効です。
// 失敗時にプレースホルダーは返しません。
func (c *Compositor) Composite(ctx context.Context, base []byte, traits []domain.CompositeTrait) ([]byte, error) {
	baseData, baseMime, err := domain.NormalizeImageData(base)
	if err != nil || len(baseData) == 0 {
		if err == nil {
			err = &domain.ValidationError{Field: "base_image", Reason: "empty"}
		}
		return nil, &domain.CompositeError{TraitCount: len(traits), Err: err}
	}

	refs := make([]backend.Reference, 0, len(traits)+1)
	refs = append(refs, backend.Reference{Data: baseData, MimeType: baseMime})
	categories := make([]string, 0, len(traits))
	for _, t := range traits {
		data, mimeType, err := domain.NormalizeImageData(t.ImageData)
		if err != nil {
			return nil, &domain.CompositeError{TraitCount: len(traits), Err: err}
		}
		refs = append(refs, backend.Reference{Data: data, MimeType: mimeType})
		categories = append(categories, strings.ToLower(t.Category))
	}

	userPrompt, systemPrompt := prompts.BuildCompositePrompt(categories)
	seed := c.seed()

	logger := slog.With("traits", len(traits), "seed", seed)
	logger.Info("Starting composite")
	startTime := time.Now()

	resp, err := c.images.GenerateImage(ctx, backend.ImageRequest{
		Prompt:       userPrompt,
		SystemPrompt: systemPrompt,
		References:   refs,
		Seed:         &seed,
		Temperature:  c.temperature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoImage) {
			return nil, &domain.CompositeError{TraitCount: len(traits), Err: err}
		}
		// 呼び出し自体の失敗やタイムアウトは生成失敗として扱う
		return nil, &domain.GenerationError{Category: CompositeCategory, Variation: -1, Err: err}
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, &domain.CompositeError{TraitCount: len(traits), Err: domain.ErrNoImage}
	}

	out, _, err := domain.NormalizeImageData(resp.Data)
	if err != nil {
		return nil, &domain.CompositeError{TraitCount: len(traits), Err: err}
	}
	if len(out) == 0 {
		return nil, &domain.CompositeError{TraitCount: len(traits), Err: domain.ErrNoImage}
	}

	logger.Info("Composite completed", "duration", time.Since(startTime).Round(time.Millisecond), "bytes", len(out))
	return out, nil
}
