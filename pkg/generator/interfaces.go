package generator

import (
	"context"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// TraitSpec は生成するトレイトのカテゴリとバリエーション番号です。
type TraitSpec struct {
	Category  string
	Variation int
}

// TraitResult は生成されたトレイト1件です。永続化は呼び出し側の責務です。
type TraitResult struct {
	Category    string
	Variation   int
	Description string
	ImageData   []byte
	MimeType    string
}

// Generator はベース画像とトレイト画像を生成する契約です。
type Generator interface {
	GenerateBase(ctx context.Context, cfg domain.GenerationConfig) ([]byte, error)
	GenerateTrait(ctx context.Context, category string, cfg domain.GenerationConfig, variation int) (TraitResult, error)
	// GenerateTraits は失敗があっても成功した結果を返します。error が nil でなくても結果は有効なのだ。
	GenerateTraits(ctx context.Context, cfg domain.GenerationConfig, specs []TraitSpec) ([]TraitResult, error)
}
