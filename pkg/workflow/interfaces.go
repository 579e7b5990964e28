package workflow

import (
	"context"

	"github.com/shouni/go-trait-kit/pkg/asset"
	"github.com/shouni/go-trait-kit/pkg/domain"
)

// ConfigParser はテーマ文を GenerationConfig に変換する責務を持ちます。
type ConfigParser interface {
	Parse(ctx context.Context, theme string) (domain.GenerationConfig, error)
}

// CollectionPlanner は生成設定から n 件のマニフェストを計画する責務を持ちます。
type CollectionPlanner interface {
	Plan(ctx context.Context, cfg domain.GenerationConfig, n int) (domain.CollectionManifest, error)
}

// TraitResolver は合成用のトレイト参照を画像データに解決する責務を持ちます。
type TraitResolver interface {
	Resolve(ctx context.Context, base asset.TraitRef, refs []asset.TraitRef) (domain.CompositeRequest, []asset.Skipped, error)
}

// Compositor はベース画像とトレイト群から1枚の合成画像を作る責務を持ちます。
type Compositor interface {
	CompositeRequest(ctx context.Context, req domain.CompositeRequest) ([]byte, error)
}
