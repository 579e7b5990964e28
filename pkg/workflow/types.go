package workflow

import (
	"log/slog"
	"time"

	"github.com/shouni/go-trait-kit/pkg/asset"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/generator"
	"github.com/shouni/go-trait-kit/pkg/store"
)

// ManagerArgs は Manager の依存関係です。Logger と Clock 以外は必須です。
type ManagerArgs struct {
	Store      store.Store
	Parser     ConfigParser
	Planner    CollectionPlanner
	Generator  generator.Generator
	Resolver   TraitResolver
	Compositor Compositor

	// Categories と Variations は GenerateOptions の既定値です。
	Categories []string
	Variations int

	Logger *slog.Logger
	Clock  func() time.Time
}

// GenerateOptions は Generate で作るトレイトの範囲です。
type GenerateOptions struct {
	Categories []string
	Variations int
}

// GenerateResult は Generate が保存した成果物です。
type GenerateResult struct {
	Base   domain.TraitAsset
	Traits []domain.TraitAsset
}

// PreviewResult は Preview の合成結果です。
type PreviewResult struct {
	Image   []byte
	Skipped []asset.Skipped
}

// PublishResult は Publish が記録したミント記録です。
type PublishResult struct {
	Project  domain.ProjectState
	Manifest domain.CollectionManifest
	Minted   []domain.MintedAsset
}

// tokenMetadata は MintedAsset.MetadataJSON の中身です。
type tokenMetadata struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	DNA         string             `json:"dna"`
	Edition     int                `json:"edition"`
	Date        int64              `json:"date"`
	Attributes  []domain.Attribute `json:"attributes"`
	Contract    string             `json:"contract_address,omitempty"`
}
