package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/shouni/go-trait-kit/internal/config"
	"github.com/shouni/go-trait-kit/pkg/asset"
	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/compositor"
	kitconfig "github.com/shouni/go-trait-kit/pkg/config"
	"github.com/shouni/go-trait-kit/pkg/generator"
	"github.com/shouni/go-trait-kit/pkg/parser"
	"github.com/shouni/go-trait-kit/pkg/planner"
	"github.com/shouni/go-trait-kit/pkg/prompts"
	"github.com/shouni/go-trait-kit/pkg/publisher"
	"github.com/shouni/go-trait-kit/pkg/store"
	"github.com/shouni/go-trait-kit/pkg/workflow"
)

// BuildAppContext は設定を読み込み、バックエンド・ストア・Manager を組み立てます。
// API キーがない場合はシミュレーション用のバックエンドで動作するのだ。
func BuildAppContext(ctx context.Context, opts config.Options) (*AppContext, error) {
	cfg, err := kitconfig.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	if opts.DBPath != "" {
		cfg.Store.Driver = kitconfig.StoreSQLite
		cfg.Store.Path = opts.DBPath
	}

	text, images, err := InitializeBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st, err := InitializeStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	pb, err := prompts.NewTextPromptBuilder()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
	}

	cp := parser.NewConfigParser(text, pb, cfg.Generation.DefaultStyle, cfg.Generation.CollectionSize)
	pl := planner.New(text, pb, cp, planner.WithCategories(cfg.Generation.Categories))

	limiter := rate.NewLimiter(rate.Every(cfg.Generation.RateInterval()), cfg.Generation.RateBurst)
	gen := generator.NewAssetGenerator(images, prompts.NewImagePromptBuilder(cfg.Generation.StyleSuffix), limiter, cfg.Gemini.ImageTemperature)

	manager, err := workflow.New(workflow.ManagerArgs{
		Store:      st,
		Parser:     cp,
		Planner:    pl,
		Generator:  gen,
		Resolver:   asset.NewResolver(st, slog.Default()),
		Compositor: compositor.New(images, compositor.WithTemperature(cfg.Gemini.ImageTemperature)),
		Categories: cfg.Generation.Categories,
		Variations: cfg.Generation.Variations,
		Logger:     slog.Default(),
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("Manager の初期化に失敗しました: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Options:   opts,
		Store:     st,
		Parser:    cp,
		Planner:   pl,
		Manager:   manager,
		Publisher: publisher.New(publisher.LocalWriter{}),
		Simulated: backend.IsSimulated(text),
	}, nil
}

// InitializeBackends はテキスト・画像バックエンドを期限と再試行付きで初期化します。
func InitializeBackends(ctx context.Context, cfg kitconfig.Config) (backend.TextGenerator, backend.ImageGenerator, error) {
	policy := backend.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval(),
		MaxInterval:     cfg.Retry.MaxInterval(),
		RetryOnTimeout:  cfg.Retry.RetryOnTimeout,
	}
	textGuard := backend.Guard{Timeout: cfg.Limits.TextTimeout(), Policy: policy}
	imageGuard := backend.Guard{Timeout: cfg.Limits.ImageTimeout(), Policy: policy}

	if !cfg.HasCredential() {
		slog.WarnContext(ctx, "GEMINI_API_KEY が未設定のため、シミュレーション出力で動作します")
		return backend.NewGuardedText(backend.SimulatedText{}, textGuard),
			backend.NewGuardedImage(backend.SimulatedImage{}, imageGuard), nil
	}

	text, err := backend.NewGeminiText(ctx, cfg.Gemini.APIKey, cfg.Gemini.TextModel, cfg.Gemini.Temperature)
	if err != nil {
		return nil, nil, err
	}
	images, err := backend.NewGeminiImage(ctx, cfg.Gemini.APIKey, cfg.Gemini.ImageModel)
	if err != nil {
		return nil, nil, err
	}
	return backend.NewGuardedText(text, textGuard), backend.NewGuardedImage(images, imageGuard), nil
}

// InitializeStore は設定に応じたストアを開き、トレイト取得のキャッシュで包みます。
func InitializeStore(ctx context.Context, cfg kitconfig.Store) (store.Store, error) {
	var inner store.Store
	switch strings.ToLower(cfg.Driver) {
	case kitconfig.StoreSQLite:
		s, err := store.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite ストアの初期化に失敗しました: %w", err)
		}
		inner = s
	default:
		inner = store.NewMemoryStore()
	}
	return store.NewCachedTraits(inner, cfg.CacheTTL()), nil
}
