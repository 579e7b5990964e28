// Package workflow はプロジェクトのライフサイクルを進めるオーケストレーション層です。
// status を書き換えるのはこのパッケージだけで、生成・合成の各コンポーネントは成果物だけを返します。
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-trait-kit/pkg/asset"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/generator"
	"github.com/shouni/go-trait-kit/pkg/store"
)

// Manager はパーサー・生成器・合成器・ストアを束ね、プロジェクトの状態遷移を管理します。
type Manager struct {
	store      store.Store
	parser     ConfigParser
	planner    CollectionPlanner
	generator  generator.Generator
	resolver   TraitResolver
	compositor Compositor

	categories []string
	variations int
	logger     *slog.Logger
	now        func() time.Time

	locks sync.Map // projectID -> *sync.Mutex
}

// New は依存関係を検証して新しい Manager を初期化します。
func New(args ManagerArgs) (*Manager, error) {
	if args.Store == nil {
		return nil, fmt.Errorf("Store は必須です")
	}
	if args.Parser == nil {
		return nil, fmt.Errorf("Parser は必須です")
	}
	if args.Planner == nil {
		return nil, fmt.Errorf("Planner は必須です")
	}
	if args.Generator == nil {
		return nil, fmt.Errorf("Generator は必須です")
	}
	if args.Compositor == nil {
		return nil, fmt.Errorf("Compositor は必須です")
	}

	resolver := args.Resolver
	if resolver == nil {
		resolver = asset.NewResolver(args.Store, args.Logger)
	}
	categories := args.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	variations := args.Variations
	if variations <= 0 {
		variations = DefaultVariations
	}
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := args.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		store:      args.Store,
		parser:     args.Parser,
		planner:    args.Planner,
		generator:  args.Generator,
		resolver:   resolver,
		compositor: args.Compositor,
		categories: categories,
		variations: variations,
		logger:     logger,
		now:        now,
	}, nil
}

// lock はプロジェクト単位のロックを取得し、解放関数を返します。
func (m *Manager) lock(projectID string) func() {
	v, _ := m.locks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// transition は遷移を検証してから永続化します。
func (m *Manager) transition(ctx context.Context, p *domain.ProjectState, to domain.Status) error {
	from := p.Status
	if err := p.Transition(to, m.now()); err != nil {
		return err
	}
	if err := m.store.UpdateProject(ctx, *p); err != nil {
		p.Status = from
		return fmt.Errorf("プロジェクト状態の保存に失敗しました: %w", err)
	}
	m.logger.Info("Project status changed", "project_id", p.ID, "from", from, "to", to)
	return nil
}

// CreateProject はテーマを解析し、draft 状態のプロジェクトとして保存します。
func (m *Manager) CreateProject(ctx context.Context, owner, theme, name string) (domain.ProjectState, error) {
	cfg, err := m.parser.Parse(ctx, theme)
	if err != nil {
		return domain.ProjectState{}, err
	}
	if name == "" {
		name = cfg.Summary()
	}

	p, err := m.store.CreateProject(ctx, domain.ProjectState{
		OwnerAddress: owner,
		Prompt:       theme,
		Name:         name,
		Status:       domain.StatusDraft,
		Config:       cfg,
	})
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	m.logger.Info("Project created", "project_id", p.ID, "subject", cfg.Subject, "theme", cfg.Theme)
	return p, nil
}

// Generate はベース画像とトレイト画像を生成して保存します。
// draft から generating に遷移し、Save が呼ばれるまで generating のままです。
// 保存済みのベース画像と (category, variation) は生成し直しません。失敗後に再度呼ぶと不足分だけを生成し、
// variations を増やして呼ぶと既存レイヤーにバリエーションが追加されます。
// 一部のトレイトが失敗した場合も成功分は保存され、その結果と GenerationError の両方を返します。
func (m *Manager) Generate(ctx context.Context, projectID string, opts GenerateOptions) (GenerateResult, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return GenerateResult{}, err
	}
	if p.Status != domain.StatusGenerating {
		if err := m.transition(ctx, &p, domain.StatusGenerating); err != nil {
			return GenerateResult{}, err
		}
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = m.categories
	}
	variations := opts.Variations
	if variations <= 0 {
		variations = m.variations
	}

	logger := m.logger.With("project_id", p.ID)
	logger.Info("Starting generation", "categories", strings.Join(categories, ","), "variations", variations)
	startTime := time.Now()

	base, err := m.ensureBase(ctx, &p, logger)
	if err != nil {
		return GenerateResult{}, err
	}
	res := GenerateResult{Base: base}

	specs := pendingSpecs(p.Layers, generator.ExpandSpecs(categories, variations))
	if len(specs) == 0 {
		logger.Info("All traits already generated")
		return res, nil
	}

	results, genErr := m.generator.GenerateTraits(ctx, p.Config, specs)
	genErr = withProject(genErr, p.ID)

	// 期限切れ後も生成済みの結果は保存する
	saveCtx := context.WithoutCancel(ctx)
	for _, r := range results {
		a, err := m.store.Save(saveCtx, p.ID, r.Category, r.Variation, r.Description, r.ImageData)
		if err != nil {
			return res, errors.Join(fmt.Errorf("トレイト %s#%d の保存に失敗しました: %w", r.Category, r.Variation, err), genErr)
		}
		res.Traits = append(res.Traits, a)
	}

	if genErr != nil {
		logger.Warn("Generation partially failed", "saved", len(res.Traits), "failed", len(specs)-len(results), "error", genErr)
		return res, genErr
	}
	logger.Info("Generation completed", "traits", len(res.Traits), "duration", time.Since(startTime).Round(time.Millisecond))
	return res, nil
}

// ensureBase は保存済みのベース画像を返し、なければ生成して保存します。
// 新しく作ったときだけ previewImage をベース画像にします。
func (m *Manager) ensureBase(ctx context.Context, p *domain.ProjectState, logger *slog.Logger) (domain.TraitAsset, error) {
	if base, err := p.Layers.Base(); err == nil {
		logger.Info("Reusing stored base", "trait_id", base.ID)
		return base, nil
	}

	baseData, err := m.generator.GenerateBase(ctx, p.Config)
	if err != nil {
		return domain.TraitAsset{}, withProject(err, p.ID)
	}
	base, err := m.store.Save(context.WithoutCancel(ctx), p.ID, domain.CategoryBody, 0, baseDescription, baseData)
	if err != nil {
		return domain.TraitAsset{}, fmt.Errorf("ベース画像の保存に失敗しました: %w", err)
	}
	p.Layers = p.Layers.Append(base)

	p.PreviewImage = base.ImageData
	p.UpdatedAt = m.now()
	if err := m.store.UpdateProject(ctx, *p); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("プレビューの保存に失敗しました: %w", err)
	}
	return base, nil
}

// pendingSpecs は layers にまだ保存されていない spec だけを返します。
func pendingSpecs(layers domain.Layers, specs []generator.TraitSpec) []generator.TraitSpec {
	out := make([]generator.TraitSpec, 0, len(specs))
	for _, spec := range specs {
		if !hasVariation(layers, spec.Category, spec.Variation) {
			out = append(out, spec)
		}
	}
	return out
}

func hasVariation(layers domain.Layers, category string, variation int) bool {
	layer, ok := layers.Find(category)
	if !ok {
		return false
	}
	for _, t := range layer.Traits {
		if t.Variation == variation {
			return true
		}
	}
	return false
}

// Preview は選択されたトレイトをベース画像に合成し、previewImage として保存します。
// selection が空の場合は Body 以外の各レイヤーの先頭トレイトを使います。
func (m *Manager) Preview(ctx context.Context, projectID string, selection []asset.TraitRef) (PreviewResult, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return PreviewResult{}, err
	}
	if p.Status != domain.StatusGenerating {
		return PreviewResult{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("preview requires %s, project %s is %s", domain.StatusGenerating, p.ID, p.Status)}
	}

	base, err := p.Layers.Base()
	if err != nil {
		return PreviewResult{}, err
	}
	if len(selection) == 0 {
		selection = defaultSelection(p.Layers)
	}

	req, skipped, err := m.resolver.Resolve(ctx, asset.TraitRef{Category: domain.CategoryBody, ID: base.ID}, selection)
	if err != nil {
		return PreviewResult{}, err
	}
	if len(skipped) > 0 {
		m.logger.Warn("Some traits were skipped", "project_id", p.ID, "skipped", len(skipped))
	}

	img, err := m.compositor.CompositeRequest(ctx, req)
	if err != nil {
		return PreviewResult{}, err
	}

	p.PreviewImage = img
	p.UpdatedAt = m.now()
	if err := m.store.UpdateProject(ctx, p); err != nil {
		return PreviewResult{}, fmt.Errorf("プレビューの保存に失敗しました: %w", err)
	}
	return PreviewResult{Image: img, Skipped: skipped}, nil
}

func defaultSelection(layers domain.Layers) []asset.TraitRef {
	refs := make([]asset.TraitRef, 0, len(layers))
	for _, l := range layers {
		if strings.EqualFold(l.Name, domain.CategoryBody) || len(l.Traits) == 0 {
			continue
		}
		refs = append(refs, asset.TraitRef{Category: l.Name, ID: l.Traits[0].ID})
	}
	return refs
}

// Save は generating から saved に遷移します。レイヤーかプレビューのどちらかが必要です。
func (m *Manager) Save(ctx context.Context, projectID string) (domain.ProjectState, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectState{}, err
	}
	if p.Layers.TraitCount() == 0 && len(p.PreviewImage) == 0 {
		return domain.ProjectState{}, &domain.ValidationError{Field: "layers", Reason: "nothing generated for project " + p.ID}
	}
	if err := p.Layers.Validate(); err != nil {
		return domain.ProjectState{}, err
	}
	if err := m.transition(ctx, &p, domain.StatusSaved); err != nil {
		return domain.ProjectState{}, err
	}
	return p, nil
}

// Edit は saved のプロジェクトを再編集のため draft に戻します。
func (m *Manager) Edit(ctx context.Context, projectID string) (domain.ProjectState, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return domain.ProjectState{}, err
	}
	if err := m.transition(ctx, &p, domain.StatusDraft); err != nil {
		return domain.ProjectState{}, err
	}
	return p, nil
}

// Plan はプロジェクトの設定から n 件のマニフェストを計画します。n が 0 以下なら supply を使います。
func (m *Manager) Plan(ctx context.Context, projectID string, n int) (domain.CollectionManifest, error) {
	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = p.Config.Supply
	}
	return m.planner.Plan(ctx, p.Config, n)
}

// Publish は saved から published に遷移し、マニフェストの各エディションをミント記録として保存します。
// ミント記録は一括で保存され、途中で失敗した場合は1件も残りません。
// 既に保存済みの token_id は作り直さないため、状態遷移だけが失敗した後の再実行も安全です。
// 決済やオンチェーンのミントは行いません。
func (m *Manager) Publish(ctx context.Context, projectID, contractAddress string) (PublishResult, error) {
	unlock := m.lock(projectID)
	defer unlock()

	p, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return PublishResult{}, err
	}
	if !p.CanTransition(domain.StatusPublished) {
		return PublishResult{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("cannot publish project %s in %s", p.ID, p.Status)}
	}

	manifest, err := m.planner.Plan(ctx, p.Config, p.Config.Supply)
	if err != nil {
		return PublishResult{}, err
	}

	existing, err := m.store.ListMinted(ctx, p.ID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("ミント記録の取得に失敗しました: %w", err)
	}
	recorded := make(map[int]bool, len(existing))
	for _, a := range existing {
		recorded[a.TokenID] = true
	}

	pending := make([]domain.MintedAsset, 0, len(manifest))
	for _, plan := range manifest {
		if recorded[plan.Edition] {
			continue
		}
		meta, err := json.Marshal(tokenMetadata{
			Name:        plan.Name,
			Description: plan.Description,
			Image:       plan.Image,
			DNA:         plan.DNA,
			Edition:     plan.Edition,
			Date:        plan.Timestamp,
			Attributes:  plan.Attributes,
			Contract:    contractAddress,
		})
		if err != nil {
			return PublishResult{}, fmt.Errorf("メタデータの生成に失敗しました: %w", err)
		}
		pending = append(pending, domain.MintedAsset{
			ProjectID:    p.ID,
			TokenID:      plan.Edition,
			Edition:      plan.Edition,
			Name:         plan.Name,
			DNA:          plan.DNA,
			ImageData:    p.PreviewImage,
			MetadataJSON: string(meta),
		})
	}

	all := existing
	if len(pending) > 0 {
		created, err := m.store.CreateMintedBatch(ctx, pending)
		if err != nil {
			return PublishResult{}, fmt.Errorf("ミント記録の保存に失敗しました: %w", err)
		}
		all = append(all, created...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TokenID < all[j].TokenID })
	if len(existing) > 0 {
		m.logger.Info("Reused minted records", "project_id", p.ID, "existing", len(existing), "created", len(pending))
	}

	p.ContractAddress = contractAddress
	if err := m.transition(ctx, &p, domain.StatusPublished); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{Project: p, Manifest: manifest, Minted: all}, nil
}

// withProject はエラーツリー内のすべての GenerationError にプロジェクト ID を補います。
func withProject(err error, projectID string) error {
	tagProject(err, projectID)
	return err
}

func tagProject(err error, projectID string) {
	switch e := err.(type) {
	case nil:
	case *domain.GenerationError:
		if e.ProjectID == "" {
			e.ProjectID = projectID
		}
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			tagProject(inner, projectID)
		}
	case interface{ Unwrap() error }:
		tagProject(e.Unwrap(), projectID)
	}
}
