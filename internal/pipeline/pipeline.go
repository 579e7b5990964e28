package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-trait-kit/internal/builder"
	"github.com/shouni/go-trait-kit/pkg/asset"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/publisher"
	"github.com/shouni/go-trait-kit/pkg/workflow"
)

// Result は Execute の成果物なのだ。
type Result struct {
	Project domain.ProjectState
	Publish publisher.PublishResult
}

// Execute はテーマからプロジェクトを作成し、生成・プレビュー・保存・公開ファイルの出力までを一括で実行するのだ。
func Execute(ctx context.Context, appCtx *builder.AppContext, theme string) (Result, error) {
	opts := appCtx.Options

	// --- Phase 1: Config Phase (設定の解析) ---
	slog.Info("Phase 1: テーマを解析するのだ...", "theme", theme)
	project, err := appCtx.Manager.CreateProject(ctx, opts.Owner, theme, opts.Name)
	if err != nil {
		return Result{}, fmt.Errorf("プロジェクトの作成に失敗したのだ: %w", err)
	}

	// --- Phase 2: Generate Phase (ベースとトレイトの生成) ---
	slog.Info("Phase 2: 画像生成を開始するのだ...", "project_id", project.ID)
	if _, err := appCtx.Manager.Generate(ctx, project.ID, workflow.GenerateOptions{
		Categories: opts.Categories,
		Variations: opts.Variations,
	}); err != nil {
		return Result{}, fmt.Errorf("画像生成に失敗したのだ: %w", err)
	}

	// --- Phase 3: Preview & Save Phase (合成と保存) ---
	slog.Info("Phase 3: プレビューを合成するのだ...")
	if err := runPreviewStep(ctx, appCtx.Manager, project.ID, nil); err != nil {
		return Result{}, err
	}
	if _, err := appCtx.Manager.Save(ctx, project.ID); err != nil {
		return Result{}, fmt.Errorf("プロジェクトの保存に失敗したのだ: %w", err)
	}

	// --- Phase 4: Publish Phase (公開/保存) ---
	return runPublishStep(ctx, appCtx, project.ID)
}

// Composite は既存プロジェクトのトレイト ID を指定してプレビューを合成するのだ。
func Composite(ctx context.Context, appCtx *builder.AppContext, projectID string, traitIDs []string) ([]byte, error) {
	refs := make([]asset.TraitRef, 0, len(traitIDs))
	for _, id := range traitIDs {
		t, err := appCtx.Store.Get(ctx, id)
		if err != nil {
			// 見つからない参照も Resolver に渡し、ポリシーに従って除外させる
			refs = append(refs, asset.TraitRef{ID: id})
			continue
		}
		refs = append(refs, asset.TraitRef{Category: t.Category, ID: t.ID})
	}

	res, err := appCtx.Manager.Preview(ctx, projectID, refs)
	if err != nil {
		return nil, fmt.Errorf("合成に失敗したのだ: %w", err)
	}
	return res.Image, nil
}

// runPreviewStep は Manager を使ってプレビュー画像を合成するのだ
func runPreviewStep(ctx context.Context, manager *workflow.Manager, projectID string, selection []asset.TraitRef) error {
	res, err := manager.Preview(ctx, projectID, selection)
	if err != nil {
		return fmt.Errorf("プレビューの合成に失敗したのだ: %w", err)
	}
	if len(res.Skipped) > 0 {
		slog.Warn("一部のトレイトを除外して合成したのだ", "skipped", len(res.Skipped))
	}
	return nil
}

// runPublishStep はミント記録を作成し、成果物をファイルに書き出すのだ
func runPublishStep(ctx context.Context, appCtx *builder.AppContext, projectID string) (Result, error) {
	slog.Info("Phase 4: 公開処理を開始するのだ...")
	published, err := appCtx.Manager.Publish(ctx, projectID, appCtx.Options.Contract)
	if err != nil {
		return Result{}, fmt.Errorf("公開処理に失敗したのだ: %w", err)
	}

	// Publish 後のレイヤーはストアから組み立て直す
	project, err := appCtx.Store.GetProject(ctx, projectID)
	if err != nil {
		return Result{}, err
	}

	files, err := appCtx.Publisher.Publish(ctx, project, published.Manifest, appCtx.Options.OutputDir)
	if err != nil {
		return Result{}, fmt.Errorf("ファイルの書き出しに失敗したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！", "manifest", files.ManifestPath, "minted", len(published.Minted))
	return Result{Project: project, Publish: files}, nil
}
