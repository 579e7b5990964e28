package generator

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// GenerateTraits は specs を並列に生成し、成功した結果を入力と同じ順序で返します。
// 一部が失敗しても他の spec は最後まで生成され、失敗分は GenerationError をまとめた error で返ります。
// ctx がキャンセルされると、レート制限で待機中の spec はすぐに失敗します。
func (g *AssetGenerator) GenerateTraits(ctx context.Context, cfg domain.GenerationConfig, specs []TraitSpec) ([]TraitResult, error) {
	results := make([]TraitResult, len(specs))
	errs := make([]error, len(specs))
	var eg errgroup.Group

	for i, spec := range specs {
		eg.Go(func() error {
			if err := g.limiter.Wait(ctx); err != nil {
				errs[i] = &domain.GenerationError{Category: spec.Category, Variation: spec.Variation, Err: waitError(ctx, err)}
				return nil
			}

			res, err := g.GenerateTrait(ctx, spec.Category, cfg, spec.Variation)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = eg.Wait()

	succeeded := make([]TraitResult, 0, len(specs))
	var failed []error
	for i := range specs {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		succeeded = append(succeeded, results[i])
	}
	return succeeded, errors.Join(failed...)
}

// waitError は limiter.Wait の失敗を ctx のエラーとして扱えるようにします。
// rate は期限に間に合わない待機を ctx.Err() とは別のエラーで返します。
func waitError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(ctxErr, err)
	}
	return err
}

// ExpandSpecs はカテゴリ×バリエーション数の TraitSpec を作ります。
func ExpandSpecs(categories []string, variations int) []TraitSpec {
	specs := make([]TraitSpec, 0, len(categories)*variations)
	for _, category := range categories {
		for v := 0; v < variations; v++ {
			specs = append(specs, TraitSpec{Category: category, Variation: v})
		}
	}
	return specs
}
