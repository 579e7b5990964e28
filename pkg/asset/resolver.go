// Package asset は合成に渡すトレイト参照を画像データへ解決します。
package asset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// MinInlineImageSize を超えるインライン画像はストアを引かずにそのまま使います。
const MinInlineImageSize = 100

// Policy はトレイトが解決できなかったときの扱いです。
type Policy int

const (
	// PolicySkip は警告を出してそのトレイトを除外します。
	PolicySkip Policy = iota
	// PolicyRequired は解決失敗を合成全体のエラーにします。
	PolicyRequired
)

func (p Policy) String() string {
	switch p {
	case PolicyRequired:
		return "required"
	default:
		return "skip"
	}
}

// Policies はカテゴリ（小文字）ごとの解決失敗時のポリシーです。
// ここにないカテゴリは DefaultPolicy に従います。
var Policies = map[string]Policy{
	strings.ToLower(domain.CategoryBody): PolicyRequired,
}

// DefaultPolicy は Policies にないカテゴリのポリシーです。
const DefaultPolicy = PolicySkip

// PolicyFor はカテゴリのポリシーを返します。
func PolicyFor(category string) Policy {
	if p, ok := Policies[strings.ToLower(category)]; ok {
		return p
	}
	return DefaultPolicy
}

// TraitRef は合成対象への参照です。ImageData か ID のどちらかで解決します。
type TraitRef struct {
	Category  string `json:"category"`
	ID        string `json:"id,omitempty"`
	ImageData []byte `json:"-"`
}

// Skipped は解決できずに除外された参照です。
type Skipped struct {
	Ref TraitRef
	Err error
}

// TraitGetter は ID でトレイトを取得します。store.TraitStore が満たします。
type TraitGetter interface {
	Get(ctx context.Context, id string) (domain.TraitAsset, error)
}

// Resolver は参照をストアと照合して CompositeRequest を組み立てます。
type Resolver struct {
	traits TraitGetter
	logger *slog.Logger
}

// NewResolver は Resolver を生成します。logger が nil の場合は slog.Default を使います。
func NewResolver(traits TraitGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{traits: traits, logger: logger}
}

// Resolve は base と refs を解決します。出力の並びは入力順から除外分を除いたものです。
func (r *Resolver) Resolve(ctx context.Context, base TraitRef, refs []TraitRef) (domain.CompositeRequest, []Skipped, error) {
	if base.Category == "" {
		base.Category = domain.CategoryBody
	}
	// ベース画像はカテゴリに関係なく必須
	baseData, err := r.resolveOne(ctx, base)
	if err != nil {
		return domain.CompositeRequest{}, nil, fmt.Errorf("resolve base image: %w", err)
	}

	req := domain.CompositeRequest{BaseImage: baseData, Traits: make([]domain.CompositeTrait, 0, len(refs))}
	var skipped []Skipped
	for _, ref := range refs {
		data, err := r.resolveOne(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return domain.CompositeRequest{}, nil, ctx.Err()
			}
			if PolicyFor(ref.Category) == PolicyRequired {
				return domain.CompositeRequest{}, nil, fmt.Errorf("resolve required trait %s: %w", ref.Category, err)
			}
			r.logger.Warn("トレイトを解決できないため除外します",
				"category", ref.Category,
				"id", ref.ID,
				"error", err,
			)
			skipped = append(skipped, Skipped{Ref: ref, Err: err})
			continue
		}
		req.Traits = append(req.Traits, domain.CompositeTrait{
			Category:  strings.ToLower(ref.Category),
			ImageData: data,
		})
	}
	return req, skipped, nil
}

func (r *Resolver) resolveOne(ctx context.Context, ref TraitRef) ([]byte, error) {
	if len(ref.ImageData) > MinInlineImageSize {
		data, _, err := domain.NormalizeImageData(ref.ImageData)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
	}
	if ref.ID == "" {
		return nil, &domain.NotFoundError{Resource: "trait", ID: ref.Category}
	}
	asset, err := r.traits.Get(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if len(asset.ImageData) == 0 {
		return nil, &domain.NotFoundError{Resource: "trait image", ID: ref.ID}
	}
	return asset.ImageData, nil
}
