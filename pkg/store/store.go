// Package store はプロジェクト・トレイト・ミント記録の永続化を提供します。
package store

import (
	"context"
	"fmt"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// TraitStore は生成済みトレイトの唯一の正本です。
type TraitStore interface {
	// Save は新しい ID を割り当て、プロジェクト内のカテゴリのレイヤーへ追加します。
	// レイヤーが存在しなければ作成します。位置ではなくカテゴリ名をキーにします。
	// variation は生成時のバリエーション番号で、再開時に生成済みかどうかの判定に使います。
	Save(ctx context.Context, projectID, category string, variation int, description string, imageData []byte) (domain.TraitAsset, error)
	// Get は ID でトレイトを返します。存在しない場合は NotFoundError です。
	Get(ctx context.Context, id string) (domain.TraitAsset, error)
}

// ProjectRepository は ProjectState の作成・取得・更新を扱います。
// Layers はトレイトの保存によってのみ伸び、UpdateProject では書き換えません。
type ProjectRepository interface {
	CreateProject(ctx context.Context, p domain.ProjectState) (domain.ProjectState, error)
	GetProject(ctx context.Context, id string) (domain.ProjectState, error)
	UpdateProject(ctx context.Context, p domain.ProjectState) error
}

// MintRepository は公開時の派生レコードを扱います。
type MintRepository interface {
	CreateMinted(ctx context.Context, a domain.MintedAsset) (domain.MintedAsset, error)
	GetMinted(ctx context.Context, id string) (domain.MintedAsset, error)
	UpdateMinted(ctx context.Context, a domain.MintedAsset) error
	ListMinted(ctx context.Context, projectID string) ([]domain.MintedAsset, error)
	// CreateMintedBatch は assets をすべて保存するか、1件も保存しません。
	// 同じプロジェクトで token_id が重複する場合は ValidationError です。
	CreateMintedBatch(ctx context.Context, assets []domain.MintedAsset) ([]domain.MintedAsset, error)
}

// Store は永続化サービス全体です。
type Store interface {
	TraitStore
	ProjectRepository
	MintRepository
	Close() error
}

// normalizeForSave は保存前に画像データを単一のエンコーディングに揃えます。
func normalizeForSave(category string, imageData []byte) ([]byte, string, error) {
	if category == "" {
		return nil, "", &domain.ValidationError{Field: "category", Reason: "empty"}
	}
	data, mimeType, err := domain.NormalizeImageData(imageData)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", &domain.ValidationError{Field: "image_data", Reason: "empty"}
	}
	return data, mimeType, nil
}

func duplicateTokenError(a domain.MintedAsset) error {
	return &domain.ValidationError{Field: "token_id", Reason: fmt.Sprintf("token %d already minted for project %s", a.TokenID, a.ProjectID)}
}
