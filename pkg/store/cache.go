package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// CachedTraits は Store の Get を TTL 付きでキャッシュするデコレーターです。
// トレイトは不変なので、保存時に書き込んだ値はそのまま再利用できます。
type CachedTraits struct {
	Store
	cache *gocache.Cache
	group singleflight.Group
}

// NewCachedTraits は inner をラップします。ttl が 0 以下の場合は 10 分を使います。
func NewCachedTraits(inner Store, ttl time.Duration) *CachedTraits {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedTraits{
		Store: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedTraits) Save(ctx context.Context, projectID, category string, variation int, description string, imageData []byte) (domain.TraitAsset, error) {
	asset, err := c.Store.Save(ctx, projectID, category, variation, description, imageData)
	if err != nil {
		return domain.TraitAsset{}, err
	}
	c.cache.Set(asset.ID, asset.Clone(), gocache.DefaultExpiration)
	return asset, nil
}

func (c *CachedTraits) Get(ctx context.Context, id string) (domain.TraitAsset, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(domain.TraitAsset).Clone(), nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		if v, ok := c.cache.Get(id); ok {
			return v, nil
		}
		asset, err := c.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.Set(id, asset, gocache.DefaultExpiration)
		return asset, nil
	})
	if err != nil {
		return domain.TraitAsset{}, err
	}
	return v.(domain.TraitAsset).Clone(), nil
}
