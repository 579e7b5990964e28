package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-trait-kit/pkg/backend/backendtest"
	"github.com/shouni/go-trait-kit/pkg/domain"
)

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "traits.db"))
			if err != nil {
				t.Fatalf("OpenSQLite に失敗しました: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"cached-memory": func(t *testing.T) Store {
			return NewCachedTraits(NewMemoryStore(), time.Minute)
		},
	}
}

func newProject(t *testing.T, s Store) domain.ProjectState {
	t.Helper()
	p, err := s.CreateProject(context.Background(), domain.ProjectState{
		OwnerAddress: "0xabc",
		Prompt:       "cyberpunk samurai",
		Config:       domain.GenerationConfig{Subject: "samurai", Theme: "cyberpunk", Style: "vector", Supply: 5},
	})
	if err != nil {
		t.Fatalf("CreateProject に失敗しました: %v", err)
	}
	return p
}

func TestStore_Contract(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			t.Run("保存したトレイトを ID で取得できること", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				img := backendtest.PNGBytes("body")

				saved, err := s.Save(context.Background(), p.ID, domain.CategoryBody, 0, "base", img)
				if err != nil {
					t.Fatalf("Save に失敗しました: %v", err)
				}
				if saved.ID == "" {
					t.Fatal("ID が割り当てられていません")
				}

				first, err := s.Get(context.Background(), saved.ID)
				if err != nil {
					t.Fatalf("Get に失敗しました: %v", err)
				}
				second, err := s.Get(context.Background(), saved.ID)
				if err != nil {
					t.Fatalf("Get に失敗しました: %v", err)
				}
				if !bytes.Equal(first.ImageData, img) || !bytes.Equal(first.ImageData, second.ImageData) {
					t.Error("繰り返し取得した画像がバイト単位で一致しません")
				}
				if first.MimeType != "image/png" {
					t.Errorf("MimeType 期待値 image/png, 実際の値 %q", first.MimeType)
				}
			})

			t.Run("存在しない ID は NotFoundError になること", func(t *testing.T) {
				s := factory(t)
				_, err := s.Get(context.Background(), "missing")
				if !domain.IsNotFound(err) {
					t.Errorf("NotFoundError を期待しましたが %v でした", err)
				}
			})

			t.Run("存在しないプロジェクトへの保存は失敗すること", func(t *testing.T) {
				s := factory(t)
				_, err := s.Save(context.Background(), "nope", "Eyewear", 0, "", backendtest.PNGBytes("x"))
				if !domain.IsNotFound(err) {
					t.Errorf("NotFoundError を期待しましたが %v でした", err)
				}
			})

			t.Run("カテゴリ名でレイヤーに追加され初出順が保たれること", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()
				for _, c := range []string{"Body", "Eyewear", "eyewear", "Background"} {
					if _, err := s.Save(ctx, p.ID, c, 0, c, backendtest.PNGBytes(c)); err != nil {
						t.Fatalf("Save(%s) に失敗しました: %v", c, err)
					}
				}
				got, err := s.GetProject(ctx, p.ID)
				if err != nil {
					t.Fatalf("GetProject に失敗しました: %v", err)
				}
				if len(got.Layers) != 3 {
					t.Fatalf("レイヤー数 期待値 3, 実際の値 %d", len(got.Layers))
				}
				wantOrder := []string{"Body", "Eyewear", "Background"}
				for i, want := range wantOrder {
					if got.Layers[i].Name != want {
						t.Errorf("layers[%d] 期待値 %s, 実際の値 %s", i, want, got.Layers[i].Name)
					}
				}
				if n := len(got.Layers[1].Traits); n != 2 {
					t.Errorf("Eyewear のトレイト数 期待値 2, 実際の値 %d", n)
				}
				if err := got.Layers.Validate(); err != nil {
					t.Errorf("Layers が不正です: %v", err)
				}
			})

			t.Run("同一プロジェクトへの並行保存で欠落しないこと", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()

				const workers = 8
				var wg sync.WaitGroup
				errs := make(chan error, workers)
				for i := 0; i < workers; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						category := "Headwear"
						if i%2 == 0 {
							category = "Clothing"
						}
						if _, err := s.Save(ctx, p.ID, category, i, fmt.Sprintf("v%d", i), backendtest.PNGBytes(fmt.Sprint(i))); err != nil {
							errs <- err
						}
					}(i)
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					t.Fatalf("並行保存に失敗しました: %v", err)
				}

				got, err := s.GetProject(ctx, p.ID)
				if err != nil {
					t.Fatalf("GetProject に失敗しました: %v", err)
				}
				if got.Layers.TraitCount() != workers {
					t.Errorf("トレイト数 期待値 %d, 実際の値 %d", workers, got.Layers.TraitCount())
				}
				if len(got.Layers) != 2 {
					t.Errorf("レイヤー数 期待値 2, 実際の値 %d", len(got.Layers))
				}
			})

			t.Run("UpdateProject はレイヤーを書き換えないこと", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()
				if _, err := s.Save(ctx, p.ID, "Body", 0, "", backendtest.PNGBytes("b")); err != nil {
					t.Fatalf("Save に失敗しました: %v", err)
				}

				p.Layers = nil
				p.Status = domain.StatusGenerating
				p.Name = "renamed"
				if err := s.UpdateProject(ctx, p); err != nil {
					t.Fatalf("UpdateProject に失敗しました: %v", err)
				}
				got, err := s.GetProject(ctx, p.ID)
				if err != nil {
					t.Fatalf("GetProject に失敗しました: %v", err)
				}
				if got.Status != domain.StatusGenerating || got.Name != "renamed" {
					t.Errorf("更新が反映されていません: %+v", got)
				}
				if got.Layers.TraitCount() != 1 {
					t.Errorf("レイヤーが失われました: %d", got.Layers.TraitCount())
				}
				if got.Config.Subject != "samurai" {
					t.Errorf("Config が復元されていません: %+v", got.Config)
				}
			})

			t.Run("ミント記録を作成・更新・一覧できること", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()
				for i := 2; i >= 1; i-- {
					if _, err := s.CreateMinted(ctx, domain.MintedAsset{ProjectID: p.ID, TokenID: i, Edition: i, Name: fmt.Sprint(i), MetadataJSON: "{}"}); err != nil {
						t.Fatalf("CreateMinted に失敗しました: %v", err)
					}
				}
				list, err := s.ListMinted(ctx, p.ID)
				if err != nil {
					t.Fatalf("ListMinted に失敗しました: %v", err)
				}
				if len(list) != 2 || list[0].TokenID != 1 {
					t.Fatalf("一覧が不正です: %+v", list)
				}

				a := list[0]
				a.Name = "updated"
				if err := s.UpdateMinted(ctx, a); err != nil {
					t.Fatalf("UpdateMinted に失敗しました: %v", err)
				}
				got, err := s.GetMinted(ctx, a.ID)
				if err != nil {
					t.Fatalf("GetMinted に失敗しました: %v", err)
				}
				if got.Name != "updated" {
					t.Errorf("Name 期待値 updated, 実際の値 %q", got.Name)
				}

				if err := s.UpdateMinted(ctx, domain.MintedAsset{ID: "missing"}); !domain.IsNotFound(err) {
					t.Errorf("NotFoundError を期待しましたが %v でした", err)
				}
			})

			t.Run("ミント記録の一括作成は全件か0件であること", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()

				batch := []domain.MintedAsset{
					{ProjectID: p.ID, TokenID: 1, Edition: 1, MetadataJSON: "{}"},
					{ProjectID: p.ID, TokenID: 2, Edition: 2, MetadataJSON: "{}"},
					{ProjectID: p.ID, TokenID: 2, Edition: 2, MetadataJSON: "{}"},
				}
				if _, err := s.CreateMintedBatch(ctx, batch); domain.KindOf(err) != domain.KindValidation {
					t.Fatalf("重複 token で ValidationError を期待しましたが %v でした", err)
				}
				list, err := s.ListMinted(ctx, p.ID)
				if err != nil {
					t.Fatalf("ListMinted に失敗しました: %v", err)
				}
				if len(list) != 0 {
					t.Fatalf("失敗したバッチの記録が残っています: %d 件", len(list))
				}

				created, err := s.CreateMintedBatch(ctx, batch[:2])
				if err != nil {
					t.Fatalf("CreateMintedBatch に失敗しました: %v", err)
				}
				if len(created) != 2 || created[0].ID == "" {
					t.Fatalf("作成結果が不正です: %+v", created)
				}
				if _, err := s.CreateMinted(ctx, domain.MintedAsset{ProjectID: p.ID, TokenID: 1, Edition: 1}); domain.KindOf(err) != domain.KindValidation {
					t.Errorf("既存 token の再作成は ValidationError になるべきです: %v", err)
				}
			})

			t.Run("バリエーション番号が保存されること", func(t *testing.T) {
				s := factory(t)
				p := newProject(t, s)
				ctx := context.Background()
				saved, err := s.Save(ctx, p.ID, "Eyewear", 3, "visor", backendtest.PNGBytes("v3"))
				if err != nil {
					t.Fatalf("Save に失敗しました: %v", err)
				}
				got, err := s.Get(ctx, saved.ID)
				if err != nil {
					t.Fatalf("Get に失敗しました: %v", err)
				}
				if got.Variation != 3 {
					t.Errorf("Variation 期待値 3, 実際の値 %d", got.Variation)
				}
				proj, err := s.GetProject(ctx, p.ID)
				if err != nil {
					t.Fatalf("GetProject に失敗しました: %v", err)
				}
				layer, ok := proj.Layers.Find("eyewear")
				if !ok || layer.Traits[0].Variation != 3 {
					t.Errorf("レイヤーのトレイトに Variation が復元されていません: %+v", layer)
				}
			})
		})
	}
}

func TestSave_Validation(t *testing.T) {
	s := NewMemoryStore()
	p := newProject(t, s)

	tests := []struct {
		name     string
		category string
		data     []byte
	}{
		{name: "空のカテゴリ", category: "", data: backendtest.PNGBytes("x")},
		{name: "空の画像", category: "Body", data: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(context.Background(), p.ID, tt.category, 0, "", tt.data)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("ValidationError を期待しましたが %v でした", err)
			}
		})
	}
}

type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (domain.TraitAsset, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, id)
}

func TestCachedTraits(t *testing.T) {
	t.Run("保存済みの値は下位ストアを読まずに返すこと", func(t *testing.T) {
		inner := &countingStore{Store: NewMemoryStore()}
		c := NewCachedTraits(inner, time.Minute)
		p := newProject(t, c)

		saved, err := c.Save(context.Background(), p.ID, "Body", 0, "", backendtest.PNGBytes("b"))
		if err != nil {
			t.Fatalf("Save に失敗しました: %v", err)
		}
		got, err := c.Get(context.Background(), saved.ID)
		if err != nil {
			t.Fatalf("Get に失敗しました: %v", err)
		}
		if !bytes.Equal(got.ImageData, saved.ImageData) {
			t.Error("画像が一致しません")
		}
		if inner.gets != 0 {
			t.Errorf("下位ストアの Get 回数 期待値 0, 実際の値 %d", inner.gets)
		}
	})

	t.Run("返した値を書き換えてもキャッシュに影響しないこと", func(t *testing.T) {
		mem := NewMemoryStore()
		p := newProject(t, mem)
		saved, err := mem.Save(context.Background(), p.ID, "Body", 0, "", backendtest.PNGBytes("b"))
		if err != nil {
			t.Fatalf("Save に失敗しました: %v", err)
		}
		c := NewCachedTraits(mem, time.Minute)

		first, err := c.Get(context.Background(), saved.ID)
		if err != nil {
			t.Fatalf("Get に失敗しました: %v", err)
		}
		first.ImageData[0] = 0x00
		second, err := c.Get(context.Background(), saved.ID)
		if err != nil {
			t.Fatalf("Get に失敗しました: %v", err)
		}
		if !bytes.Equal(second.ImageData, saved.ImageData) {
			t.Error("キャッシュが呼び出し側の変更で汚染されました")
		}
	})
}
