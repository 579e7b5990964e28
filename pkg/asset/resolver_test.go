package asset

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shouni/go-trait-kit/pkg/backend/backendtest"
	"github.com/shouni/go-trait-kit/pkg/domain"
	"github.com/shouni/go-trait-kit/pkg/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T) (*store.MemoryStore, map[string]domain.TraitAsset) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	p, err := s.CreateProject(ctx, domain.ProjectState{Prompt: "test"})
	if err != nil {
		t.Fatalf("CreateProject に失敗しました: %v", err)
	}
	saved := make(map[string]domain.TraitAsset)
	for _, c := range []string{"Body", "Eyewear", "Accessories"} {
		a, err := s.Save(ctx, p.ID, c, 0, c, backendtest.PNGBytes(c))
		if err != nil {
			t.Fatalf("Save に失敗しました: %v", err)
		}
		saved[c] = a
	}
	return s, saved
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		category string
		want     Policy
	}{
		{category: "Body", want: PolicyRequired},
		{category: "body", want: PolicyRequired},
		{category: "Eyewear", want: PolicySkip},
		{category: "Tail", want: PolicySkip},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := PolicyFor(tt.category); got != tt.want {
				t.Errorf("期待値 %s, 実際の値 %s", tt.want, got)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("ID とインライン画像が入力順に解決されること", func(t *testing.T) {
		s, saved := seedStore(t)
		r := NewResolver(s, quietLogger())
		inline := backendtest.PNGBytes("inline-hat")

		req, skipped, err := r.Resolve(context.Background(),
			TraitRef{Category: "Body", ID: saved["Body"].ID},
			[]TraitRef{
				{Category: "Eyewear", ID: saved["Eyewear"].ID},
				{Category: "Headwear", ImageData: inline},
			},
		)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(skipped) != 0 {
			t.Errorf("除外は発生しない想定です: %+v", skipped)
		}
		if !bytes.Equal(req.BaseImage, saved["Body"].ImageData) {
			t.Error("ベース画像が一致しません")
		}
		gotCategories := []string{req.Traits[0].Category, req.Traits[1].Category}
		if diff := cmp.Diff([]string{"eyewear", "headwear"}, gotCategories); diff != "" {
			t.Errorf("カテゴリの並びが不正です (-want +got):\n%s", diff)
		}
		if !bytes.Equal(req.Traits[1].ImageData, inline) {
			t.Error("インライン画像がそのまま使われていません")
		}
	})

	t.Run("短いインラインデータは ID で解決されること", func(t *testing.T) {
		s, saved := seedStore(t)
		r := NewResolver(s, quietLogger())
		req, _, err := r.Resolve(context.Background(),
			TraitRef{ID: saved["Body"].ID},
			[]TraitRef{{Category: "Eyewear", ID: saved["Eyewear"].ID, ImageData: []byte("tiny")}},
		)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !bytes.Equal(req.Traits[0].ImageData, saved["Eyewear"].ImageData) {
			t.Error("ストアの画像が使われていません")
		}
	})

	t.Run("解決できないトレイトは除外され件数が一致すること", func(t *testing.T) {
		s, saved := seedStore(t)
		r := NewResolver(s, quietLogger())
		req, skipped, err := r.Resolve(context.Background(),
			TraitRef{ID: saved["Body"].ID},
			[]TraitRef{
				{Category: "Eyewear", ID: "missing-1"},
				{Category: "Accessories", ID: saved["Accessories"].ID},
				{Category: "Tail", ID: "missing-2"},
			},
		)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(skipped) != 2 || len(req.Traits) != 1 {
			t.Fatalf("除外 %d 件 / 解決 %d 件 (期待値 2 / 1)", len(skipped), len(req.Traits))
		}
		if req.Traits[0].Category != "accessories" {
			t.Errorf("残ったカテゴリが不正です: %s", req.Traits[0].Category)
		}
	})

	t.Run("ベース画像が解決できない場合は NotFoundError になること", func(t *testing.T) {
		s, _ := seedStore(t)
		r := NewResolver(s, quietLogger())
		_, _, err := r.Resolve(context.Background(), TraitRef{ID: "missing"}, nil)
		if !domain.IsNotFound(err) {
			t.Errorf("NotFoundError を期待しましたが %v でした", err)
		}
	})

	t.Run("必須カテゴリのトレイトが解決できない場合は失敗すること", func(t *testing.T) {
		s, saved := seedStore(t)
		r := NewResolver(s, quietLogger())
		_, _, err := r.Resolve(context.Background(),
			TraitRef{ID: saved["Body"].ID},
			[]TraitRef{{Category: "body", ID: "missing"}},
		)
		if !domain.IsNotFound(err) {
			t.Errorf("NotFoundError を期待しましたが %v でした", err)
		}
	})

	t.Run("繰り返し解決してもバイト単位で一致すること", func(t *testing.T) {
		s, saved := seedStore(t)
		r := NewResolver(store.NewCachedTraits(s, 0), quietLogger())
		refs := []TraitRef{{Category: "Eyewear", ID: saved["Eyewear"].ID}}

		first, _, err := r.Resolve(context.Background(), TraitRef{ID: saved["Body"].ID}, refs)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		second, _, err := r.Resolve(context.Background(), TraitRef{ID: saved["Body"].ID}, refs)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("解決結果が一致しません (-first +second):\n%s", diff)
		}
	})
}
