package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-trait-kit/pkg/backend"
	"github.com/shouni/go-trait-kit/pkg/backend/backendtest"
	"github.com/shouni/go-trait-kit/pkg/domain"
)

func fixedSeed(v int64) SeedFunc {
	return func() int64 { return v }
}

func TestComposite(t *testing.T) {
	base := backendtest.PNGBytes("base")

	t.Run("トレイトが空でも合成できること", func(t *testing.T) {
		fake := &backendtest.FakeImage{}
		c := New(fake, WithSeedFunc(fixedSeed(7)))

		out, err := c.Composite(context.Background(), base, nil)
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if len(out) == 0 {
			t.Fatal("画像が空です")
		}
		req := fake.LastRequest()
		if len(req.References) != 1 {
			t.Errorf("参照数 期待値 1, 実際の値 %d", len(req.References))
		}
		if !strings.Contains(req.Prompt, "No traits are provided") {
			t.Error("トレイトなしの指示が含まれていません")
		}
	})

	t.Run("ベース1枚とアクセサリー1枚のペイロードになること", func(t *testing.T) {
		fake := &backendtest.FakeImage{}
		c := New(fake, WithSeedFunc(fixedSeed(42)))
		accessory := backendtest.PNGBytes("gold chain")

		_, err := c.Composite(context.Background(), base, []domain.CompositeTrait{
			{Category: "Accessories", ImageData: accessory},
		})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		req := fake.LastRequest()
		if len(req.References) != 2 {
			t.Fatalf("参照数 期待値 2, 実際の値 %d", len(req.References))
		}
		if !bytes.Equal(req.References[0].Data, base) || !bytes.Equal(req.References[1].Data, accessory) {
			t.Error("参照の並びがベース、トレイトの順になっていません")
		}
		if !strings.Contains(req.Prompt, "input_file_2: TRAIT [accessories]") {
			t.Errorf("小文字化されたカテゴリが指示に含まれていません:\n%s", req.Prompt)
		}
		if req.Seed == nil || *req.Seed != 42 {
			t.Errorf("シードが反映されていません: %v", req.Seed)
		}
	})

	t.Run("指示文のトレイト順がペイロード順と一致すること", func(t *testing.T) {
		fake := &backendtest.FakeImage{}
		c := New(fake)
		_, err := c.Composite(context.Background(), base, []domain.CompositeTrait{
			{Category: "Eyewear", ImageData: backendtest.PNGBytes("e")},
			{Category: "Background", ImageData: backendtest.PNGBytes("b")},
		})
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		prompt := fake.LastRequest().Prompt
		eye := strings.Index(prompt, "input_file_2: TRAIT [eyewear]")
		bg := strings.Index(prompt, "input_file_3: TRAIT [background]")
		if eye < 0 || bg < 0 || eye > bg {
			t.Errorf("指示順が不正です:\n%s", prompt)
		}
	})

	t.Run("シードが異なっても構造的に成功すること", func(t *testing.T) {
		for _, seed := range []int64{1, 99, 0x7FFFFFFF} {
			c := New(&backendtest.FakeImage{}, WithSeedFunc(fixedSeed(seed)))
			out, err := c.Composite(context.Background(), base, []domain.CompositeTrait{
				{Category: "headwear", ImageData: backendtest.PNGBytes("h")},
			})
			if err != nil {
				t.Fatalf("seed %d: 予期しないエラー: %v", seed, err)
			}
			if len(out) == 0 {
				t.Errorf("seed %d: 画像が空です", seed)
			}
		}
	})

	t.Run("画像が返らない場合は CompositeError になること", func(t *testing.T) {
		fake := &backendtest.FakeImage{
			Respond: func(context.Context, backend.ImageRequest) (*imagedom.ImageResponse, error) {
				return nil, domain.ErrNoImage
			},
		}
		_, err := New(fake).Composite(context.Background(), base, nil)
		var ce *domain.CompositeError
		if !errors.As(err, &ce) {
			t.Fatalf("CompositeError を期待しましたが %v でした", err)
		}
		if !errors.Is(err, domain.ErrNoImage) {
			t.Error("ErrNoImage を辿れません")
		}
	})

	t.Run("空の応答は CompositeError になること", func(t *testing.T) {
		fake := &backendtest.FakeImage{
			Respond: func(context.Context, backend.ImageRequest) (*imagedom.ImageResponse, error) {
				return &imagedom.ImageResponse{}, nil
			},
		}
		_, err := New(fake).Composite(context.Background(), base, nil)
		if domain.KindOf(err) != domain.KindComposite || !errors.Is(err, domain.ErrNoImage) {
			t.Errorf("ErrNoImage を含む CompositeError を期待しましたが %v でした", err)
		}
	})

	t.Run("タイムアウトは GenerationError になること", func(t *testing.T) {
		fake := &backendtest.FakeImage{
			Respond: func(context.Context, backend.ImageRequest) (*imagedom.ImageResponse, error) {
				return nil, fmt.Errorf("%w: composite exceeded 1s", domain.ErrTimeout)
			},
		}
		_, err := New(fake).Composite(context.Background(), base, []domain.CompositeTrait{{Category: "eyewear", ImageData: base}})
		if kind := domain.KindOf(err); kind != domain.KindGeneration {
			t.Fatalf("KindGeneration を期待しましたが %s (%v) でした", kind, err)
		}
		if !errors.Is(err, domain.ErrTimeout) {
			t.Error("ErrTimeout を辿れません")
		}
		var ge *domain.GenerationError
		if errors.As(err, &ge) && ge.Category != CompositeCategory {
			t.Errorf("Category 期待値 %s, 実際の値 %s", CompositeCategory, ge.Category)
		}
	})

	t.Run("通信エラーは GenerationError になること", func(t *testing.T) {
		fake := &backendtest.FakeImage{
			Respond: func(context.Context, backend.ImageRequest) (*imagedom.ImageResponse, error) {
				return nil, errors.New("connection reset")
			},
		}
		_, err := New(fake).Composite(context.Background(), base, nil)
		if domain.KindOf(err) != domain.KindGeneration {
			t.Errorf("KindGeneration を期待しましたが %v でした", err)
		}
	})

	t.Run("ベース画像が空の場合は失敗すること", func(t *testing.T) {
		fake := &backendtest.FakeImage{}
		_, err := New(fake).Composite(context.Background(), nil, nil)
		if domain.KindOf(err) != domain.KindComposite {
			t.Errorf("CompositeError を期待しましたが %v でした", err)
		}
		if fake.RequestCount() != 0 {
			t.Error("バックエンドが呼ばれてはいけません")
		}
	})
}

func TestTimeSeed(t *testing.T) {
	for i := 0; i < 5; i++ {
		if s := TimeSeed(); s < 0 || s > 0x7FFFFFFF {
			t.Fatalf("シードが範囲外です: %d", s)
		}
	}
}
