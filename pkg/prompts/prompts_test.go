package prompts

import (
	"strings"
	"testing"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

func TestBuildCompositePrompt(t *testing.T) {
	t.Run("トレイト順序と参照番号が一致すること", func(t *testing.T) {
		user, system := BuildCompositePrompt([]string{"Eyewear", "background"})
		if system == "" {
			t.Fatal("システムプロンプトが空です")
		}

		eyewear := strings.Index(user, "input_file_2: TRAIT [eyewear]")
		background := strings.Index(user, "input_file_3: TRAIT [background]")
		if eyewear < 0 || background < 0 {
			t.Fatalf("参照番号の対応が見つかりません:\n%s", user)
		}
		if eyewear > background {
			t.Error("指示文のトレイト順がペイロード順と異なります")
		}
		if !strings.Contains(user, "input_file_1: BASE CHARACTER") {
			t.Error("ベース画像の参照が含まれていません")
		}
	})

	t.Run("固定の重ね順と制約が含まれること", func(t *testing.T) {
		user, _ := BuildCompositePrompt([]string{"accessories"})
		wants := []string{
			"1. background: bottom layer, behind the character",
			"2. clothing: base layer, follows the body contours",
			"3. accessories: mid layer",
			"4. headwear: over the forehead, behind the ears",
			"5. eyewear: top layer, aligned to the face",
			"face, body, pose, proportions, line weight or background color",
			"same art style, perspective and shading",
			"ONE unified image",
		}
		for _, want := range wants {
			if !strings.Contains(user, want) {
				t.Errorf("指示文に %q が含まれていません", want)
			}
		}
	})

	t.Run("トレイトなしでも指示文が作れること", func(t *testing.T) {
		user, _ := BuildCompositePrompt(nil)
		if strings.Contains(user, "input_file_2") {
			t.Error("トレイトがないのに input_file_2 が含まれています")
		}
		if !strings.Contains(user, "No traits are provided") {
			t.Error("トレイトなしの指示が含まれていません")
		}
	})
}

func TestPlacementFor(t *testing.T) {
	if got := PlacementFor(" Headwear "); got != "over the forehead, behind the ears" {
		t.Errorf("headwear の配置が不正です: %q", got)
	}
	if got := PlacementFor("tail"); got != unknownPlacement {
		t.Errorf("未知のカテゴリは中間レイヤーであるべきです: %q", got)
	}
}

func TestBuildTraitPrompt(t *testing.T) {
	pb := NewImagePromptBuilder("clean line art")
	cfg := domain.GenerationConfig{Subject: "samurai", Theme: "cyberpunk", Style: "vector", Supply: 5}

	a := pb.BuildTraitPrompt("Eyewear", cfg, 1)
	b := pb.BuildTraitPrompt("Eyewear", cfg, 1)
	c := pb.BuildTraitPrompt("Eyewear", cfg, 2)

	if a.Description != b.Description {
		t.Error("同じ入力から異なる説明文が生成されました")
	}
	if a.Description == c.Description {
		t.Error("バリエーションが異なるのに説明文が同じです")
	}
	if !strings.Contains(a.SystemPrompt, "clean line art") || !strings.Contains(a.SystemPrompt, "vector") {
		t.Errorf("スタイル指定がシステムプロンプトに含まれていません:\n%s", a.SystemPrompt)
	}
}

func TestTextPromptBuilder(t *testing.T) {
	pb, err := NewTextPromptBuilder()
	if err != nil {
		t.Fatalf("初期化に失敗しました: %v", err)
	}

	out, err := pb.Build(ModePlan, TemplateData{
		Subject:          "samurai",
		Theme:            "cyberpunk",
		Style:            "vector",
		Size:             5,
		Categories:       []string{"Eyewear"},
		PlaceholderImage: "ipfs://placeholder/{edition}.png",
	})
	if err != nil {
		t.Fatalf("Build に失敗しました: %v", err)
	}
	for _, want := range []string{"exactly 5 objects", `"Eyewear"`, "cn_", "ipfs://placeholder/{edition}.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("プロンプトに %q が含まれていません", want)
		}
	}

	if _, err := pb.Build("unknown", TemplateData{}); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("不明なモードは ValidationError になるべきです: %v", err)
	}
}
