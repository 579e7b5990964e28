package prompts

import (
	"strings"
)

const (
	// CharacterSheetTags ベース画像の品質を揃えるための共通タグ
	CharacterSheetTags = "full body character, front view, centered, plain solid background, high resolution, sharp focus"

	// TraitNegativePrompt トレイト単体画像から本体や文字を排除します
	TraitNegativePrompt = "full character body, face, text, letters, watermark, signature, low quality, distorted, cropped"

	// RenderingStyle は共通の画風を定義します。
	RenderingStyle = `### GLOBAL VISUAL STYLE ###
- RENDERING: Clean consistent lineart, flat even shading, no blurring, no photographic noise.`
)

// LayerRule はカテゴリごとの重ね順と配置ルールです。
type LayerRule struct {
	Category  string
	Placement string
}

// LayeringOrder は合成時の固定の重ね順（下から上）です。
// z-buffer がないため、この順序は指示文でのみ強制されます。
var LayeringOrder = []LayerRule{
	{Category: "background", Placement: "bottom layer, behind the character"},
	{Category: "clothing", Placement: "base layer, follows the body contours"},
	{Category: "accessories", Placement: "mid layer"},
	{Category: "headwear", Placement: "over the forehead, behind the ears"},
	{Category: "eyewear", Placement: "top layer, aligned to the face"},
}

const unknownPlacement = "mid layer, attached naturally to the character"

// PlacementFor はカテゴリの配置ルールを返します。未知のカテゴリは中間レイヤー扱いです。
func PlacementFor(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	for _, rule := range LayeringOrder {
		if rule.Category == key {
			return rule.Placement
		}
	}
	return unknownPlacement
}

// traitMotifs はバリエーション番号から決定論的に選ぶモチーフです。
var traitMotifs = map[string][]string{
	"background":  {"soft gradient sky", "patterned wallpaper", "city skyline at dusk", "abstract geometric shapes", "misty forest"},
	"clothing":    {"casual hoodie", "formal jacket", "traditional robe", "armored vest", "sporty jersey"},
	"accessories": {"pendant necklace", "shoulder bag", "wrist gadget", "scarf", "badge pin"},
	"headwear":    {"baseball cap", "wide-brim hat", "headband", "crown", "beanie"},
	"eyewear":     {"round glasses", "visor", "monocle", "sunglasses", "goggles"},
}

var defaultMotifs = []string{"signature item", "ornamental detail", "themed emblem"}

func motifFor(category string, variation int) string {
	motifs, ok := traitMotifs[strings.ToLower(category)]
	if !ok {
		motifs = defaultMotifs
	}
	if variation < 0 {
		variation = -variation
	}
	return motifs[variation%len(motifs)]
}
