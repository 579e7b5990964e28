package prompts

import (
	"fmt"
	"strings"
)

// CompositeBaseIndex はベース画像の参照番号です。トレイト i は input_file_{i+2} に対応します。
const CompositeBaseIndex = 1

// BuildCompositePrompt は合成指示を生成します。categories はペイロードに並べる順序そのままで渡します。
// 指示文中のトレイト順とペイロード順は常に一致します。
func BuildCompositePrompt(categories []string) (userPrompt, systemPrompt string) {
	const compositeSystemInstruction = "You are a senior character artist. Blend the provided trait images onto the base character as one finished illustration."
	systemPrompt = strings.Join([]string{compositeSystemInstruction, RenderingStyle}, "\n\n")

	var w strings.Builder
	writeInputMapping(&w, categories)
	writeLayeringOrder(&w)
	writeHardConstraints(&w, len(categories))
	return w.String(), systemPrompt
}

func writeInputMapping(w *strings.Builder, categories []string) {
	w.WriteString("### INPUT MAPPING ###\n")
	fmt.Fprintf(w, "- input_file_%d: BASE CHARACTER. This is the anchor image.\n", CompositeBaseIndex)
	for i, category := range categories {
		c := strings.ToLower(strings.TrimSpace(category))
		fmt.Fprintf(w, "- input_file_%d: TRAIT [%s]. Placement: %s.\n", i+CompositeBaseIndex+1, c, PlacementFor(c))
	}
	w.WriteString("\n")
}

func writeLayeringOrder(w *strings.Builder) {
	w.WriteString("### LAYERING ORDER (BOTTOM TO TOP) ###\n")
	for i, rule := range LayeringOrder {
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, rule.Category, rule.Placement)
	}
	fmt.Fprintf(w, "- Any other trait category: %s.\n\n", unknownPlacement)
}

func writeHardConstraints(w *strings.Builder, traitCount int) {
	w.WriteString("### HARD CONSTRAINTS ###\n")
	w.WriteString("- Do NOT change the base character's face, body, pose, proportions, line weight or background color.\n")
	w.WriteString("- Render every added trait in the same art style, perspective and shading as the base character.\n")
	w.WriteString("- Produce ONE unified image. Never output a collage or pasted cut-out layers.\n")
	if traitCount == 0 {
		w.WriteString("- No traits are provided. Reproduce the base character faithfully.\n")
	}
}
