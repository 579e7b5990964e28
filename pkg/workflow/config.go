package workflow

// デフォルト値の定義なのだ
const (
	DefaultVariations = 2
	baseDescription   = "base character"
)

// DefaultCategories は GenerateOptions でカテゴリを省略したときに生成するトレイトのカテゴリです。
var DefaultCategories = []string{"Background", "Clothing", "Accessories", "Headwear", "Eyewear"}
