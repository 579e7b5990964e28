package prompts

import (
	_ "embed"
)

const (
	ModeConfig = "config"
	ModePlan   = "plan"
)

// TemplateData はテキストプロンプトのテンプレートに渡すデータ構造です。
type TemplateData struct {
	Theme            string
	Subject          string
	Style            string
	Size             int
	Categories       []string
	PlaceholderImage string
}

var (
	//go:embed config_parse.md
	ConfigParsePrompt string
	//go:embed collection_plan.md
	CollectionPlanPrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[string]string{
	ModeConfig: ConfigParsePrompt,
	ModePlan:   CollectionPlanPrompt,
}

// システム指示。テンプレート本体とは別にバックエンドへ渡します。
const (
	ConfigSystemInstruction = "You convert free-text themes into strict JSON generation configurations. Output JSON only."
	PlanSystemInstruction   = "You design NFT-style character collections and answer with strict JSON arrays that follow the requested schema exactly."
)
