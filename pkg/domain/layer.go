package domain

import (
	"strings"
	"time"
)

// TraitAsset は生成済みの特徴画像1件です。保存後は不変で、再生成時は新しい ID を持つ別レコードになります。
type TraitAsset struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Category    string    `json:"category"`
	Variation   int       `json:"variation"`
	Description string    `json:"description"`
	ImageData   []byte    `json:"-"`
	MimeType    string    `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Clone は ImageData を含めたコピーを返します。
func (t TraitAsset) Clone() TraitAsset {
	c := t
	if t.ImageData != nil {
		c.ImageData = append([]byte(nil), t.ImageData...)
	}
	return c
}

// Layer はカテゴリ名と、そのカテゴリで生成されたバリエーションの列です。
type Layer struct {
	Name   string       `json:"name"`
	Traits []TraitAsset `json:"traits"`
}

// Layers はプロジェクトの特徴空間全体です。同名のレイヤーは存在しません。
type Layers []Layer

// Find は名前でレイヤーを探します。大文字小文字は区別しません。
func (ls Layers) Find(name string) (Layer, bool) {
	for _, l := range ls {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Layer{}, false
}

// Base は Body レイヤーの先頭トレイト（合成のアンカー）を返します。
func (ls Layers) Base() (TraitAsset, error) {
	body, ok := ls.Find(CategoryBody)
	if !ok || len(body.Traits) == 0 {
		return TraitAsset{}, &NotFoundError{Resource: "base trait", ID: CategoryBody}
	}
	return body.Traits[0], nil
}

// Append はカテゴリ名をキーにトレイトを追加した新しい Layers を返します。
// 既存のスライスは変更しません。
func (ls Layers) Append(asset TraitAsset) Layers {
	out := make(Layers, len(ls), len(ls)+1)
	copy(out, ls)
	for i, l := range out {
		if strings.EqualFold(l.Name, asset.Category) {
			traits := make([]TraitAsset, len(l.Traits), len(l.Traits)+1)
			copy(traits, l.Traits)
			out[i] = Layer{Name: l.Name, Traits: append(traits, asset)}
			return out
		}
	}
	return append(out, Layer{Name: asset.Category, Traits: []TraitAsset{asset}})
}

// Validate はレイヤー名の重複と空の Body レイヤーを検出します。
func (ls Layers) Validate() error {
	seen := make(map[string]bool, len(ls))
	for _, l := range ls {
		key := strings.ToLower(l.Name)
		if seen[key] {
			return &ValidationError{Field: "layers", Reason: "duplicate layer " + l.Name}
		}
		seen[key] = true
		if strings.EqualFold(l.Name, CategoryBody) && len(l.Traits) == 0 {
			return &ValidationError{Field: "layers", Reason: "body layer has no base trait"}
		}
	}
	return nil
}

// TraitCount は全レイヤーのトレイト総数です。
func (ls Layers) TraitCount() int {
	n := 0
	for _, l := range ls {
		n += len(l.Traits)
	}
	return n
}

// CompositeTrait は合成リクエストに渡す1トレイトです。Category は小文字化済みです。
type CompositeTrait struct {
	Category  string
	ImageData []byte
}

// CompositeRequest は合成ごとに組み立てる一時的な入力です。永続化しません。
type CompositeRequest struct {
	BaseImage []byte
	Traits    []CompositeTrait
}
