package domain

import (
	"errors"
	"fmt"
	"testing"
)

func validManifest(n int) CollectionManifest {
	m := make(CollectionManifest, 0, n)
	for i := 1; i <= n; i++ {
		m = append(m, CharacterPlan{
			Name:    fmt.Sprintf("Samurai #%d", i),
			DNA:     fmt.Sprintf("cn_%08x", i),
			Edition: i,
			Image:   fmt.Sprintf(PlaceholderImageFormat, i),
			Attributes: []Attribute{
				{TraitType: "Background", Value: "neon alley"},
				{TraitType: "Body", Value: "chrome armor"},
				{TraitType: "Head", Value: fmt.Sprintf("visor variant %d", i)},
			},
		})
	}
	return m
}

func TestCollectionManifest_Validate(t *testing.T) {
	t.Run("正しいマニフェストは検証を通過すること", func(t *testing.T) {
		if err := validManifest(5).Validate(5); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
	})

	t.Run("件数が一致しない場合は ValidationError になること", func(t *testing.T) {
		err := validManifest(4).Validate(5)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("ValidationError を期待しましたが %v でした", err)
		}
		if KindOf(err) != KindValidation {
			t.Errorf("期待値 %s, 実際の値 %s", KindValidation, KindOf(err))
		}
	})

	t.Run("dna が重複する場合はエラーになること", func(t *testing.T) {
		m := validManifest(3)
		m[2].DNA = m[0].DNA
		if err := m.Validate(3); err == nil {
			t.Fatal("dna の重複が検出されませんでした")
		}
	})

	t.Run("dna の形式が不正な場合はエラーになること", func(t *testing.T) {
		m := validManifest(2)
		m[1].DNA = "dna-2"
		if err := m.Validate(2); err == nil {
			t.Fatal("不正な dna が検出されませんでした")
		}
	})

	t.Run("edition が連番でない場合はエラーになること", func(t *testing.T) {
		m := validManifest(3)
		m[1].Edition = 3
		if err := m.Validate(3); err == nil {
			t.Fatal("edition の飛びが検出されませんでした")
		}
	})

	t.Run("必須カテゴリが欠けている場合はエラーになること", func(t *testing.T) {
		m := validManifest(2)
		m[0].Attributes = m[0].Attributes[:2]
		if err := m.Validate(2); err == nil {
			t.Fatal("Head の欠落が検出されませんでした")
		}
	})

	t.Run("空の値はプレースホルダー扱いでエラーになること", func(t *testing.T) {
		m := validManifest(1)
		m[0].Attributes[0].Value = "  "
		if err := m.Validate(1); err == nil {
			t.Fatal("空の属性値が検出されませんでした")
		}
	})

	t.Run("プレースホルダー語の属性値はエラーになること", func(t *testing.T) {
		for _, v := range []string{"none", "Default", " N/A ", "tbd"} {
			m := validManifest(1)
			m[0].Attributes[0].Value = v
			if err := m.Validate(1); KindOf(err) != KindValidation {
				t.Errorf("%q: ValidationError を期待しましたが %v でした", v, err)
			}
		}
	})

	t.Run("プレースホルダー語を含む説明的な値は通過すること", func(t *testing.T) {
		m := validManifest(1)
		m[0].Attributes[0].Value = "neon alley with no people"
		if err := m.Validate(1); err != nil {
			t.Errorf("予期しないエラー: %v", err)
		}
	})

	t.Run("同一の属性セットはエラーになること", func(t *testing.T) {
		m := validManifest(2)
		m[1].Attributes = m[0].Attributes
		if err := m.Validate(2); err == nil {
			t.Fatal("属性セットの重複が検出されませんでした")
		}
	})
}

func TestCollectionManifest_Categories(t *testing.T) {
	m := validManifest(2)
	m[1].Attributes = append(m[1].Attributes, Attribute{TraitType: "Eyewear", Value: "round shades"})

	got := m.Categories()
	want := []string{"Background", "Body", "Head", "Eyewear"}
	if len(got) != len(want) {
		t.Fatalf("期待値 %v, 実際の値 %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: 期待値 %s, 実際の値 %s", i, want[i], got[i])
		}
	}
}

func TestCharacterPlan_String(t *testing.T) {
	c := CharacterPlan{Name: "テスト名", DNA: "cn_0000abcd", Edition: 2}
	expected := "#2 テスト名 (cn_0000abcd)"
	if c.String() != expected {
		t.Errorf("期待値 '%s', 実際の値 '%s'", expected, c.String())
	}
}
