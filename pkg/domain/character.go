package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// 必須カテゴリ。すべてのキャラクターはこれらの属性を持つ必要があるのだ。
const (
	CategoryBackground = "Background"
	CategoryBody       = "Body"
	CategoryHead       = "Head"
)

// DefaultCollectionSize はコレクションの既定キャラクター数です。
const DefaultCollectionSize = 5

// PlaceholderImageFormat は計画段階の image フィールドに入るプレースホルダー URI です。
const PlaceholderImageFormat = "ipfs://placeholder/%d.png"

// RequiredCategories は全キャラクターに必須の属性カテゴリです。
var RequiredCategories = []string{CategoryBackground, CategoryBody, CategoryHead}

// DNAPattern は一意トークン dna の形式です。
var DNAPattern = regexp.MustCompile(`^cn_[0-9a-f]{8}$`)

// Attribute はキャラクターが持つ1つの特徴（カテゴリと値）です。
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// CharacterPlan はコレクション内の1キャラクターの設計情報を保持します。
type CharacterPlan struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	DNA         string      `json:"dna"`
	Edition     int         `json:"edition"`
	Timestamp   int64       `json:"date"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// CollectionManifest は計画済みキャラクターの順序付きリストです。
type CollectionManifest []CharacterPlan

// AttributeValue は指定カテゴリの値を返します。カテゴリ名の大文字小文字は区別しません。
func (c CharacterPlan) AttributeValue(category string) (string, bool) {
	for _, a := range c.Attributes {
		if strings.EqualFold(a.TraitType, category) {
			return a.Value, true
		}
	}
	return "", false
}

// String はキャラクターの情報を文字列で返すのだ。
func (c CharacterPlan) String() string {
	return fmt.Sprintf("#%d %s (%s)", c.Edition, c.Name, c.DNA)
}

// attributeKey は属性の組み合わせを順序に依存しない文字列にします。
func (c CharacterPlan) attributeKey() string {
	pairs := make([]string, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		pairs = append(pairs, strings.ToLower(strings.TrimSpace(a.TraitType))+"="+strings.ToLower(strings.TrimSpace(a.Value)))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// Validate はマニフェストが要求された件数 n と各不変条件を満たすか検証します。
// 件数の不一致で切り詰めや補完は行いません。
func (m CollectionManifest) Validate(n int) error {
	if len(m) != n {
		return &ValidationError{Field: "manifest", Reason: fmt.Sprintf("expected %d entries, got %d", n, len(m))}
	}

	seenDNA := make(map[string]int, len(m))
	seenSets := make(map[string]int, len(m))
	for i, c := range m {
		pos := i + 1
		if c.Edition != pos {
			return &ValidationError{Field: "edition", Reason: fmt.Sprintf("entry %d has edition %d", pos, c.Edition)}
		}
		if !DNAPattern.MatchString(c.DNA) {
			return &ValidationError{Field: "dna", Reason: fmt.Sprintf("entry %d has malformed dna %q", pos, c.DNA)}
		}
		if prev, dup := seenDNA[c.DNA]; dup {
			return &ValidationError{Field: "dna", Reason: fmt.Sprintf("entries %d and %d share dna %q", prev, pos, c.DNA)}
		}
		seenDNA[c.DNA] = pos

		for _, category := range RequiredCategories {
			v, ok := c.AttributeValue(category)
			if !ok || strings.TrimSpace(v) == "" {
				return &ValidationError{Field: "attributes", Reason: fmt.Sprintf("entry %d is missing %s", pos, category)}
			}
		}
		for _, a := range c.Attributes {
			if strings.TrimSpace(a.TraitType) == "" || strings.TrimSpace(a.Value) == "" {
				return &ValidationError{Field: "attributes", Reason: fmt.Sprintf("entry %d has an empty attribute", pos)}
			}
			if IsPlaceholderValue(a.Value) {
				return &ValidationError{Field: "attributes", Reason: fmt.Sprintf("entry %d has placeholder %s %q", pos, a.TraitType, a.Value)}
			}
		}

		key := c.attributeKey()
		if prev, dup := seenSets[key]; dup {
			return &ValidationError{Field: "attributes", Reason: fmt.Sprintf("entries %d and %d share the same attribute set", prev, pos)}
		}
		seenSets[key] = pos
	}
	return nil
}

// placeholderValues は属性値として認めない語です。比較は小文字・前後空白除去後に行います。
var placeholderValues = map[string]bool{
	"none":        true,
	"default":     true,
	"n/a":         true,
	"na":          true,
	"null":        true,
	"nil":         true,
	"tbd":         true,
	"unknown":     true,
	"placeholder": true,
	"-":           true,
}

// IsPlaceholderValue は v が説明になっていないプレースホルダーかどうかを返します。
func IsPlaceholderValue(v string) bool {
	return placeholderValues[strings.ToLower(strings.TrimSpace(v))]
}

// Categories はマニフェストに現れる属性カテゴリを初出順に返します。
func (m CollectionManifest) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range m {
		for _, a := range c.Attributes {
			key := strings.ToLower(a.TraitType)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a.TraitType)
		}
	}
	return out
}
