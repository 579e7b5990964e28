// Package textgen は生成モデルが返す自由テキストから構造化データを取り出す共通処理を提供します。
package textgen

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

const excerptLimit = 200

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?\\S)\\s*```")

// ExtractJSON は応答テキストから JSON 部分を取り出します。
// コードフェンスがあればその中身を、なければ最も外側の {…} または […] を返します。
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if matches := jsonBlockRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// Fallback 1: 最も外側の JSON オブジェクトまたは配列
	start := strings.IndexAny(raw, "{[")
	if start != -1 {
		closer := "}"
		if raw[start] == '[' {
			closer = "]"
		}
		end := strings.LastIndex(raw, closer)
		if end > start {
			return raw[start : end+1]
		}
	}

	// Fallback 2: 全体を JSON とみなす
	return raw
}

// Decode は応答テキストをフェンス除去のうえ T にデコードします。
// 失敗時は stage と応答の抜粋を持つ ParseError を返すのだ。
func Decode[T any](stage, raw string) (T, error) {
	var out T
	body := ExtractJSON(raw)
	if body == "" {
		return out, &domain.ParseError{Stage: stage, Excerpt: truncateString(raw, excerptLimit), Err: errEmpty}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, &domain.ParseError{Stage: stage, Excerpt: truncateString(raw, excerptLimit), Err: err}
	}
	return out, nil
}

var errEmpty = errors.New("empty response")

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
