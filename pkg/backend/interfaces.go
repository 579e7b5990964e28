// Package backend は外部の生成モデル呼び出しを抽象化するアダプター群です。
package backend

import (
	"context"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// Reference は画像リクエストに添付する参照画像です。
type Reference struct {
	Data     []byte
	MimeType string
}

// ImageRequest は1回の画像生成要求です。References は input_file_1 から順に並びます。
type ImageRequest struct {
	Prompt       string
	SystemPrompt string
	References   []Reference
	Seed         *int64
	Temperature  *float32
}

// TextGenerator はシステム指示とユーザープロンプトから自由テキストを返します。
type TextGenerator interface {
	GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ImageGenerator は画像を1枚生成します。
// 応答に画像パートがない場合は domain.ErrNoImage を返します。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*imagedom.ImageResponse, error)
}

// simulator は認証情報なしで動作するプレースホルダー実装が満たします。
type simulator interface {
	Simulated() bool
}

// IsSimulated は v がプレースホルダー出力を返す実装かどうかを判定します。
func IsSimulated(v any) bool {
	s, ok := v.(simulator)
	return ok && s.Simulated()
}
