package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// SimulatedLabel はプレースホルダー出力に付与するラベルです。
const SimulatedLabel = "[simulated]"

const simulatedImageSize = 128

// SimulatedText は API キーがない環境で使うテキストバックエンドです。
// 呼び出し側は IsSimulated で検出し、ラベル付きの代替結果を組み立てます。
type SimulatedText struct{}

func (SimulatedText) Simulated() bool { return true }

// GenerateText はラベル付きの JSON を返すだけで外部には接続しません。
func (SimulatedText) GenerateText(_ context.Context, _, prompt string) (string, error) {
	return fmt.Sprintf(`{"simulated": true, "label": %q, "prompt_digest": "%x"}`, SimulatedLabel, digest(prompt)), nil
}

// SimulatedImage はプロンプトから決定論的に塗り分けた PNG を返します。
type SimulatedImage struct{}

func (SimulatedImage) Simulated() bool { return true }

// GenerateImage はプロンプトと参照画像数に応じたプレースホルダー PNG を生成します。
func (SimulatedImage) GenerateImage(_ context.Context, req ImageRequest) (*imagedom.ImageResponse, error) {
	sum := digest(fmt.Sprintf("%s|%d", req.Prompt, len(req.References)))
	fg := color.RGBA{R: sum[0], G: sum[1], B: sum[2], A: 0xff}
	bg := color.RGBA{R: sum[3], G: sum[4], B: sum[5], A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, simulatedImageSize, simulatedImageSize))
	stripe := 4 + int(sum[6]%12)
	for y := 0; y < simulatedImageSize; y++ {
		for x := 0; x < simulatedImageSize; x++ {
			if ((x+y)/stripe)%2 == 0 {
				img.SetRGBA(x, y, fg)
			} else {
				img.SetRGBA(x, y, bg)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder png: %w", err)
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	}
	return &imagedom.ImageResponse{Data: buf.Bytes(), MimeType: "image/png", UsedSeed: seed}, nil
}

func digest(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}
