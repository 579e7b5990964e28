package backend

import (
	"context"
	"fmt"
	"strings"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// GeminiText は go-gemini-client を使ったテキスト生成アダプターです。
type GeminiText struct {
	client gemini.GenerativeModel
	model  string
}

// NewGeminiText は gemini クライアントを初期化します。
func NewGeminiText(ctx context.Context, apiKey, model string, temperature float32) (*GeminiText, error) {
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Key: "GEMINI_API_KEY", Reason: "required for the text backend"}
	}
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return NewGeminiTextWithClient(client, model), nil
}

// NewGeminiTextWithClient は既存のクライアントを包みます。
func NewGeminiTextWithClient(client gemini.GenerativeModel, model string) *GeminiText {
	return &GeminiText{client: client, model: model}
}

// GenerateText はシステム指示をプロンプトの前に置いて1回だけ呼び出します。
func (g *GeminiText) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	var sb strings.Builder
	if systemInstruction != "" {
		sb.WriteString(systemInstruction)
		sb.WriteString("\n\n")
	}
	sb.WriteString(prompt)

	resp, err := g.client.GenerateContent(ctx, sb.String(), g.model)
	if err != nil {
		return "", fmt.Errorf("gemini text generation (%s): %w", g.model, err)
	}
	return resp.Text, nil
}

// GeminiImage は genai SDK を直接使い、参照画像をインラインで送る画像生成アダプターです。
type GeminiImage struct {
	client *genai.Client
	model  string
}

// NewGeminiImage は genai クライアントを初期化します。
func NewGeminiImage(ctx context.Context, apiKey, model string) (*GeminiImage, error) {
	if apiKey == "" {
		return nil, &domain.ConfigurationError{Key: "GEMINI_API_KEY", Reason: "required for the image backend"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai クライアントの初期化に失敗しました: %w", err)
	}
	return &GeminiImage{client: client, model: model}, nil
}

// GenerateImage は参照画像群とプロンプトを1つのコンテンツとして送信します。
func (g *GeminiImage) GenerateImage(ctx context.Context, req ImageRequest) (*imagedom.ImageResponse, error) {
	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		mimeType := ref.MimeType
		if mimeType == "" {
			mimeType = domain.DetectMimeType(ref.Data)
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, mimeType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		Temperature:        req.Temperature,
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	var usedSeed int64
	if req.Seed != nil {
		seed := int32(*req.Seed & 0x7FFFFFFF)
		genCfg.Seed = &seed
		usedSeed = int64(seed)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation (%s): %w", g.model, err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return &imagedom.ImageResponse{
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
				UsedSeed: usedSeed,
			}, nil
		}
	}
	return nil, domain.ErrNoImage
}
