// Package publisher は完成したプロジェクトをファイルとして書き出します。
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/shouni/go-utils/urlpath"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

const (
	defaultManifestName = "manifest.json"
	defaultPreviewName  = "preview.png"
	defaultLayerDirName = "layers"
)

var unsafeSegment = regexp.MustCompile(`[^a-z0-9_-]+`)

// PublishResult はパブリッシュ処理で生成されたファイルの情報を保持します。
type PublishResult struct {
	ManifestPath string   // manifest.json のパス
	PreviewPath  string   // preview.png のパス。プレビューがない場合は空
	LayerPaths   []string // レイヤー画像のパス（レイヤー順・トレイト順）
}

// manifestDocument は manifest.json の中身です。
type manifestDocument struct {
	Project    projectSummary            `json:"project"`
	Characters domain.CollectionManifest `json:"characters"`
	Layers     []layerSummary            `json:"layers"`
}

type projectSummary struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	Status          domain.Status           `json:"status"`
	Config          domain.GenerationConfig `json:"config"`
	ContractAddress string                  `json:"contract_address,omitempty"`
	Preview         string                  `json:"preview,omitempty"`
}

type layerSummary struct {
	Name   string         `json:"name"`
	Traits []traitSummary `json:"traits"`
}

type traitSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	File        string `json:"file"`
}

// Publisher は成果物の永続化を担います。
type Publisher struct {
	writer OutputWriter
}

// New は writer を使う Publisher を返します。writer が nil の場合は LocalWriter を使います。
func New(writer OutputWriter) *Publisher {
	if writer == nil {
		writer = LocalWriter{}
	}
	return &Publisher{writer: writer}
}

// Publish はプレビュー、レイヤー画像、マニフェストを outputDir に書き出すのだ。
func (p *Publisher) Publish(ctx context.Context, project domain.ProjectState, manifest domain.CollectionManifest, outputDir string) (PublishResult, error) {
	if outputDir == "" {
		return PublishResult{}, &domain.ValidationError{Field: "output_dir", Reason: "empty"}
	}
	result := PublishResult{}
	am := NewAssetManager(p.writer, outputDir)

	// 1. プレビュー
	doc := manifestDocument{
		Project: projectSummary{
			ID:              project.ID,
			Name:            project.Name,
			Status:          project.Status,
			Config:          project.Config,
			ContractAddress: project.ContractAddress,
		},
		Characters: manifest,
	}
	if len(project.PreviewImage) > 0 {
		saved, err := am.Save(ctx, defaultPreviewName, project.PreviewImage)
		if err != nil {
			return result, fmt.Errorf("プレビューの書き込みに失敗しました: %w", err)
		}
		result.PreviewPath = saved
		doc.Project.Preview = defaultPreviewName
	}

	// 2. レイヤー画像
	for _, layer := range project.Layers {
		summary := layerSummary{Name: layer.Name, Traits: make([]traitSummary, 0, len(layer.Traits))}
		for _, trait := range layer.Traits {
			rel := path.Join(defaultLayerDirName, segment(layer.Name), segment(trait.ID)+extensionFor(trait.MimeType))
			saved, err := am.Save(ctx, rel, trait.ImageData)
			if err != nil {
				return result, fmt.Errorf("レイヤー画像の書き込みに失敗しました: %w", err)
			}
			result.LayerPaths = append(result.LayerPaths, saved)
			summary.Traits = append(summary.Traits, traitSummary{ID: trait.ID, Description: trait.Description, File: rel})
		}
		doc.Layers = append(doc.Layers, summary)
	}

	// 3. マニフェスト
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return result, fmt.Errorf("マニフェストのエンコードに失敗しました: %w", err)
	}
	manifestPath, err := am.Save(ctx, defaultManifestName, body)
	if err != nil {
		return result, fmt.Errorf("マニフェストの書き込みに失敗しました: %w", err)
	}
	result.ManifestPath = manifestPath

	slog.Info("Published project", "project_id", project.ID, "output_dir", outputDir, "files", len(result.LayerPaths)+2)
	return result, nil
}

// resolve は baseDir と相対パスを結合します。GCS 形式の baseDir も扱えます。
func resolve(baseDir, relPath string) (string, error) {
	fullPath, err := urlpath.ResolveOutputPath(baseDir, relPath)
	if err != nil {
		return "", fmt.Errorf("出力パスの解決に失敗しました: %w", err)
	}
	return fullPath, nil
}

// segment はカテゴリ名や ID をパスの1要素として安全な形にします。
func segment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	if s == "" {
		return "_"
	}
	return s
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
