package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-trait-kit/internal/config"
	"github.com/shouni/go-trait-kit/internal/pipeline"
)

// generateCmd は、テーマからコレクションを生成して書き出すまでを実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate <theme>",
	Short: "テーマからベースキャラクターとトレイト画像を生成し、ファイルに書き出すのだ。",
	Long: `テーマ文を解析してプロジェクトを作成し、ベース画像とトレイトを生成、プレビューを合成して保存・公開するのだ。
出力は manifest.json、preview.png、layers/<category>/<id>.png になるのだよ。`,
	Args: cobra.MinimumNArgs(1),
	RunE: generateCommand,
}

func init() {
	generateCmd.Flags().StringSliceVar(&opts.Categories, "categories", nil, "生成するトレイトのカテゴリなのだ（カンマ区切り）。")
	generateCmd.Flags().IntVar(&opts.Variations, "variations", 0, "カテゴリごとのバリエーション数なのだ。")
	generateCmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "成果物の出力先ディレクトリなのだ。")
	generateCmd.Flags().StringVar(&opts.Owner, "owner", config.DefaultOwner, "プロジェクトの所有者アドレスなのだ。")
	generateCmd.Flags().StringVar(&opts.Name, "name", "", "プロジェクト名なのだ（省略時は設定から作るのだ）。")
	generateCmd.Flags().StringVar(&opts.Contract, "contract", "", "公開時に記録するコントラクトアドレスなのだ。")
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx, appCtx, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	theme := strings.Join(args, " ")
	slog.Info("コレクション生成パイプラインを起動するのだ！",
		"theme", theme,
		"text_model", appCtx.Config.Gemini.TextModel,
		"image_model", appCtx.Config.Gemini.ImageModel,
		"simulated", appCtx.Simulated,
		"output", opts.OutputDir)

	res, err := pipeline.Execute(ctx, appCtx, theme)
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Project.ID, res.Project.Status, res.Publish.ManifestPath)
	return nil
}
