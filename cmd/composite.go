package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shouni/go-trait-kit/internal/pipeline"
)

var compositeOutput string

// compositeCmd は保存済みトレイトを ID で指定してプレビューを合成するのだ。
var compositeCmd = &cobra.Command{
	Use:   "composite --project <id> --trait <id>...",
	Short: "保存済みのトレイトをベース画像に合成するのだ。",
	Long: `generating 状態のプロジェクトに対して、指定したトレイトをベース画像へ合成するのだ。
見つからないトレイトは除外され、ベース画像が見つからない場合はエラーになるのだよ。--db と併用するのだ。`,
	Args: cobra.NoArgs,
	RunE: compositeCommand,
}

func init() {
	compositeCmd.Flags().StringVar(&opts.ProjectID, "project", "", "対象プロジェクトの ID なのだ。")
	compositeCmd.Flags().StringArrayVar(&opts.TraitIDs, "trait", nil, "合成するトレイトの ID なのだ（複数指定可）。")
	compositeCmd.Flags().StringVarP(&compositeOutput, "output", "o", "composite.png", "合成画像の保存先なのだ。")
	_ = compositeCmd.MarkFlagRequired("project")
}

func compositeCommand(cmd *cobra.Command, args []string) error {
	ctx, appCtx, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	img, err := pipeline.Composite(ctx, appCtx, opts.ProjectID, opts.TraitIDs)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(compositeOutput); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリの作成に失敗したのだ: %w", err)
		}
	}
	if err := os.WriteFile(compositeOutput, img, 0o644); err != nil {
		return fmt.Errorf("合成画像の保存に失敗したのだ: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), compositeOutput)
	return nil
}
