package cmd

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// planCmd はテーマからコレクションマニフェストを計画するのだ。
var planCmd = &cobra.Command{
	Use:   "plan <theme>",
	Short: "テーマからキャラクターのマニフェストを計画するのだ。",
	Long: `テーマ文を解析し、指定件数のキャラクター（dna・エディション・属性）を計画するのだ。
端末では表形式、パイプ先には JSON で出力するのだよ。`,
	Args: cobra.MinimumNArgs(1),
	RunE: planCommand,
}

func init() {
	planCmd.Flags().IntVar(&opts.Size, "size", 0, "計画するキャラクター数なのだ（0 で設定の supply）。")
}

func planCommand(cmd *cobra.Command, args []string) error {
	ctx, appCtx, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	manifest, err := appCtx.Planner.PlanTheme(ctx, strings.Join(args, " "), opts.Size)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		renderManifest(out, manifest)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// renderManifest はマニフェストを表形式で描画するのだ。
func renderManifest(w io.Writer, manifest domain.CollectionManifest) {
	categories := manifest.Categories()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"#", "Name", "DNA"}
	for _, c := range categories {
		header = append(header, c)
	}
	t.AppendHeader(header)

	for _, c := range manifest {
		row := table.Row{c.Edition, c.Name, c.DNA}
		for _, category := range categories {
			v, _ := c.AttributeValue(category)
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "total", len(manifest)})
	t.Render()
}
