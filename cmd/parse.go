package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

// parseCmd はテーマ文を GenerationConfig に変換して表示するのだ。
var parseCmd = &cobra.Command{
	Use:   "parse <theme>",
	Short: "テーマ文を生成設定（subject, theme, style, supply）に変換するのだ。",
	Args:  cobra.MinimumNArgs(1),
	RunE:  parseCommand,
}

func parseCommand(cmd *cobra.Command, args []string) error {
	ctx, appCtx, cleanup, err := setupApp(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, err := appCtx.Parser.Parse(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
