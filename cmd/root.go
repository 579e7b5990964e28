package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-trait-kit/internal/builder"
	"github.com/shouni/go-trait-kit/internal/config"
)

var opts = config.NewOptions()

var rootCmd = &cobra.Command{
	Use:   "trait-kit",
	Short: "テーマ文から特徴レイヤー付きのキャラクターコレクションを生成するのだ。",
	Long: `自由文のテーマを生成設定に変換し、ベースキャラクターとトレイト画像を生成して合成するのだ。
GEMINI_API_KEY が未設定の場合は、ラベル付きのシミュレーション出力で動作するのだよ。`,
	SilenceUsage:      true,
	PersistentPreRunE: preRunAppE,
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", opts.ConfigFile, "TOML 設定ファイルのパスなのだ。存在しなければ既定値を使うのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite データベースのパスなのだ。指定すると sqlite ストアを使うのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "コマンド全体のタイムアウトなのだ（0 で設定ファイルの値）。")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "ログレベル（debug, info, warn, error）なのだ。")
}

// preRunAppE は、コマンド実行前にロガーを設定するのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("不明なログレベルです: %q", s)
}

// setupApp は AppContext を構築し、タイムアウト付きのコンテキストと後始末の関数を返すのだ。
func setupApp(cmd *cobra.Command) (context.Context, *builder.AppContext, func(), error) {
	appCtx, err := builder.BuildAppContext(cmd.Context(), opts)
	if err != nil {
		return nil, nil, nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = appCtx.Config.Limits.RequestTimeout()
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)

	started := time.Now()
	cleanup := func() {
		cancel()
		if err := appCtx.Close(); err != nil {
			slog.Warn("ストアのクローズに失敗しました", "error", err)
		}
		slog.Debug("コマンドが終了したのだ", "command", cmd.Name(), "duration", time.Since(started).Round(time.Millisecond))
	}
	return ctx, appCtx, cleanup, nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	addAppFlags(rootCmd)
	rootCmd.AddCommand(parseCmd, planCmd, generateCmd, compositeCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
