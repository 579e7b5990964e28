package config

import (
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultConfigFile = "trait-kit.toml"
	DefaultOutputDir  = "output"
	DefaultLogLevel   = "info"
	DefaultOwner      = "local"
)

// Options は CLI フラグから渡される実行時のパラメータなのだ。
type Options struct {
	// 共通
	ConfigFile string        // --config
	DBPath     string        // --db: 指定すると sqlite ストアを使う
	Timeout    time.Duration // --timeout: コマンド全体の期限
	LogLevel   string        // --log-level

	// 生成関連
	Size       int      // --size
	Categories []string // --categories
	Variations int      // --variations
	OutputDir  string   // --output-dir
	Owner      string   // --owner
	Contract   string   // --contract
	Name       string   // --name

	// 合成関連
	ProjectID string   // --project
	TraitIDs  []string // --trait
}

// NewOptions は環境変数を既定値として反映した Options を返すのだ！
func NewOptions() Options {
	return Options{
		ConfigFile: envutil.GetEnv("TRAIT_KIT_CONFIG", DefaultConfigFile),
		LogLevel:   envutil.GetEnv("TRAIT_KIT_LOG_LEVEL", DefaultLogLevel),
		OutputDir:  DefaultOutputDir,
		Owner:      DefaultOwner,
	}
}
