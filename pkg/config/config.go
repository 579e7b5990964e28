package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義
const (
	DefaultGeminiModel        = "gemini-3-flash-preview"
	DefaultImageModel         = "gemini-3-pro-image-preview"
	DefaultGeminiTemperature  = float32(0.2)
	DefaultImageTemperature   = float32(0.4)
	DefaultCollectionSize     = 5
	DefaultVariations         = 3
	DefaultStyle              = "flat vector illustration"
	DefaultStyleSuffix        = "clean line art, consistent cel shading, centered character, plain studio background, high resolution"
	DefaultRateIntervalMillis = 2000
	DefaultRateBurst          = 2
	DefaultTextTimeoutSec     = 30
	DefaultImageTimeoutSec    = 60
	DefaultRequestTimeoutSec  = 600
	DefaultCacheTTLSec        = 900
	DefaultStoreDriver        = StoreMemory
	DefaultStorePath          = "trait-kit.db"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// DefaultCategories は生成時に既定で扱うトレイトカテゴリです。Body はベース画像が担います。
var DefaultCategories = []string{"Background", "Clothing", "Accessories", "Headwear", "Eyewear"}

// Config は go-trait-kit の各コンポーネントを動作させるための基本設定です。
type Config struct {
	Gemini     Gemini     `toml:"gemini"`
	Generation Generation `toml:"generation"`
	Limits     Limits     `toml:"limits"`
	Retry      Retry      `toml:"retry"`
	Store      Store      `toml:"store"`
}

// Gemini は生成バックエンドの設定です。
type Gemini struct {
	APIKey           string  `toml:"api_key"`
	TextModel        string  `toml:"text_model"`
	ImageModel       string  `toml:"image_model"`
	Temperature      float32 `toml:"temperature"`
	ImageTemperature float32 `toml:"image_temperature"`
}

// Generation はコレクション生成の既定値です。
type Generation struct {
	CollectionSize     int      `toml:"collection_size"`
	Variations         int      `toml:"variations"`
	Categories         []string `toml:"categories"`
	DefaultStyle       string   `toml:"default_style"`
	StyleSuffix        string   `toml:"style_suffix"`
	RateIntervalMillis int      `toml:"rate_interval_ms"`
	RateBurst          int      `toml:"rate_burst"`
}

// Limits は外部呼び出しごとの期限です。
type Limits struct {
	TextTimeoutSec    int `toml:"text_timeout_seconds"`
	ImageTimeoutSec   int `toml:"image_timeout_seconds"`
	RequestTimeoutSec int `toml:"request_timeout_seconds"`
}

// Retry はタイムアウトや通信失敗に対する再試行ポリシーです。
// MaxAttempts が 1 の場合は再試行しません。
type Retry struct {
	MaxAttempts           int  `toml:"max_attempts"`
	InitialIntervalMillis int  `toml:"initial_interval_ms"`
	MaxIntervalMillis     int  `toml:"max_interval_ms"`
	RetryOnTimeout        bool `toml:"retry_on_timeout"`
}

// Store は永続化先の設定です。
type Store struct {
	Driver      string `toml:"driver"`
	Path        string `toml:"path"`
	CacheTTLSec int    `toml:"cache_ttl_seconds"`
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		Gemini: Gemini{
			TextModel:        DefaultGeminiModel,
			ImageModel:       DefaultImageModel,
			Temperature:      DefaultGeminiTemperature,
			ImageTemperature: DefaultImageTemperature,
		},
		Generation: Generation{
			CollectionSize:     DefaultCollectionSize,
			Variations:         DefaultVariations,
			Categories:         append([]string(nil), DefaultCategories...),
			DefaultStyle:       DefaultStyle,
			StyleSuffix:        DefaultStyleSuffix,
			RateIntervalMillis: DefaultRateIntervalMillis,
			RateBurst:          DefaultRateBurst,
		},
		Limits: Limits{
			TextTimeoutSec:    DefaultTextTimeoutSec,
			ImageTimeoutSec:   DefaultImageTimeoutSec,
			RequestTimeoutSec: DefaultRequestTimeoutSec,
		},
		Retry: Retry{
			MaxAttempts:           1,
			InitialIntervalMillis: 1000,
			MaxIntervalMillis:     10000,
		},
		Store: Store{
			Driver:      DefaultStoreDriver,
			Path:        DefaultStorePath,
			CacheTTLSec: DefaultCacheTTLSec,
		},
	}
}

// Load は TOML ファイルを既定値の上に読み込み、環境変数を反映して検証します。
// path が空、またはファイルが存在しない場合は既定値のみを使うのだ。
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := decodeInto(file, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode は r の TOML を既定値の上に読み込み、検証します。環境変数は反映しません。
func Decode(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := decodeInto(r, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeInto(r io.Reader, cfg *Config) error {
	if err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv は環境変数の値で設定を上書きします。
func (c *Config) ApplyEnv() {
	c.Gemini.APIKey = envutil.GetEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.TextModel = envutil.GetEnv("GEMINI_MODEL", c.Gemini.TextModel)
	c.Gemini.ImageModel = envutil.GetEnv("IMAGE_GEMINI_MODEL", c.Gemini.ImageModel)
	c.Store.Path = envutil.GetEnv("TRAIT_KIT_DB", c.Store.Path)
}

// Validate は設定値が利用可能かを確認します。
func (c Config) Validate() error {
	if c.Gemini.TextModel == "" || c.Gemini.ImageModel == "" {
		return errors.New("gemini.text_model and gemini.image_model must be set")
	}
	if c.Generation.CollectionSize < 1 {
		return errors.New("generation.collection_size must be >= 1")
	}
	if c.Generation.Variations < 1 {
		return errors.New("generation.variations must be >= 1")
	}
	if c.Generation.RateBurst < 1 {
		return errors.New("generation.rate_burst must be >= 1")
	}
	if c.Limits.TextTimeoutSec <= 0 || c.Limits.ImageTimeoutSec <= 0 || c.Limits.RequestTimeoutSec <= 0 {
		return errors.New("limits must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	switch strings.ToLower(c.Store.Driver) {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	return nil
}

// HasCredential は API キーが設定されているかを返します。
func (c Config) HasCredential() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}

func (l Limits) TextTimeout() time.Duration    { return time.Duration(l.TextTimeoutSec) * time.Second }
func (l Limits) ImageTimeout() time.Duration   { return time.Duration(l.ImageTimeoutSec) * time.Second }
func (l Limits) RequestTimeout() time.Duration { return time.Duration(l.RequestTimeoutSec) * time.Second }

// RateInterval はトレイト生成のリクエスト間隔です。
func (g Generation) RateInterval() time.Duration {
	return time.Duration(g.RateIntervalMillis) * time.Millisecond
}

func (r Retry) InitialInterval() time.Duration {
	return time.Duration(r.InitialIntervalMillis) * time.Millisecond
}

func (r Retry) MaxInterval() time.Duration {
	return time.Duration(r.MaxIntervalMillis) * time.Millisecond
}

func (s Store) CacheTTL() time.Duration { return time.Duration(s.CacheTTLSec) * time.Second }
