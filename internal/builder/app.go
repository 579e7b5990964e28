package builder

import (
	"github.com/shouni/go-trait-kit/internal/config"
	kitconfig "github.com/shouni/go-trait-kit/pkg/config"
	"github.com/shouni/go-trait-kit/pkg/parser"
	"github.com/shouni/go-trait-kit/pkg/planner"
	"github.com/shouni/go-trait-kit/pkg/publisher"
	"github.com/shouni/go-trait-kit/pkg/store"
	"github.com/shouni/go-trait-kit/pkg/workflow"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各コマンドに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config    kitconfig.Config     // Config は TOML と環境変数から読み込まれた設定です。
	Options   config.Options       // Options は、コマンドラインから渡された実行時の設定です。
	Store     store.Store          // Store は、プロジェクトとトレイトの永続化先です。
	Parser    *parser.ConfigParser // Parser は、テーマ文を生成設定に変換します。
	Planner   *planner.Planner     // Planner は、マニフェストを計画します。
	Manager   *workflow.Manager    // Manager は、プロジェクトの状態遷移を管理します。
	Publisher *publisher.Publisher // Publisher は、成果物をファイルに書き出します。
	Simulated bool                 // Simulated は、認証情報なしでプレースホルダー出力を返すかどうかです。
}

// Close は保持しているリソースを解放します。
func (a *AppContext) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
