package builder

import (
	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/store"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各Build関数に渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config *config.Config // Configは、環境変数から読み込まれたグローバルな設定です（作業ディレクトリ、モデル接続先など）。
	Store  *store.Store   // Storeは、中間成果物の読み書きを担う作業ディレクトリのラッパーです。
	Models *ai.ModelSet   // Modelsは、役割ごとに使い分ける言語モデルクライアント一式なのだ。
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(cfg *config.Config, st *store.Store, models *ai.ModelSet) AppContext {
	return AppContext{
		Config: cfg,
		Store:  st,
		Models: models,
	}
}
