package cmd

import (
	"github.com/shouni/go-novel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// statusCmd は、素材の生成状況を一覧表示するだけの読み取り専用コマンドなのだ。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "画像と音声の生成状況を一覧表示するのだ。",
	Long: `保存済みのプロンプトと生成済み素材を突き合わせて、章ごとの未生成・生成済み・
重複の状況を表で表示するのだ。モデルにも生成サーバーにも接続しないのだよ。`,
	RunE: statusCommand,
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg := loadConfigWithFlags()
	return pipeline.ExecuteStatus(cmd.Context(), cfg)
}
