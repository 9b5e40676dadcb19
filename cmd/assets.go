package cmd

import (
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// assetsCmd は、既存の構造化草案とスクリプトを前提に素材系ステージだけを実行するのだ。
// 執筆コストを抑えつつ、画像や音声の再生成・追い生成を行いたい場合に便利なのだ。
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "画像・音声プロンプトと素材の生成だけを実行するのだ。",
	Long: `保存済みの構造化草案とRen'Pyスクリプトを読み込み、画像プロンプト・音声プロンプトの生成と
ComfyUIによる素材生成を実行するのだ。生成済みの素材は自動的にスキップされるのだよ。`,
	RunE: assetsCommand,
}

func assetsCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfigWithFlags()

	slog.Info("素材生成モードを起動するのだ！",
		"workdir", cfg.WorkDir,
		"comfy_server", cfg.ComfyAddress,
		"evaluation", cfg.EnableEvaluation)

	return pipeline.ExecuteAssetsOnly(ctx, cfg)
}
