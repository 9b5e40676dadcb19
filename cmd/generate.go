package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、テーマ決定からLintまでの全パイプラインを実行するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "AIにノベルゲーム一式を生成させますなのだ。",
	Long: `ゲームテーマから草案・章・Ren'Pyスクリプト・画像・音声を順番に生成し、
ゲームプロジェクトとして書き出すのだ。成果物はファイル単位で記録されるため、
途中で止まっても再実行すれば続きから走るのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfigWithFlags()

	slog.Info("ノベルゲーム生成パイプラインを起動するのだ！",
		"workdir", cfg.WorkDir,
		"comfy_server", cfg.ComfyAddress,
		"export_dir", cfg.ExportDir,
		"evaluation", cfg.EnableEvaluation)

	if err := pipeline.ExecuteGenerate(ctx, cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
