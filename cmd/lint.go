package cmd

import (
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// lintCmd は、エクスポート済みプロジェクトに対して Ren'Py Lint と自動修正を実行するのだ。
var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Ren'Py Lint を実行してスクリプトを自動修正するのだ。",
	Long: `エクスポート済みのゲームプロジェクトに対して Ren'Py SDK の lint を実行し、
検出されたエラーをAIで解析してスクリプトを自動修正するのだ。修正後にもう一度
lint を実行して、結果を作業ディレクトリに記録するのだよ。`,
	RunE: lintCommand,
}

func lintCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfigWithFlags()

	slog.Info("Lintモードを起動するのだ！", "renpy_command", cfg.RenpyCommand)

	return pipeline.ExecuteLintOnly(ctx, cfg)
}
