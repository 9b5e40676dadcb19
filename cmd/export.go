package cmd

import (
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// exportCmd は、生成済みの成果物をRen'Pyゲームプロジェクトへ書き出すのだ。
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "生成済みの成果物をゲームプロジェクトへ書き出すのだ。",
	Long: `作業ディレクトリに溜まったスクリプト・画像・音声を、Ren'Pyプロジェクトの
game ディレクトリへコピーするのだ。画像と音声のディレクトリは丸ごと入れ替えて、
古い章のスクリプトとコンパイル済みファイルは掃除するのだよ。`,
	RunE: exportCommand,
}

func exportCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := loadConfigWithFlags()

	slog.Info("エクスポートを開始するのだ！", "workdir", cfg.WorkDir, "export_dir", cfg.ExportDir)

	return pipeline.ExecuteExportOnly(ctx, cfg)
}
