package cmd

import (
	"fmt"

	"github.com/shouni/go-novel-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// flagOpts は CLI フラグで上書きできる実行時パラメータなのだ。
// 未指定のフラグは環境変数と既定値に委ねる。
var flagOpts struct {
	workDir     string
	server      string
	exportDir   string
	concurrency int
	maxAttempts int
	enableEval  bool
	noEval      bool
}

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 作業ディレクトリと出力先 ---
	rootCmd.PersistentFlags().StringVarP(&flagOpts.workDir, "workdir", "w", "", "中間成果物を置く作業ディレクトリなのだ（既定: ./temp）。")
	rootCmd.PersistentFlags().StringVarP(&flagOpts.exportDir, "export-dir", "o", "", "Ren'Pyプロジェクトの出力先ディレクトリなのだ。")

	// --- 生成サーバー・挙動設定 ---
	rootCmd.PersistentFlags().StringVarP(&flagOpts.server, "server", "s", "", "ComfyUIサーバーのアドレス（host:port）なのだ。")
	rootCmd.PersistentFlags().IntVarP(&flagOpts.concurrency, "concurrency", "c", 0, "プロンプト生成の最大並列数なのだ。")
	rootCmd.PersistentFlags().IntVar(&flagOpts.maxAttempts, "max-attempts", 0, "画像自己修正ループの最大試行回数なのだ。")
	rootCmd.PersistentFlags().BoolVar(&flagOpts.enableEval, "eval", false, "視覚モデルによる画像評価を有効にするのだ。")
	rootCmd.PersistentFlags().BoolVar(&flagOpts.noEval, "no-eval", false, "環境変数の設定に関わらず画像評価を無効にするのだ。")
}

// preRunAppE は、コマンド実行前にフラグの整合性チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	if flagOpts.enableEval && flagOpts.noEval {
		return fmt.Errorf("--eval と --no-eval は同時に指定できないのだ")
	}
	if flagOpts.concurrency < 0 {
		return fmt.Errorf("--concurrency には1以上の値を指定してほしいのだ")
	}
	if flagOpts.maxAttempts < 0 {
		return fmt.Errorf("--max-attempts には1以上の値を指定してほしいのだ")
	}
	return nil
}

// loadConfigWithFlags は環境変数から設定をロードし、CLIフラグで上書きするのだ。
func loadConfigWithFlags() *config.Config {
	cfg := config.LoadConfig()
	if flagOpts.workDir != "" {
		cfg.WorkDir = flagOpts.workDir
	}
	if flagOpts.server != "" {
		cfg.ComfyAddress = flagOpts.server
	}
	if flagOpts.exportDir != "" {
		cfg.ExportDir = flagOpts.exportDir
	}
	if flagOpts.concurrency > 0 {
		cfg.MaxConcurrent = flagOpts.concurrency
	}
	if flagOpts.maxAttempts > 0 {
		cfg.MaxRefineAttempts = flagOpts.maxAttempts
	}
	if flagOpts.enableEval {
		cfg.EnableEvaluation = true
	}
	if flagOpts.noEval {
		cfg.EnableEvaluation = false
	}
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"ap-novel-go",
		addAppFlags,
		preRunAppE,
		generateCmd,
		assetsCmd,
		exportCmd,
		lintCmd,
		statusCmd,
	)
}
