package builder

import (
	"context"
	"fmt"
	"os"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/runner"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/comfy"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// WritingRunners は前半の執筆フェーズ（テーマ〜スクリプト）の Runner 一式です。
type WritingRunners struct {
	Theme   *runner.ThemeRunner
	Draft   *runner.DraftRunner
	Parse   *runner.ParseRunner
	Chapter *runner.ChapterRunner
	Script  *runner.ScriptRunner
}

// BuildWritingRunners は執筆フェーズの Runner を組み立てるのだ。
// テーマ入力は標準入出力に固定する。対話が要らない経路は ThemeRunner を素通りすればよい。
func BuildWritingRunners(appCtx *AppContext) WritingRunners {
	return WritingRunners{
		Theme:   runner.NewThemeRunner(appCtx.Store, os.Stdin, os.Stdout),
		Draft:   runner.NewDraftRunner(appCtx.Store, appCtx.Models.Reasoning),
		Parse:   runner.NewParseRunner(appCtx.Store, appCtx.Models.General),
		Chapter: runner.NewChapterRunner(appCtx.Store, appCtx.Models.Reasoning),
		Script:  runner.NewScriptRunner(appCtx.Store, appCtx.Models.Reasoning),
	}
}

// BuildImagePromptRunner は画像プロンプト生成を担当する Runner を構築します。
func BuildImagePromptRunner(appCtx *AppContext) *runner.ImagePromptRunner {
	return runner.NewImagePromptRunner(appCtx.Store, appCtx.Models.SDPrompt, appCtx.Config)
}

// BuildAudioPromptRunner は音声プロンプト生成を担当する Runner を構築します。
func BuildAudioPromptRunner(appCtx *AppContext) *runner.AudioPromptRunner {
	return runner.NewAudioPromptRunner(appCtx.Store, appCtx.Models.General)
}

// BuildImageRunner は画像生成と自己修正ループを担当する Runner を構築します。
// 評価には視覚モデルを使うが、有効化は設定側で制御されるのだ。
func BuildImageRunner(appCtx *AppContext, backend runner.ImageBackend, sd *domain.StructuredDraft) *runner.ImageRunner {
	evaluator := runner.NewEvaluator(appCtx.Store, appCtx.Models.Vision, sd)
	return runner.NewImageRunner(appCtx.Store, backend, evaluator, appCtx.Config)
}

// BuildAudioRunner は BGM と効果音の生成を担当する Runner を構築します。
func BuildAudioRunner(appCtx *AppContext, backend runner.AudioBackend) *runner.AudioRunner {
	return runner.NewAudioRunner(appCtx.Store, backend, appCtx.Config)
}

// BuildExportRunner はゲームプロジェクトへの出力を担当する Runner を構築します。
func BuildExportRunner(appCtx *AppContext) *runner.ExportRunner {
	return runner.NewExportRunner(appCtx.Store)
}

// BuildLintRunner は Ren'Py Lint の解析と自動修正を担当する Runner を構築します。
func BuildLintRunner(appCtx *AppContext) *runner.LintRunner {
	return runner.NewLintRunner(appCtx.Store, appCtx.Models.Lint, appCtx.Config)
}

// InitializeModels は役割別の言語モデルクライアント一式を初期化します。
func InitializeModels(ctx context.Context, cfg *config.Config) (*ai.ModelSet, error) {
	models, err := ai.NewModelSet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("モデルクライアントの初期化に失敗しました: %w", err)
	}
	return models, nil
}

// ConnectComfy は拡散生成サーバーへの WebSocket 接続を確立します。
// 画像・音声ステージを実行しない経路では呼ばないのだ。
func ConnectComfy(appCtx *AppContext) (*comfy.Client, error) {
	client, err := comfy.Connect(appCtx.Config.ComfyAddress)
	if err != nil {
		return nil, fmt.Errorf("ComfyUIサーバーへの接続に失敗したのだ: %w", err)
	}
	return client, nil
}

// BuildStore は作業ディレクトリの Store を初期化します。
func BuildStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("作業ディレクトリの初期化に失敗しました: %w", err)
	}
	return st, nil
}
