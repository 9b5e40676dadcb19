package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-novel-kit/internal/builder"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/plan"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// ExecuteGenerate は、テーマ決定から Lint までの全ステージを順番に実行するのだ。
// 各ステージは成果物ファイルの有無で完了を判定するため、途中で失敗しても
// 再実行すれば続きから走るのだ。
func ExecuteGenerate(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	sd, err := runWritingPhase(ctx, appCtx)
	if err != nil {
		return err
	}

	if err := runPromptPhase(ctx, appCtx, sd); err != nil {
		return err
	}

	if err := runAssetPhase(ctx, appCtx, sd); err != nil {
		return err
	}

	if err := runStage(ctx, "export", func() error {
		return builder.BuildExportRunner(appCtx).Run(ctx, cfg.ExportDir)
	}); err != nil {
		return err
	}

	if err := runStage(ctx, "lint", func() error {
		return builder.BuildLintRunner(appCtx).Run(ctx)
	}); err != nil {
		return err
	}

	slog.Info("ノベルゲームの生成がすべて完了したのだ！", "export_dir", cfg.ExportDir)
	return nil
}

// ExecuteAssetsOnly は、既存の構成ファイルを前提に素材系のステージだけを実行するのだ。
// プロンプト生成も含めて走らせるが、成果物が揃っている章は自動的にスキップされる。
func ExecuteAssetsOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}

	sd, err := loadStructuredDraft(ctx, appCtx)
	if err != nil {
		return err
	}

	if err := runPromptPhase(ctx, appCtx, sd); err != nil {
		return err
	}
	if err := runAssetPhase(ctx, appCtx, sd); err != nil {
		return err
	}

	slog.Info("素材生成が完了したのだ！")
	return nil
}

// ExecuteExportOnly は、生成済みの成果物をゲームプロジェクトへ書き出すのだ。
func ExecuteExportOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	return runStage(ctx, "export", func() error {
		return builder.BuildExportRunner(appCtx).Run(ctx, cfg.ExportDir)
	})
}

// ExecuteLintOnly は、エクスポート済みプロジェクトに対して Lint と自動修正を行うのだ。
func ExecuteLintOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	return runStage(ctx, "lint", func() error {
		return builder.BuildLintRunner(appCtx).Run(ctx)
	})
}

// ExecuteStatus は、素材の生成状況レポートを表示するのだ。
// モデルにも生成サーバーにも接続しない読み取り専用の経路なのだ。
func ExecuteStatus(ctx context.Context, cfg *config.Config) error {
	st, err := builder.BuildStore(cfg)
	if err != nil {
		return err
	}

	raw, err := st.ReadText(store.StructuredDraftPath)
	if err != nil {
		return fmt.Errorf("構造化草案の読み込みに失敗しました。先に generate を実行してほしいのだ: %w", err)
	}
	sd, err := domain.ParseStructuredDraft([]byte(raw))
	if err != nil {
		return fmt.Errorf("構造化草案の解析に失敗しました: %w", err)
	}

	images, err := plan.ScanImages(st, len(sd.Chapters))
	if err != nil {
		return fmt.Errorf("画像タスクの走査に失敗しました: %w", err)
	}
	audio, err := plan.ScanAudio(st, len(sd.Chapters))
	if err != nil {
		return fmt.Errorf("音声タスクの走査に失敗しました: %w", err)
	}

	fmt.Println("== 画像 ==")
	fmt.Print(images.Render())
	fmt.Println("== 音声 ==")
	fmt.Print(audio.Render())
	return nil
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、
// アプリケーションコンテキストを初期化して返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	models, err := builder.InitializeModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st, err := builder.BuildStore(cfg)
	if err != nil {
		return nil, err
	}
	appCtx := builder.NewAppContext(cfg, st, models)
	return &appCtx, nil
}

// runWritingPhase はテーマ決定から章スクリプトまでの執筆ステージを実行するのだ。
func runWritingPhase(ctx context.Context, appCtx *builder.AppContext) (*domain.StructuredDraft, error) {
	runners := builder.BuildWritingRunners(appCtx)

	var gameTheme string
	if err := runStage(ctx, "theme", func() error {
		var err error
		gameTheme, err = runners.Theme.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, "draft", func() error {
		_, err := runners.Draft.Run(ctx, gameTheme)
		return err
	}); err != nil {
		return nil, err
	}

	var sd *domain.StructuredDraft
	if err := runStage(ctx, "parse", func() error {
		var err error
		sd, err = runners.Parse.Run(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, "chapters", func() error {
		return runners.Chapter.Run(ctx, sd)
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, "scripts", func() error {
		return runners.Script.Run(ctx, sd)
	}); err != nil {
		return nil, err
	}

	return sd, nil
}

// runPromptPhase は画像・音声プロンプトの生成ステージを実行するのだ。
func runPromptPhase(ctx context.Context, appCtx *builder.AppContext, sd *domain.StructuredDraft) error {
	if err := runStage(ctx, "image_prompts", func() error {
		return builder.BuildImagePromptRunner(appCtx).Run(ctx, sd)
	}); err != nil {
		return err
	}
	return runStage(ctx, "audio_prompts", func() error {
		return builder.BuildAudioPromptRunner(appCtx).Run(ctx, sd)
	})
}

// runAssetPhase は拡散生成サーバーに接続し、画像と音声の生成ステージを実行するのだ。
// 接続はこのフェーズの間だけ維持する。
func runAssetPhase(ctx context.Context, appCtx *builder.AppContext, sd *domain.StructuredDraft) error {
	comfyClient, err := builder.ConnectComfy(appCtx)
	if err != nil {
		return err
	}
	defer comfyClient.Close()

	if err := runStage(ctx, "images", func() error {
		return builder.BuildImageRunner(appCtx, comfyClient, sd).Run(ctx, sd)
	}); err != nil {
		return err
	}
	return runStage(ctx, "audio", func() error {
		return builder.BuildAudioRunner(appCtx, comfyClient).Run(ctx, sd)
	})
}

// loadStructuredDraft は保存済みの構造化草案を読み込むのだ。
// ParseRunner は成果物があればモデルを呼ばずに再利用するため、そのまま流用する。
func loadStructuredDraft(ctx context.Context, appCtx *builder.AppContext) (*domain.StructuredDraft, error) {
	runners := builder.BuildWritingRunners(appCtx)
	sd, err := runners.Parse.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("構造化草案の読み込みに失敗しました。先に generate を実行してほしいのだ: %w", err)
	}
	return sd, nil
}

// runStage は1ステージを実行し、経過時間をログに残すのだ。
func runStage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	slog.InfoContext(ctx, "ステージを開始するのだ", "stage", name)
	if err := fn(); err != nil {
		return fmt.Errorf("%s ステージに失敗しました: %w", name, err)
	}
	slog.InfoContext(ctx, "ステージが完了したのだ", "stage", name, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
