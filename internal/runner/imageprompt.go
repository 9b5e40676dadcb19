package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// ImagePromptRunner は、章脚本から画像プロンプト一覧（背景・立ち絵・CG）を
// 生成するステージです。章単位で並列化しますが、並列数と流量は設定に従うのだ。
type ImagePromptRunner struct {
	store *store.Store
	model ai.Client // SDプロンプトモデル
	cfg   *config.Config
}

// NewImagePromptRunner は ImagePromptRunner の新しいインスタンスを生成して返すのだ。
func NewImagePromptRunner(st *store.Store, model ai.Client, cfg *config.Config) *ImagePromptRunner {
	return &ImagePromptRunner{store: st, model: model, cfg: cfg}
}

// Run は全章の画像プロンプトファイルを生成します。
// 脚本がまだ無い章は飛ばし、3種すべて揃っている章もスキップするのだ。
func (ir *ImagePromptRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	worldViewJSON, err := json.Marshal(sd.WorldView)
	if err != nil {
		return fmt.Errorf("世界観設定のエンコードに失敗しました: %w", err)
	}
	charactersJSON, err := json.Marshal(sd.Characters)
	if err != nil {
		return fmt.Errorf("キャラクター設定のエンコードに失敗しました: %w", err)
	}

	type chapterWork struct {
		num     int
		missing []domain.TaskKind
	}

	var work []chapterWork
	for i := range sd.Chapters {
		num := i + 1

		var missing []domain.TaskKind
		for _, kind := range domain.ImageKinds {
			if !ir.store.Exists(store.ImagePromptPath(num, kind)) {
				missing = append(missing, kind)
			}
		}
		if len(missing) == 0 {
			slog.Info("画像プロンプトがすべて存在するため、スキップします", "chapter", num)
			continue
		}
		if !ir.store.Exists(store.ChapterScriptPath(num)) {
			slog.Warn("章の脚本が見つからないため、画像プロンプト生成をスキップします", "chapter", num)
			continue
		}
		work = append(work, chapterWork{num: num, missing: missing})
	}

	if len(work) == 0 {
		slog.Info("すべての画像プロンプトがすでに存在するため、画像プロンプト生成をスキップしました")
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ir.cfg.MaxConcurrent)
	limiter := rate.NewLimiter(rate.Every(ir.cfg.RateLimit), 2)

	slog.Info("画像プロンプトの並列生成を開始するのだ", "chapters", len(work), "concurrency", ir.cfg.MaxConcurrent)

	for _, w := range work {
		w := w
		eg.Go(func() error {
			script, err := ir.store.ReadText(store.ChapterScriptPath(w.num))
			if err != nil {
				return err
			}
			for _, kind := range w.missing {
				if err := limiter.Wait(egCtx); err != nil {
					return err
				}
				if err := ir.generateKind(egCtx, w.num, kind, string(worldViewJSON), string(charactersJSON), script); err != nil {
					return fmt.Errorf("章 %d の %s プロンプト生成に失敗しました: %w", w.num, kind, err)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	slog.Info("画像プロンプトの生成が完了しました", "chapters", len(work))
	return nil
}

// generateKind は1章×1種別の画像プロンプトファイルを生成します。
func (ir *ImagePromptRunner) generateKind(ctx context.Context, num int, kind domain.TaskKind, worldViewJSON, charactersJSON, script string) error {
	system, err := prompt.ImageSystem(kind)
	if err != nil {
		return err
	}

	slog.Info("画像プロンプトを生成しています...", "chapter", num, "kind", kind)
	raw, err := ir.model.Complete(ctx, ai.Request{
		System:   system,
		User:     prompt.ImageUser(kind, worldViewJSON, charactersJSON, script),
		JSONMode: true,
	})
	if err != nil {
		return err
	}

	var prompts []domain.ImagePrompt
	if err := json.Unmarshal([]byte(ai.StripJSONFence(raw)), &prompts); err != nil {
		return fmt.Errorf("モデル応答のパースに失敗しました: %w", err)
	}

	pretty, err := json.MarshalIndent(prompts, "", "    ")
	if err != nil {
		return err
	}
	return ir.store.WriteBytes(store.ImagePromptPath(num, kind), pretty)
}
