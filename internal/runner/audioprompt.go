package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// AudioPromptRunner は、章脚本から音楽・効果音のプロンプト一覧を生成するステージです。
// 呼び出す先は汎用モデルで、章ごとに直列処理します。
type AudioPromptRunner struct {
	store *store.Store
	model ai.Client // 汎用モデル
}

// NewAudioPromptRunner は AudioPromptRunner の新しいインスタンスを生成して返すのだ。
func NewAudioPromptRunner(st *store.Store, model ai.Client) *AudioPromptRunner {
	return &AudioPromptRunner{store: st, model: model}
}

// Run は全章の音声プロンプトファイルを生成します。
// 脚本がまだ無い章は飛ばし、2種とも揃っている章もスキップするのだ。
func (ar *AudioPromptRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	generated := 0
	for i := range sd.Chapters {
		num := i + 1

		var missing []domain.TaskKind
		for _, kind := range domain.AudioKinds {
			if !ar.store.Exists(store.AudioPromptPath(num, kind)) {
				missing = append(missing, kind)
			}
		}
		if len(missing) == 0 {
			slog.Info("音声プロンプトがすべて存在するため、スキップします", "chapter", num)
			continue
		}
		if !ar.store.Exists(store.ChapterScriptPath(num)) {
			slog.Warn("章の脚本が見つからないため、音声プロンプト生成をスキップします", "chapter", num)
			continue
		}

		script, err := ar.store.ReadText(store.ChapterScriptPath(num))
		if err != nil {
			return err
		}

		for _, kind := range missing {
			if err := ar.generateKind(ctx, num, kind, script); err != nil {
				return fmt.Errorf("章 %d の %s プロンプト生成に失敗しました: %w", num, kind, err)
			}
			generated++
		}
	}

	if generated == 0 {
		slog.Info("すべての音声プロンプトがすでに存在するため、音声プロンプト生成をスキップしました")
	} else {
		slog.Info("音声プロンプトの生成が完了しました", "files", generated)
	}
	return nil
}

// generateKind は1章×1種別の音声プロンプトファイルを生成します。
func (ar *AudioPromptRunner) generateKind(ctx context.Context, num int, kind domain.TaskKind, script string) error {
	p, err := prompt.Audio(kind, script)
	if err != nil {
		return err
	}

	slog.Info("音声プロンプトを生成しています...", "chapter", num, "kind", kind)
	raw, err := ar.model.Complete(ctx, ai.Request{User: p, JSONMode: true})
	if err != nil {
		return err
	}

	var prompts []domain.AudioPrompt
	if err := json.Unmarshal([]byte(ai.StripJSONFence(raw)), &prompts); err != nil {
		return fmt.Errorf("モデル応答のパースに失敗しました: %w", err)
	}

	pretty, err := json.MarshalIndent(prompts, "", "    ")
	if err != nil {
		return err
	}
	return ar.store.WriteBytes(store.AudioPromptPath(num, kind), pretty)
}
