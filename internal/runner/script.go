package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// ScriptRunner は、章本文を Ren'Py 脚本に書き換えるステージです。
// 最初にキャラクター定義とエントリーラベルを script.rpy に書き出し、
// その後、各章を並び順どおりに chapter<N>.rpy として生成するのだ。
type ScriptRunner struct {
	store *store.Store
	model ai.Client // 推論モデル
}

// NewScriptRunner は ScriptRunner の新しいインスタンスを生成して返すのだ。
func NewScriptRunner(st *store.Store, model ai.Client) *ScriptRunner {
	return &ScriptRunner{store: st, model: model}
}

// Run はキャラクター定義と全章の脚本を生成します。保存済みの脚本はスキップします。
func (sr *ScriptRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	if err := sr.ensureIndexScript(sd); err != nil {
		return err
	}

	definition, err := sr.store.ReadText(store.ScriptIndexPath)
	if err != nil {
		return err
	}

	draftJSON, err := json.Marshal(sd)
	if err != nil {
		return fmt.Errorf("構造化草案のエンコードに失敗しました: %w", err)
	}

	generated := 0
	for i, chapter := range sd.Chapters {
		num := i + 1
		rel := store.ChapterScriptPath(num)
		if sr.store.Exists(rel) {
			slog.Info("章の脚本がすでに存在するため、スキップします", "chapter", chapter.Name)
			continue
		}

		contentRel := store.ChapterPath(chapter.Name)
		if !sr.store.Exists(contentRel) {
			slog.Warn("章の本文が見つからないため、脚本生成をスキップします", "chapter", chapter.Name)
			continue
		}
		content, err := sr.store.ReadText(contentRel)
		if err != nil {
			return err
		}

		// 先行する章の確定済み脚本を、形式と文体の参照として渡すのだ。
		previous := sr.collectPreviousScripts(sd, i)

		slog.Info("章の脚本を生成しています...", "chapter", chapter.Name, "index", num, "total", len(sd.Chapters))
		raw, err := sr.model.Complete(ctx, ai.Request{
			User: prompt.ChapterScript(chapter.Name, string(draftJSON), content, definition, previous),
		})
		if err != nil {
			return fmt.Errorf("章 %s の脚本生成に失敗しました: %w", chapter.Name, err)
		}

		if err := sr.store.WriteText(rel, ai.StripRenpyFence(raw)); err != nil {
			return err
		}
		generated++
		slog.Info("章の脚本を保存しました", "chapter", chapter.Name, "file", rel)
	}

	if generated == 0 {
		slog.Info("すべての章の脚本がすでに存在するため、脚本生成をスキップしました")
	}
	return nil
}

// ensureIndexScript はキャラクター定義とエントリーラベルを持つ script.rpy を
// 用意します。これは機械的に組み立てられるので、モデルには頼らないのだ。
func (sr *ScriptRunner) ensureIndexScript(sd *domain.StructuredDraft) error {
	if sr.store.Exists(store.ScriptIndexPath) {
		return nil
	}

	var b strings.Builder
	for _, ch := range sd.Characters {
		fmt.Fprintf(&b, "define %s = Character('%s')\n", ch.RenpyName, ch.Name)
	}
	b.WriteString("\nlabel start:\n    jump chapter1\n")

	if err := sr.store.WriteText(store.ScriptIndexPath, b.String()); err != nil {
		return err
	}
	slog.Info("キャラクター定義ファイルを生成しました", "file", store.ScriptIndexPath, "characters", len(sd.Characters))
	return nil
}

// collectPreviousScripts は保存済みの先行章の脚本を連結します。
func (sr *ScriptRunner) collectPreviousScripts(sd *domain.StructuredDraft, upTo int) string {
	var b strings.Builder
	for j := 0; j < upTo; j++ {
		rel := store.ChapterScriptPath(j + 1)
		if !sr.store.Exists(rel) {
			continue
		}
		script, err := sr.store.ReadText(rel)
		if err != nil {
			slog.Warn("先行章の脚本の読み込みに失敗したため、参照から除外します", "file", rel, "error", err)
			continue
		}
		fmt.Fprintf(&b, "[%s Script]:\n%s\n\n", sd.Chapters[j].Name, script)
	}
	return b.String()
}
