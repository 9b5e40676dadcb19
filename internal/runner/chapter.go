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

// ChapterRunner は、構造化草案から各章の本文を書かせるステージです。
//
// 章は必ず草案の並び順どおりに生成します。各章の指示文には先行する章の
// 確定済み本文を参照として埋め込むため、順序を崩すと伏線が繋がらないのだ。
type ChapterRunner struct {
	store *store.Store
	model ai.Client // 推論モデル
}

// NewChapterRunner は ChapterRunner の新しいインスタンスを生成して返すのだ。
func NewChapterRunner(st *store.Store, model ai.Client) *ChapterRunner {
	return &ChapterRunner{store: st, model: model}
}

// Run はすべての章の本文を生成します。保存済みの章はスキップします。
func (cr *ChapterRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	draftJSON, err := json.Marshal(sd)
	if err != nil {
		return fmt.Errorf("構造化草案のエンコードに失敗しました: %w", err)
	}

	generated := 0
	for i, chapter := range sd.Chapters {
		rel := store.ChapterPath(chapter.Name)
		if cr.store.Exists(rel) {
			slog.Info("章の本文がすでに存在するため、スキップします", "chapter", chapter.Name)
			continue
		}

		// 先行する章の確定済み本文をまとめて参照に渡すのだ。
		previous := cr.collectPrevious(sd.Chapters[:i])

		slog.Info("章の本文を生成しています...", "chapter", chapter.Name, "index", i+1, "total", len(sd.Chapters))
		content, err := cr.model.Complete(ctx, ai.Request{
			User: prompt.Chapter(chapter.Name, string(draftJSON), previous),
		})
		if err != nil {
			return fmt.Errorf("章 %s の生成に失敗しました: %w", chapter.Name, err)
		}

		if err := cr.store.WriteText(rel, content); err != nil {
			return err
		}
		generated++
		slog.Info("章の本文を保存しました", "chapter", chapter.Name)
	}

	if generated == 0 {
		slog.Info("すべての章の本文がすでに存在するため、章生成をスキップしました")
	}
	return nil
}

// collectPrevious は保存済みの先行章の本文を「[章名]:\n本文」の形で連結します。
func (cr *ChapterRunner) collectPrevious(chapters []domain.Chapter) string {
	var b strings.Builder
	for _, ch := range chapters {
		rel := store.ChapterPath(ch.Name)
		if !cr.store.Exists(rel) {
			continue
		}
		content, err := cr.store.ReadText(rel)
		if err != nil {
			slog.Warn("先行章の読み込みに失敗したため、参照から除外します", "chapter", ch.Name, "error", err)
			continue
		}
		fmt.Fprintf(&b, "[%s]:\n%s\n\n", ch.Name, content)
	}
	return b.String()
}
