package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
)

// DraftRunner は、テーマから物語全体のあらすじ（草案）を書かせるステージです。
type DraftRunner struct {
	store *store.Store
	model ai.Client // 推論モデル
}

// NewDraftRunner は DraftRunner の新しいインスタンスを生成して返すのだ。
func NewDraftRunner(st *store.Store, model ai.Client) *DraftRunner {
	return &DraftRunner{store: st, model: model}
}

// Run は草案テキストを生成して返します。保存済みならそれをそのまま返すのだ。
func (dr *DraftRunner) Run(ctx context.Context, gameTheme string) (string, error) {
	if dr.store.Exists(store.DraftPath) {
		slog.Info("草案ファイルがすでに存在するため、草案生成をスキップします")
		return dr.store.ReadText(store.DraftPath)
	}

	slog.Info("草案を生成しています...")
	draft, err := dr.model.Complete(ctx, ai.Request{
		User: prompt.Draft(gameTheme),
	})
	if err != nil {
		return "", fmt.Errorf("草案の生成に失敗しました: %w", err)
	}

	if err := dr.store.WriteText(store.DraftPath, draft); err != nil {
		return "", err
	}
	slog.Info("草案の生成が完了しました", "length", len(draft))
	return draft, nil
}
