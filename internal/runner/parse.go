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

// ParseRunner は、自由記述の草案を構造化JSONに変換するステージです。
// ここで得られる構造化草案が、以降の全ステージの入力になるのだ。
type ParseRunner struct {
	store *store.Store
	model ai.Client // 汎用モデル
}

// NewParseRunner は ParseRunner の新しいインスタンスを生成して返すのだ。
func NewParseRunner(st *store.Store, model ai.Client) *ParseRunner {
	return &ParseRunner{store: st, model: model}
}

// Run は構造化草案を返します。保存済みのJSONがあればそれを読み直します。
func (pr *ParseRunner) Run(ctx context.Context) (*domain.StructuredDraft, error) {
	if pr.store.Exists(store.StructuredDraftPath) {
		slog.Info("構造化草案がすでに存在するため、草案パースをスキップします")
		data, err := pr.store.ReadBytes(store.StructuredDraftPath)
		if err != nil {
			return nil, err
		}
		return domain.ParseStructuredDraft(data)
	}

	draft, err := pr.store.ReadText(store.DraftPath)
	if err != nil {
		return nil, fmt.Errorf("草案の読み込みに失敗しました。先に草案生成ステージを実行してください: %w", err)
	}

	slog.Info("草案を構造化しています...")
	raw, err := pr.model.Complete(ctx, ai.Request{
		System:   prompt.ParseDraft(),
		User:     "Parse the following outline into JSON format:\n\n" + draft,
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("草案の構造化に失敗しました: %w", err)
	}

	sd, err := domain.ParseStructuredDraft([]byte(ai.StripJSONFence(raw)))
	if err != nil {
		return nil, err
	}

	pretty, err := json.MarshalIndent(sd, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("構造化草案のエンコードに失敗しました: %w", err)
	}
	if err := pr.store.WriteBytes(store.StructuredDraftPath, pretty); err != nil {
		return nil, err
	}

	slog.Info("草案の構造化が完了しました",
		"game_name", sd.GameName,
		"characters", len(sd.Characters),
		"chapters", len(sd.Chapters),
	)
	return sd, nil
}
