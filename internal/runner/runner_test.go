package runner

import (
	"context"
	"testing"
	"time"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// fakeModel はテスト用のモデルクライアントなのだ。応答は呼び出し側が決める。
type fakeModel struct {
	complete func(ctx context.Context, req ai.Request) (string, error)
	calls    int
}

func (f *fakeModel) Complete(ctx context.Context, req ai.Request) (string, error) {
	f.calls++
	return f.complete(ctx, req)
}

func staticModel(response string) *fakeModel {
	return &fakeModel{complete: func(context.Context, ai.Request) (string, error) {
		return response, nil
	}}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WorkDir:            t.TempDir(),
		MaxConcurrent:      1,
		MaxRefineAttempts:  3,
		EnableEvaluation:   true,
		RateLimit:          time.Millisecond,
		SpriteTemplate:     "testdata/workflow.json",
		BackgroundTemplate: "testdata/workflow.json",
		CGTemplate:         "testdata/workflow.json",
		MusicTemplate:      "testdata/audio_workflow.json",
		SFXTemplate:        "testdata/audio_workflow.json",
	}
}

func newRunnerStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.New(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func testDraft() *domain.StructuredDraft {
	return &domain.StructuredDraft{
		GameName:  "暁の図書館",
		WorldView: "本が禁制品になった近未来",
		Characters: []domain.Character{
			{Name: "アリス", RenpyName: "alice", Background: "司書", Personality: "静か", Features: "銀髪、青い瞳"},
			{Name: "ボブ", RenpyName: "bob", Background: "密売人", Personality: "陽気", Features: "黒髪"},
		},
		PlayerCharacter: "ボブ",
		Chapters: []domain.Chapter{
			{Name: "prologue", Branch: "main", Content: "図書館との出会い"},
			{Name: "chase", Branch: "main", Content: "追跡劇"},
		},
	}
}
