package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/store"
)

func TestChapterRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("章は並び順どおりに生成され、後の章は前の章の本文を参照する", func(t *testing.T) {
		cfg := newTestConfig(t)
		st := newRunnerStore(t, cfg)
		sd := testDraft()

		var prompts []string
		model := &fakeModel{complete: func(_ context.Context, req ai.Request) (string, error) {
			prompts = append(prompts, req.User)
			return "本文" + string(rune('A'+len(prompts)-1)), nil
		}}

		if err := NewChapterRunner(st, model).Run(ctx, sd); err != nil {
			t.Fatal(err)
		}

		if len(prompts) != 2 {
			t.Fatalf("生成回数が一致しません: %d", len(prompts))
		}
		// 第2章の指示文には、保存済みの第1章本文が入っていなければならないのだ。
		if !strings.Contains(prompts[1], "[prologue]:\n本文A") {
			t.Error("第2章の指示文に第1章の本文が含まれていません")
		}
		if strings.Contains(prompts[0], "previous chapters") {
			t.Error("第1章の指示文に不要な参照が付いています")
		}

		for _, name := range []string{"prologue", "chase"} {
			if !st.Exists(store.ChapterPath(name)) {
				t.Errorf("章 %s が保存されていません", name)
			}
		}
	})

	t.Run("保存済みの章はスキップされる", func(t *testing.T) {
		cfg := newTestConfig(t)
		st := newRunnerStore(t, cfg)
		sd := testDraft()
		if err := st.WriteText(store.ChapterPath("prologue"), "既存の第1章"); err != nil {
			t.Fatal(err)
		}

		model := staticModel("新しい本文")
		if err := NewChapterRunner(st, model).Run(ctx, sd); err != nil {
			t.Fatal(err)
		}
		if model.calls != 1 {
			t.Errorf("スキップされるべき章も生成されています: %d回", model.calls)
		}

		got, err := st.ReadText(store.ChapterPath("prologue"))
		if err != nil {
			t.Fatal(err)
		}
		if got != "既存の第1章" {
			t.Error("既存の章が上書きされています")
		}
	})
}
