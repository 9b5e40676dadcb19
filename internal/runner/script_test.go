package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/store"
)

func writeChapters(t *testing.T, st *store.Store) {
	t.Helper()
	if err := st.WriteText(store.ChapterPath("prologue"), "第1章の本文"); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteText(store.ChapterPath("chase"), "第2章の本文"); err != nil {
		t.Fatal(err)
	}
}

func TestScriptRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("キャラクター定義とエントリーラベルが生成される", func(t *testing.T) {
		cfg := newTestConfig(t)
		st := newRunnerStore(t, cfg)
		writeChapters(t, st)

		model := staticModel("label chapter1:\n    \"……\"\n    jump chapter2")
		if err := NewScriptRunner(st, model).Run(ctx, testDraft()); err != nil {
			t.Fatal(err)
		}

		index, err := st.ReadText(store.ScriptIndexPath)
		if err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{
			"define alice = Character('アリス')",
			"define bob = Character('ボブ')",
			"label start:\n    jump chapter1",
		} {
			if !strings.Contains(index, want) {
				t.Errorf("script.rpy に %q が含まれていません:\n%s", want, index)
			}
		}
	})

	t.Run("章脚本は1始まりの番号で保存され、後の章は前の脚本を参照する", func(t *testing.T) {
		cfg := newTestConfig(t)
		st := newRunnerStore(t, cfg)
		writeChapters(t, st)

		var prompts []string
		model := &fakeModel{complete: func(_ context.Context, req ai.Request) (string, error) {
			prompts = append(prompts, req.User)
			return "```renpy\nlabel chapter" + string(rune('0'+len(prompts))) + ":\n    \"本文\"\n```", nil
		}}

		if err := NewScriptRunner(st, model).Run(ctx, testDraft()); err != nil {
			t.Fatal(err)
		}

		first, err := st.ReadText(store.ChapterScriptPath(1))
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(first, "```") {
			t.Error("コードフェンスが剥がされていません")
		}
		if !st.Exists(store.ChapterScriptPath(2)) {
			t.Error("第2章の脚本が保存されていません")
		}

		// 第2章の指示文には第1章の確定済み脚本が入るのだ。
		if !strings.Contains(prompts[1], "[prologue Script]:\nlabel chapter1:") {
			t.Error("第2章の指示文に第1章の脚本が含まれていません")
		}
		// どの指示文にもキャラクター定義の参照が付くのだ。
		for i, p := range prompts {
			if !strings.Contains(p, "define alice = Character('アリス')") {
				t.Errorf("指示文 %d にキャラクター定義がありません", i+1)
			}
		}
	})

	t.Run("本文の無い章は脚本生成をスキップする", func(t *testing.T) {
		cfg := newTestConfig(t)
		st := newRunnerStore(t, cfg)
		if err := st.WriteText(store.ChapterPath("prologue"), "第1章の本文"); err != nil {
			t.Fatal(err)
		}
		// chase の本文は用意しないのだ。

		model := staticModel("label chapter1:\n    \"本文\"")
		if err := NewScriptRunner(st, model).Run(ctx, testDraft()); err != nil {
			t.Fatal(err)
		}
		if model.calls != 1 {
			t.Errorf("本文の無い章まで生成されています: %d回", model.calls)
		}
		if st.Exists(store.ChapterScriptPath(2)) {
			t.Error("本文の無い章の脚本が生えています")
		}
	})
}
