package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/store"
)

const testDraftJSON = `{
    "game_name": "暁の図書館",
    "world_view": "霧に沈む学園都市",
    "characters": [
        {"name": "アリス", "renpy_name": "alice", "background": "司書", "personality": "物静か", "features": "銀髪、青い瞳"},
        {"name": "ボブ", "renpy_name": "bob", "background": "転校生", "personality": "好奇心旺盛", "features": "黒髪"}
    ],
    "player_character": "ボブ",
    "chapters": [
        {"name": "prologue", "branch": "", "content": "雨の日の出会い"}
    ],
    "remarks": ""
}`

func newTestPipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WorkDir:   t.TempDir(),
		ExportDir: filepath.Join(t.TempDir(), "game-project"),
	}
}

func newTestStore(t *testing.T, cfg *config.Config) *store.Store {
	t.Helper()
	st, err := store.New(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestExecuteStatus(t *testing.T) {
	t.Run("構造化草案とプロンプトがあれば成功するのだ", func(t *testing.T) {
		cfg := newTestPipelineConfig(t)
		st := newTestStore(t, cfg)
		if err := st.WriteText(store.StructuredDraftPath, testDraftJSON); err != nil {
			t.Fatal(err)
		}

		if err := ExecuteStatus(t.Context(), cfg); err != nil {
			t.Fatalf("ExecuteStatus: %v", err)
		}
	})

	t.Run("構造化草案がなければエラーになるのだ", func(t *testing.T) {
		cfg := newTestPipelineConfig(t)

		if err := ExecuteStatus(t.Context(), cfg); err == nil {
			t.Fatal("構造化草案なしで成功してはいけないのだ")
		}
	})
}

func TestExecuteExportOnly(t *testing.T) {
	cfg := newTestPipelineConfig(t)
	st := newTestStore(t, cfg)
	if err := st.WriteText(store.ScriptIndexPath, "define alice = Character('アリス')\n"); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteText(store.ChapterScriptPath(1), "label chapter1:\n    return\n"); err != nil {
		t.Fatal(err)
	}

	if err := ExecuteExportOnly(t.Context(), cfg); err != nil {
		t.Fatalf("ExecuteExportOnly: %v", err)
	}

	exported := filepath.Join(cfg.ExportDir, "game", "chapter1.rpy")
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("エクスポート先にスクリプトがないのだ: %v", err)
	}

	recorded, err := st.ReadText(store.ExportDirPath)
	if err != nil || recorded != cfg.ExportDir {
		t.Fatalf("export_dir.txt の記録が不正なのだ: %q, %v", recorded, err)
	}
}
