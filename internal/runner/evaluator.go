package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/plan"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// Evaluator は、生成済み画像を視覚言語モデルに見せて合否と改善プロンプトを
// 受け取る判定器です。画像自己補正ループの判断はすべてここを通るのだ。
type Evaluator struct {
	store  *store.Store
	vision ai.Client
	draft  *domain.StructuredDraft
	chars  domain.CharactersMap
}

// NewEvaluator は Evaluator の新しいインスタンスを生成して返すのだ。
func NewEvaluator(st *store.Store, vision ai.Client, sd *domain.StructuredDraft) *Evaluator {
	return &Evaluator{
		store:  st,
		vision: vision,
		draft:  sd,
		chars:  sd.CharactersByRenpyName(),
	}
}

// Evaluate は画像1枚を評価して判定を返します。
//
// モデルの応答がパースできない場合でも生成を止めるわけにはいかないので、
// 「現在の画像を受理する」方向に倒した既定の判定を返します。エラーは返しません。
func (ev *Evaluator) Evaluate(ctx context.Context, task plan.Task, promptUsed string, image []byte) domain.Verdict {
	p := prompt.Evaluate(task.Kind, promptUsed, ev.scriptContext(task), ev.outlineContext(task))

	raw, err := ev.vision.Complete(ctx, ai.Request{
		User:     p,
		Images:   [][]byte{image},
		JSONMode: true,
	})
	if err != nil {
		slog.Warn("画像評価の呼び出しに失敗したため、現在の画像を受理します", "image", task.Name, "error", err)
		return domain.FallbackVerdict(promptUsed)
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(ai.StripJSONFence(raw)), &verdict); err != nil {
		slog.Warn("画像評価の応答がパースできなかったため、現在の画像を受理します", "image", task.Name, "error", err)
		return domain.FallbackVerdict(promptUsed)
	}
	return verdict
}

// scriptContext は評価の参照情報となる、対象章の脚本テキストを返します。
// 脚本がなくても評価自体は行えるので、読めなければ空文字でよいのだ。
func (ev *Evaluator) scriptContext(task plan.Task) string {
	rel := store.ChapterScriptPath(task.ChapterNum)
	if !ev.store.Exists(rel) {
		return ""
	}
	script, err := ev.store.ReadText(rel)
	if err != nil {
		slog.Warn("評価用の脚本の読み込みに失敗しました", "file", rel, "error", err)
		return ""
	}
	return script
}

// outlineContext は草案側の参照情報を組み立てます。立ち絵なら対象キャラクターの
// 設定を添え、背景とCGは章のあらすじだけを渡します。
func (ev *Evaluator) outlineContext(task plan.Task) string {
	chapterContent := ""
	if task.ChapterNum >= 1 && task.ChapterNum <= len(ev.draft.Chapters) {
		chapterContent = ev.draft.Chapters[task.ChapterNum-1].Content
	}

	if task.Kind == domain.KindSprite && task.CharacterRenpyName != "" {
		if char := ev.chars.FindCharacter(task.CharacterRenpyName); char != nil {
			var b strings.Builder
			b.WriteString("Character Info:\n")
			fmt.Fprintf(&b, "Name: %s\n", char.Name)
			fmt.Fprintf(&b, "Background: %s\n", char.Background)
			fmt.Fprintf(&b, "Personality: %s\n", char.Personality)
			fmt.Fprintf(&b, "Appearance: %s\n", char.Features)
			fmt.Fprintf(&b, "\nChapter Content: %s", chapterContent)
			return b.String()
		}
	}
	return "Chapter Content: " + chapterContent
}
