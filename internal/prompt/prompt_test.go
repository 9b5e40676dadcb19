package prompt

import (
	"strings"
	"testing"

	"github.com/shouni/go-novel-kit/pkg/domain"
)

func TestDraft(t *testing.T) {
	p := Draft("星を継ぐ少女たち")
	if !strings.Contains(p, "星を継ぐ少女たち") {
		t.Error("テーマがテンプレートに差し込まれていません")
	}
	if strings.Contains(p, "{game_theme}") {
		t.Error("プレースホルダが残っています")
	}
}

func TestChapter(t *testing.T) {
	t.Run("最初の章は参照情報なし", func(t *testing.T) {
		p := Chapter("第一章", `{"game_name":"test"}`, "")
		if strings.Contains(p, "previous chapters") {
			t.Error("前章の参照が不要なのに付いています")
		}
	})

	t.Run("二章目以降は前章本文が付く", func(t *testing.T) {
		p := Chapter("第二章", `{"game_name":"test"}`, "[第一章]:\n昔々……")
		if !strings.Contains(p, "昔々……") {
			t.Error("前章の本文が含まれていません")
		}
	})
}

func TestChapterScript(t *testing.T) {
	p := ChapterScript("第二章", `{}`, "章の本文", "define a = Character('アリス')", "[第一章 Script]:\nlabel chapter1:")
	for _, want := range []string{"第二章", "章の本文", "define a = Character('アリス')", "label chapter1:"} {
		if !strings.Contains(p, want) {
			t.Errorf("指示文に %q が含まれていません", want)
		}
	}
	if strings.Contains(p, "{chapter_content}") {
		t.Error("プレースホルダが残っています")
	}
}

func TestImageSystem(t *testing.T) {
	for _, kind := range domain.ImageKinds {
		if _, err := ImageSystem(kind); err != nil {
			t.Errorf("%s のシステムプロンプト取得に失敗しました: %v", kind, err)
		}
	}
	if _, err := ImageSystem(domain.KindMusic); err == nil {
		t.Error("音声種別でエラーになりません")
	}
}

func TestImageUser(t *testing.T) {
	t.Run("立ち絵はキャラクター設定を添える", func(t *testing.T) {
		p := ImageUser(domain.KindSprite, "world", "chars", "script")
		if !strings.Contains(p, "Character Setting: chars") {
			t.Error("キャラクター設定がありません")
		}
		if strings.Contains(p, "World View") {
			t.Error("立ち絵に世界観は不要です")
		}
	})

	t.Run("CGは世界観とキャラクター設定の両方を添える", func(t *testing.T) {
		p := ImageUser(domain.KindCG, "world", "chars", "script")
		if !strings.Contains(p, "World View Setting: world") || !strings.Contains(p, "Character Setting: chars") {
			t.Errorf("参照情報が欠けています: %s", p)
		}
	})
}

func TestAudio(t *testing.T) {
	p, err := Audio(domain.KindSFX, "play sound door_creak")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(p, "play sound door_creak") {
		t.Error("脚本が指示文に含まれていません")
	}
	if _, err := Audio(domain.KindSprite, "x"); err == nil {
		t.Error("画像種別でエラーになりません")
	}
}

func TestEvaluate(t *testing.T) {
	p := Evaluate(domain.KindBackground, "no humans, street", "scene bg street", "近未来の都市")
	for _, want := range []string{"background", "no humans, street", "scene bg street", "近未来の都市"} {
		if !strings.Contains(p, want) {
			t.Errorf("指示文に %q が含まれていません", want)
		}
	}
}

func TestLintFix(t *testing.T) {
	p := LintFix("chapter1.rpy", "- line 3: undefined character", "label chapter1:\n    e \"hi\"")
	if !strings.Contains(p, "chapter1.rpy") || !strings.Contains(p, "undefined character") {
		t.Error("修正指示に必要な情報が欠けています")
	}
}
