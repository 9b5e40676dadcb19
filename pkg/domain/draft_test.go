package domain

import (
	"testing"
)

const validDraftJSON = `{
	"game_name": "星降る夜のカフェ",
	"world_view": "近未来の港町にある小さなカフェ",
	"characters": [
		{
			"name": "エレン",
			"renpy_name": "ellen",
			"background": "カフェの店主",
			"personality": "穏やかで少しお節介",
			"features": "銀髪のロングヘア、緑の瞳"
		},
		{
			"name": "ボブ",
			"renpy_name": "bob",
			"background": "常連客の学生",
			"personality": "人見知り",
			"features": "黒髪短髪、眼鏡"
		}
	],
	"player_character": "ボブ",
	"chapters": [
		{"name": "出会い", "branch": "", "content": "二人が出会う"},
		{"name": "雨の日", "branch": "ルートA", "content": "雨宿りの話"}
	],
	"remarks": ""
}`

func TestParseStructuredDraft(t *testing.T) {
	t.Run("正常なJSONからパースできるのだ", func(t *testing.T) {
		draft, err := ParseStructuredDraft([]byte(validDraftJSON))
		if err != nil {
			t.Fatalf("正常なJSONでエラーが発生しました: %v", err)
		}
		if draft.GameName != "星降る夜のカフェ" {
			t.Errorf("game_name が違うのだ: %s", draft.GameName)
		}
		if len(draft.Characters) != 2 || len(draft.Chapters) != 2 {
			t.Errorf("キャラクター数または章数が正しくパースされていないのだ: %+v", draft)
		}
	})

	t.Run("壊れたJSONはエラーになるのだ", func(t *testing.T) {
		if _, err := ParseStructuredDraft([]byte(`{"game_name":`)); err == nil {
			t.Error("壊れたJSONなのにエラーが返らなかったのだ")
		}
	})
}

func TestStructuredDraft_Validate(t *testing.T) {
	base := func() *StructuredDraft {
		d, err := ParseStructuredDraft([]byte(validDraftJSON))
		if err != nil {
			t.Fatalf("前提データの準備に失敗: %v", err)
		}
		return d
	}

	t.Run("player_character が存在しないとエラーなのだ", func(t *testing.T) {
		d := base()
		d.PlayerCharacter = "存在しない人"
		if err := d.Validate(); err == nil {
			t.Error("不正な player_character が検出されなかったのだ")
		}
	})

	t.Run("renpy_name の重複はエラーなのだ", func(t *testing.T) {
		d := base()
		d.Characters[1].RenpyName = d.Characters[0].RenpyName
		if err := d.Validate(); err == nil {
			t.Error("renpy_name の重複が検出されなかったのだ")
		}
	})

	t.Run("章名の重複はエラーなのだ", func(t *testing.T) {
		d := base()
		d.Chapters[1].Name = d.Chapters[0].Name
		if err := d.Validate(); err == nil {
			t.Error("章名の重複が検出されなかったのだ")
		}
	})
}

func TestCharactersMap_FindCharacter(t *testing.T) {
	draft, err := ParseStructuredDraft([]byte(validDraftJSON))
	if err != nil {
		t.Fatalf("前提データの準備に失敗: %v", err)
	}
	m := draft.CharactersByRenpyName()

	t.Run("renpy_name で引けるのだ", func(t *testing.T) {
		if c := m.FindCharacter("ellen"); c == nil || c.Name != "エレン" {
			t.Errorf("ellen を引けなかったのだ: %+v", c)
		}
	})

	t.Run("大文字の揺れも小文字で引けるのだ", func(t *testing.T) {
		if c := m.FindCharacter("Ellen"); c != nil && c.Name != "エレン" {
			t.Errorf("想定外のキャラクターが返ったのだ: %+v", c)
		}
	})

	t.Run("未登録なら nil なのだ", func(t *testing.T) {
		if c := m.FindCharacter("ghost"); c != nil {
			t.Errorf("未登録キーで非nilが返ったのだ: %+v", c)
		}
	})
}

func TestFallbackVerdict(t *testing.T) {
	v := FallbackVerdict("1girl, silver hair, cafe interior")
	if !v.Acceptable {
		t.Error("フォールバック判定は受理側に倒れるべきなのだ")
	}
	if len(v.Issues) != 0 {
		t.Errorf("フォールバック判定の issues は空であるべきなのだ: %v", v.Issues)
	}
	if v.OptimizedPrompt != "1girl, silver hair, cafe interior" {
		t.Errorf("optimized_prompt は入力プロンプトと一致すべきなのだ: %s", v.OptimizedPrompt)
	}
}
