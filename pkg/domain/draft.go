package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredDraft は AI が書いた草案をパースした、パイプライン全体の中心データです。
// 以降のすべてのステージはこの構造体を前提に動作します。
type StructuredDraft struct {
	GameName        string      `json:"game_name"`
	WorldView       string      `json:"world_view"`
	Characters      []Character `json:"characters"`
	PlayerCharacter string      `json:"player_character"`
	Chapters        []Chapter   `json:"chapters"`
	Remarks         string      `json:"remarks"`
}

// Character はゲームに登場するキャラクターの設定を保持します。
// RenpyName は Ren'Py スクリプト・立ち絵プロンプト・アセットファイル名を
// 横断するキーなので、一度割り当てたら変更してはいけないのだ。
type Character struct {
	Name        string `json:"name"`
	RenpyName   string `json:"renpy_name"`
	Background  string `json:"background"`
	Personality string `json:"personality"`
	Features    string `json:"features"` // 外見の特徴（髪型・瞳の色・服装など）
}

// Chapter は1章分の情報を保持します。Content は草案パース時はあらすじ、
// 章生成ステージ完了後は本編テキストで上書きされます。
type Chapter struct {
	Name    string `json:"name"`
	Branch  string `json:"branch"` // 所属する分岐ルート名。メインルートなら空でもよい
	Content string `json:"content"`
}

// CharactersMap は renpy_name をキーとしたキャラクターの検索用マップなのだ。
type CharactersMap map[string]Character

// String はキャラクターの情報を文字列で返すのだ。
func (c Character) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.RenpyName)
}

// ParseStructuredDraft はJSONバイト列から草案構造体をパースし、不変条件を検証します。
func ParseStructuredDraft(data []byte) (*StructuredDraft, error) {
	var draft StructuredDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("構造化草案のJSONパースに失敗しました: %w", err)
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return &draft, nil
}

// Validate は草案の不変条件を検証します。
//   - renpy_name はキャラクター間で一意であること
//   - player_character は characters のいずれか1人と一致すること
//   - 章の名前はファイル名のキーになるため一意であること
func (d *StructuredDraft) Validate() error {
	if len(d.Characters) == 0 {
		return fmt.Errorf("草案にキャラクターが1人も含まれていません")
	}
	if len(d.Chapters) == 0 {
		return fmt.Errorf("草案に章が1つも含まれていません")
	}

	seenRenpy := make(map[string]struct{}, len(d.Characters))
	playerFound := false
	for _, c := range d.Characters {
		if strings.TrimSpace(c.RenpyName) == "" {
			return fmt.Errorf("キャラクター '%s' の renpy_name が空です", c.Name)
		}
		if _, dup := seenRenpy[c.RenpyName]; dup {
			return fmt.Errorf("renpy_name '%s' が重複しています", c.RenpyName)
		}
		seenRenpy[c.RenpyName] = struct{}{}
		if c.Name == d.PlayerCharacter {
			playerFound = true
		}
	}
	if !playerFound {
		return fmt.Errorf("player_character '%s' がキャラクター一覧に存在しません", d.PlayerCharacter)
	}

	seenChapter := make(map[string]struct{}, len(d.Chapters))
	for _, ch := range d.Chapters {
		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("名前が空の章があります")
		}
		if _, dup := seenChapter[ch.Name]; dup {
			return fmt.Errorf("章名 '%s' が重複しています", ch.Name)
		}
		seenChapter[ch.Name] = struct{}{}
	}
	return nil
}

// CharactersByRenpyName はスライス形式のデータを検索効率の良いマップ形式に変換するのだ。
func (d *StructuredDraft) CharactersByRenpyName() CharactersMap {
	m := make(CharactersMap, len(d.Characters))
	for _, c := range d.Characters {
		m[c.RenpyName] = c
	}
	return m
}

// FindCharacter は renpy_name からキャラクター情報を特定します。
// 大文字小文字の揺れは AI の出力で頻発するため、小文字でのフォールバックも行います。
func (m CharactersMap) FindCharacter(renpyName string) *Character {
	if m == nil {
		return nil
	}
	if char, ok := m[renpyName]; ok {
		res := char
		return &res
	}
	if char, ok := m[strings.ToLower(renpyName)]; ok {
		res := char
		return &res
	}
	return nil
}
