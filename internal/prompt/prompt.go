// Package prompt は、各ステージが言語モデルに渡す指示文のテンプレートを束ねます。
// テンプレート本体は templates/ 以下の Markdown に置き、embed で取り込むのだ。
// 生成対象の素材名はそのまま Ren'Py の素材キーになるため、テンプレート中の
// 命名規約（bg 接頭辞、アンダースコアとスペースの扱い）を崩してはいけない。
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shouni/go-novel-kit/pkg/domain"
)

//go:embed templates/draft.md
var draftTemplate string

//go:embed templates/parse_draft.md
var parseDraftTemplate string

//go:embed templates/chapter.md
var chapterTemplate string

//go:embed templates/script.md
var scriptTemplate string

//go:embed templates/sprite.md
var spriteTemplate string

//go:embed templates/background.md
var backgroundTemplate string

//go:embed templates/cg.md
var cgTemplate string

//go:embed templates/music.md
var musicTemplate string

//go:embed templates/sfx.md
var sfxTemplate string

//go:embed templates/evaluate.md
var evaluateTemplate string

//go:embed templates/lint_parse.md
var lintParseTemplate string

//go:embed templates/lint_fix.md
var lintFixTemplate string

// imageSystemTemplates は画像種別とシステムプロンプトを紐づけるマップなのだ。
var imageSystemTemplates = map[domain.TaskKind]string{
	domain.KindSprite:     spriteTemplate,
	domain.KindBackground: backgroundTemplate,
	domain.KindCG:         cgTemplate,
}

// audioSystemTemplates は音声種別とシステムプロンプトを紐づけるマップなのだ。
var audioSystemTemplates = map[domain.TaskKind]string{
	domain.KindMusic: musicTemplate,
	domain.KindSFX:   sfxTemplate,
}

// Draft はテーマからあらすじを書かせる指示文を組み立てます。
func Draft(gameTheme string) string {
	return strings.ReplaceAll(draftTemplate, "{game_theme}", gameTheme)
}

// ParseDraft はあらすじを構造化 JSON に変換させるシステムプロンプトを返します。
func ParseDraft() string {
	return parseDraftTemplate
}

// Chapter は1章分の本文を書かせる指示文を組み立てます。
// previousChapters が空でなければ、前の章の本文を参照情報として末尾に足すのだ。
func Chapter(chapterName, draftJSON, previousChapters string) string {
	p := strings.NewReplacer(
		"{chapter_name}", chapterName,
		"{draft_content}", draftJSON,
	).Replace(chapterTemplate)

	if previousChapters != "" {
		p += "\n\nReference content from previous chapters:\n" + previousChapters
	}
	return p
}

// ChapterScript は章本文を Ren'Py 脚本に書き換えさせる指示文を組み立てます。
// キャラクター定義と、すでに書かれた章脚本を参照情報として渡します。
func ChapterScript(chapterName, draftJSON, chapterContent, charactersDefinition, previousScripts string) string {
	p := strings.NewReplacer(
		"{chapter_name}", chapterName,
		"{draft_content}", draftJSON,
		"{chapter_content}", chapterContent,
	).Replace(scriptTemplate)

	p += "\n\nReference character definitions in the outline (do not redefine these characters):\n" + charactersDefinition
	if previousScripts != "" {
		p += "\n\nRefer to the script format and style of previous chapters:\n" + previousScripts
	}
	return p
}

// ImageSystem は画像プロンプト生成のシステムプロンプトを返します。
func ImageSystem(kind domain.TaskKind) (string, error) {
	content, ok := imageSystemTemplates[kind]
	if !ok {
		return "", fmt.Errorf("サポートされていない画像種別: '%s'", kind)
	}
	return content, nil
}

// ImageUser は画像プロンプト生成のユーザーメッセージを組み立てます。
// 種別ごとに必要な設定情報が違うのだ。立ち絵はキャラクター設定、
// 背景は世界観、CG は両方を脚本に添える。
func ImageUser(kind domain.TaskKind, worldViewJSON, charactersJSON, script string) string {
	switch kind {
	case domain.KindSprite:
		return fmt.Sprintf("Character Setting: %s\n\nRen'Py Script: %s", charactersJSON, script)
	case domain.KindCG:
		return fmt.Sprintf("World View Setting: %s\n\nCharacter Setting: %s\n\nRen'Py Script: %s", worldViewJSON, charactersJSON, script)
	default:
		return fmt.Sprintf("World View Setting: %s\n\nRen'Py Script: %s", worldViewJSON, script)
	}
}

// Audio は音声プロンプト生成の指示文を組み立てます。
func Audio(kind domain.TaskKind, script string) (string, error) {
	content, ok := audioSystemTemplates[kind]
	if !ok {
		return "", fmt.Errorf("サポートされていない音声種別: '%s'", kind)
	}
	return fmt.Sprintf("%s\n\nRen'Py script: %s", content, script), nil
}

// Evaluate は生成済み画像を評価させる指示文を組み立てます。
func Evaluate(kind domain.TaskKind, sdPrompt, scriptContent, outlineContent string) string {
	return strings.NewReplacer(
		"{mode}", string(kind),
		"{sd_prompts}", sdPrompt,
		"{script_content}", scriptContent,
		"{outline_content}", outlineContent,
	).Replace(evaluateTemplate)
}

// LintParse は Ren'Py Lint の出力を構造化させる指示文を組み立てます。
func LintParse(lintOutput string) string {
	return strings.ReplaceAll(lintParseTemplate, "{lint_content}", lintOutput)
}

// LintFix は脚本ファイル1つ分の修正を指示する文を組み立てます。
func LintFix(fileName, errorDescriptions, fileContent string) string {
	return strings.NewReplacer(
		"{file_name}", fileName,
		"{error_descriptions}", errorDescriptions,
		"{file_content}", fileContent,
	).Replace(lintFixTemplate)
}
