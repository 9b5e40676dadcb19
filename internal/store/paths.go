package store

import (
	"fmt"

	"github.com/shouni/go-novel-kit/pkg/domain"
)

// 作業ディレクトリ内のファイル配置はここに集約します。
// この配置そのものが再開プロトコルの一部であり、勝手に変えると
// 既存の作業ディレクトリが再開できなくなるのだ。
const (
	ThemePath           = "game_theme.txt"
	DraftPath           = "draft.txt"
	StructuredDraftPath = "structured_draft.json"
	ScriptIndexPath     = "scripts/script.rpy"
	ExportDirPath       = "export_dir.txt"
	LintOutputPath      = "lint.txt"
	LintErrorsPath      = "lint_errors.json"
	LintValidationPath  = "lint_validation.txt"

	ChaptersDir   = "chapters"
	ScriptsDir    = "scripts"
	ImagesDir     = "images"
	RefineDir     = "refine"
	CandidatesDir = "candidates"
	AudioDir      = "audio"
)

// ChapterPath は章テキストの置き場所を返します。章名がそのままファイル名です。
func ChapterPath(name string) string {
	return fmt.Sprintf("%s/%s.txt", ChaptersDir, name)
}

// ChapterScriptPath は章ごとの Ren'Py 脚本の置き場所を返します。番号は1始まりです。
func ChapterScriptPath(num int) string {
	return fmt.Sprintf("%s/chapter%d.rpy", ScriptsDir, num)
}

// ImagePromptPath は章×種別ごとの画像プロンプト一覧の置き場所を返します。
func ImagePromptPath(num int, kind domain.TaskKind) string {
	return fmt.Sprintf("prompts/image/chapter%d_%s_prompt.json", num, kind)
}

// AudioPromptPath は章×種別ごとの音声プロンプト一覧の置き場所を返します。
func AudioPromptPath(num int, kind domain.TaskKind) string {
	return fmt.Sprintf("prompts/audio/chapter%d_%s_prompt.json", num, kind)
}

// ImagePath は採用済み画像の最終的な置き場所を返します。
func ImagePath(name string) string {
	return fmt.Sprintf("%s/%s.webp", ImagesDir, name)
}

// RefineImagePath は自己補正ループ中の試行画像の置き場所を返します。
// 試行番号は1始まりで、採用されなかった版もすべてここに残ります。
func RefineImagePath(name string, attempt int) string {
	return fmt.Sprintf("%s/%s_%d.webp", RefineDir, name, attempt)
}

// RefineLogPath は試行画像と対になる評価ログの置き場所を返すのだ。
func RefineLogPath(name string, attempt int) string {
	return fmt.Sprintf("%s/%s_%d.txt", RefineDir, name, attempt)
}

// CandidatePath はバックエンドから取得した直後の候補画像の一時置き場です。
func CandidatePath(name string) string {
	return fmt.Sprintf("%s/%s.webp", CandidatesDir, name)
}

// AudioPath は変換済み音声の最終的な置き場所を返します。
func AudioPath(name string) string {
	return fmt.Sprintf("%s/%s.opus", AudioDir, name)
}

// AudioRawPath は変換前の生出力（FLAC）の一時置き場です。
func AudioRawPath(name string) string {
	return fmt.Sprintf("%s/%s.flac", AudioDir, name)
}
