package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shouni/go-novel-kit/internal/ai"
	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/prompt"
	"github.com/shouni/go-novel-kit/internal/store"
)

// LintIssue は Lint 出力から抽出されたエラー1件です。
// 行番号はモデルが数値でも文字列でも返しうるため、型を固定しません。
type LintIssue struct {
	File        string `json:"file"`
	Line        any    `json:"line,omitempty"`
	Description string `json:"description"`
	ErrorType   string `json:"error_type"`
}

// LintRunner は、エクスポート済みプロジェクトに Ren'Py の Lint をかけ、
// 検出された問題をモデルに修正させるステージです。
//
// Lint の生出力・抽出済みエラー・修正はすべて作業ディレクトリに残るため、
// 途中で落ちても再実行で続きから走ります。修正前のファイルは .bak に退避します。
type LintRunner struct {
	store *store.Store
	model ai.Client // Lintモデル
	cfg   *config.Config

	// runLint は Ren'Py の lint コマンドを実行して出力を返す処理。
	// SDK 無しでテストするために差し替え可能にしてあるのだ。
	runLint func(ctx context.Context, gameDir string) (string, error)
}

// NewLintRunner は LintRunner の新しいインスタンスを生成して返すのだ。
func NewLintRunner(st *store.Store, model ai.Client, cfg *config.Config) *LintRunner {
	lr := &LintRunner{store: st, model: model, cfg: cfg}
	lr.runLint = lr.execRenpyLint
	return lr
}

// Run は Lint 検査と修正の一連の流れを実行します。
func (lr *LintRunner) Run(ctx context.Context) error {
	gameDir, err := lr.resolveGameDir()
	if err != nil {
		return err
	}
	slog.Info("Lint 検査と修正を開始します", "project", gameDir)

	output, err := lr.ensureLintOutput(ctx, gameDir)
	if err != nil {
		return err
	}

	issues, err := lr.ensureParsedIssues(ctx, output)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		slog.Info("Lint で問題は検出されませんでした")
		return nil
	}

	if err := lr.fixIssues(ctx, gameDir, issues); err != nil {
		return err
	}

	// 修正後にもう一度 Lint をかけて、結果を検証用に残すのだ。
	validation, err := lr.runLint(ctx, gameDir)
	if err != nil {
		slog.Warn("修正結果の検証 Lint に失敗しました", "error", err)
		return nil
	}
	if err := lr.store.WriteText(store.LintValidationPath, validation); err != nil {
		return err
	}
	slog.Info("修正結果の検証 Lint が完了しました", "output", store.LintValidationPath)
	return nil
}

// resolveGameDir は検査対象のプロジェクトを特定します。
// エクスポートステージの記録を最優先し、無ければ設定の既定値を使います。
func (lr *LintRunner) resolveGameDir() (string, error) {
	if lr.store.Exists(store.ExportDirPath) {
		dir, err := lr.store.ReadText(store.ExportDirPath)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(dir), nil
	}
	return lr.cfg.ExportDir, nil
}

// ensureLintOutput は Lint の生出力を用意します。保存済みならそれを使うのだ。
func (lr *LintRunner) ensureLintOutput(ctx context.Context, gameDir string) (string, error) {
	if lr.store.Exists(store.LintOutputPath) {
		slog.Info("Lint 出力がすでに存在するため、Lint 実行をスキップします")
		return lr.store.ReadText(store.LintOutputPath)
	}

	if lr.cfg.RenpyCommand == "" {
		return "", fmt.Errorf("RENPY_COMMAND が設定されていないため、Lint を実行できません")
	}

	slog.Info("Ren'Py Lint を実行しています...", "project", gameDir)
	output, err := lr.runLint(ctx, gameDir)
	if err != nil {
		return "", fmt.Errorf("Lint の実行に失敗しました: %w", err)
	}
	if err := lr.store.WriteText(store.LintOutputPath, output); err != nil {
		return "", err
	}
	return output, nil
}

// ensureParsedIssues は Lint 出力からエラー一覧を抽出します。保存済みならそれを使うのだ。
func (lr *LintRunner) ensureParsedIssues(ctx context.Context, lintOutput string) ([]LintIssue, error) {
	if lr.store.Exists(store.LintErrorsPath) {
		slog.Info("抽出済みのエラー情報が存在するため、パースをスキップします")
		data, err := lr.store.ReadBytes(store.LintErrorsPath)
		if err != nil {
			return nil, err
		}
		var issues []LintIssue
		if err := json.Unmarshal(data, &issues); err != nil {
			return nil, fmt.Errorf("保存済みエラー情報のパースに失敗しました: %w", err)
		}
		return issues, nil
	}

	slog.Info("Lint 出力を解析しています...")
	raw, err := lr.model.Complete(ctx, ai.Request{
		User:     prompt.LintParse(lintOutput),
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("Lint 出力の解析に失敗しました: %w", err)
	}

	var issues []LintIssue
	if err := json.Unmarshal([]byte(ai.StripJSONFence(raw)), &issues); err != nil {
		return nil, fmt.Errorf("モデル応答のパースに失敗しました: %w", err)
	}

	pretty, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := lr.store.WriteBytes(store.LintErrorsPath, pretty); err != nil {
		return nil, err
	}
	slog.Info("Lint エラーを抽出しました", "count", len(issues))
	return issues, nil
}

// fixIssues はファイル単位にエラーをまとめ、1ファイルずつモデルに修正させます。
func (lr *LintRunner) fixIssues(ctx context.Context, gameDir string, issues []LintIssue) error {
	byFile := map[string][]LintIssue{}
	var order []string
	for _, issue := range issues {
		if issue.File == "" {
			continue
		}
		if _, seen := byFile[issue.File]; !seen {
			order = append(order, issue.File)
		}
		byFile[issue.File] = append(byFile[issue.File], issue)
	}

	slog.Info("修正対象のファイルを特定しました", "files", len(order))

	for _, file := range order {
		if err := lr.fixFile(ctx, gameDir, file, byFile[file]); err != nil {
			slog.Error("ファイルの修正に失敗しました", "file", file, "error", err)
		}
	}
	return nil
}

// fixFile は脚本ファイル1つをモデルに修正させ、元のファイルを .bak に退避します。
func (lr *LintRunner) fixFile(ctx context.Context, gameDir, file string, issues []LintIssue) error {
	// Lint はプロジェクトルートからの "game/xxx.rpy" 形式で報告してくるのだ。
	relative := strings.TrimPrefix(file, "game/")
	fullPath := filepath.Join(gameDir, "game", relative)

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("修正対象ファイルが見つかりません (%s): %w", fullPath, err)
	}

	var descriptions []string
	for _, issue := range issues {
		desc := issue.Description
		if desc == "" {
			desc = "Unknown error"
		}
		descriptions = append(descriptions, "- "+desc)
	}

	slog.Info("ファイルを修正しています...", "file", relative, "issues", len(issues))
	raw, err := lr.model.Complete(ctx, ai.Request{
		User: prompt.LintFix(relative, strings.Join(descriptions, "\n"), string(content)),
	})
	if err != nil {
		return fmt.Errorf("修正の生成に失敗しました: %w", err)
	}
	fixed := ai.StripRenpyFence(raw)

	if err := os.WriteFile(fullPath+".bak", content, 0o644); err != nil {
		return fmt.Errorf("バックアップの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(fixed), 0o644); err != nil {
		return fmt.Errorf("修正内容の書き込みに失敗しました: %w", err)
	}

	// 作業ディレクトリ側の脚本も同期して、次回のエクスポートで巻き戻らないようにするのだ。
	scriptRel := store.ScriptsDir + "/" + filepath.Base(fullPath)
	if lr.store.Exists(scriptRel) {
		if err := lr.store.WriteText(scriptRel, fixed); err != nil {
			return err
		}
		slog.Info("作業ディレクトリの脚本を同期しました", "file", scriptRel)
	}

	slog.Info("ファイルを修正しました", "file", relative, "backup", filepath.Base(fullPath)+".bak")
	return nil
}

// execRenpyLint は Ren'Py SDK の lint コマンドを実行して全出力を返します。
// Lint は問題を見つけると非ゼロ終了するため、終了コードは失敗扱いにしません。
func (lr *LintRunner) execRenpyLint(ctx context.Context, gameDir string) (string, error) {
	cmd := exec.CommandContext(ctx, lr.cfg.RenpyCommand, gameDir, "lint", "--all-problems")
	out, err := cmd.CombinedOutput()
	if len(out) == 0 && err != nil {
		return "", err
	}
	return string(out), nil
}
