// Package runner は、ビジュアルノベル生成パイプラインの各ステージの実体を持ちます。
// どのステージも「成果物があれば何もしない」を徹底していて、途中で落ちても
// 同じコマンドをもう一度叩けば続きから走るのだ。
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shouni/go-novel-kit/internal/store"
)

// ThemeRunner は、ゲームのテーマの入力と前回テーマの再利用判断を担うステージです。
// 対話の入出力は差し替え可能にしてあります。
type ThemeRunner struct {
	store *store.Store
	in    io.Reader
	out   io.Writer
}

// NewThemeRunner は ThemeRunner の新しいインスタンスを生成して返すのだ。
func NewThemeRunner(st *store.Store, in io.Reader, out io.Writer) *ThemeRunner {
	return &ThemeRunner{store: st, in: in, out: out}
}

// Run はテーマを決定して返します。前回のテーマが残っていれば再利用するか尋ね、
// 再利用しないと答えた場合は作業ディレクトリを丸ごと初期化してから
// 新しいテーマを聞き直すのだ。
func (tr *ThemeRunner) Run(ctx context.Context) (string, error) {
	reader := bufio.NewReader(tr.in)

	if tr.store.Exists(store.ThemePath) {
		previous, err := tr.store.ReadText(store.ThemePath)
		if err != nil {
			return "", err
		}
		previous = strings.TrimSpace(previous)

		fmt.Fprintf(tr.out, "前回のテーマが見つかりました: %s\n", previous)
		fmt.Fprint(tr.out, "前回のテーマを使いますか？ 使わない場合は作業ディレクトリを初期化します [Y/n]: ")

		answer, err := readLine(reader)
		if err != nil {
			return "", err
		}
		if useAnswer(answer) {
			slog.Info("前回のテーマを再利用して、足りない成果物だけを生成します", "theme", previous)
			return previous, nil
		}

		slog.Warn("作業ディレクトリを初期化して最初からやり直すのだ")
		if err := tr.store.Reset(); err != nil {
			return "", err
		}
	}

	fmt.Fprint(tr.out, "ゲームのテーマと補足情報を入力してください: ")
	theme, err := readLine(reader)
	if err != nil {
		return "", err
	}
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", fmt.Errorf("テーマが入力されませんでした")
	}

	if err := tr.store.WriteText(store.ThemePath, theme); err != nil {
		return "", err
	}
	slog.Info("テーマを保存しました", "theme", theme)
	return theme, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("入力の読み取りに失敗しました: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// useAnswer は再利用確認への回答を解釈します。既定は「再利用する」です。
func useAnswer(answer string) bool {
	switch strings.ToLower(answer) {
	case "n", "no":
		return false
	default:
		return true
	}
}
