package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/go-novel-kit/internal/store"
)

// ExportRunner は、完成したアセット一式をゲームプロジェクトの game/ 配下へ
// 書き出すステージです。脚本は古い章ファイルとコンパイル済みキャッシュを
// 消してから入れ替え、画像と音声はディレクトリごと作り直すのだ。
type ExportRunner struct {
	store *store.Store
}

// NewExportRunner は ExportRunner の新しいインスタンスを生成して返すのだ。
func NewExportRunner(st *store.Store) *ExportRunner {
	return &ExportRunner{store: st}
}

// Run はアセットを targetDir/game/ へエクスポートし、エクスポート先を記録します。
func (er *ExportRunner) Run(ctx context.Context, targetDir string) error {
	gameDir := filepath.Join(targetDir, "game")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return fmt.Errorf("エクスポート先の作成に失敗しました (%s): %w", gameDir, err)
	}

	if err := er.exportScripts(gameDir); err != nil {
		return err
	}
	if err := er.replaceDir(er.store.Abs(store.ImagesDir), filepath.Join(gameDir, "images")); err != nil {
		return err
	}
	if err := er.replaceDir(er.store.Abs(store.AudioDir), filepath.Join(gameDir, "audio")); err != nil {
		return err
	}

	// 後続の Lint ステージがエクスポート先を特定できるように記録しておくのだ。
	if err := er.store.WriteText(store.ExportDirPath, targetDir); err != nil {
		return err
	}

	slog.Info("ゲームアセットのエクスポートが完了しました", "target", targetDir)
	return nil
}

// exportScripts は脚本ファイルを入れ替えます。生成済みの章構成は実行のたびに
// 変わりうるので、こちら由来の古いファイルは必ず先に消します。
func (er *ExportRunner) exportScripts(gameDir string) error {
	scriptsDir := er.store.Abs(store.ScriptsDir)
	if _, err := os.Stat(scriptsDir); os.IsNotExist(err) {
		slog.Warn("脚本ディレクトリが存在しないため、脚本のエクスポートをスキップします")
		return nil
	}

	entries, err := os.ReadDir(gameDir)
	if err != nil {
		return fmt.Errorf("エクスポート先の走査に失敗しました: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		stale := (strings.HasPrefix(name, "chapter") && strings.HasSuffix(name, ".rpy")) ||
			strings.HasSuffix(name, ".rpyc")
		if !stale {
			continue
		}
		if err := os.Remove(filepath.Join(gameDir, name)); err != nil {
			return fmt.Errorf("古い脚本ファイルの削除に失敗しました (%s): %w", name, err)
		}
		slog.Info("古い脚本ファイルを削除しました", "file", name)
	}

	sources, err := os.ReadDir(scriptsDir)
	if err != nil {
		return fmt.Errorf("脚本ディレクトリの走査に失敗しました: %w", err)
	}
	copied := 0
	for _, entry := range sources {
		if !strings.HasSuffix(entry.Name(), ".rpy") {
			continue
		}
		src := filepath.Join(scriptsDir, entry.Name())
		dst := filepath.Join(gameDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return err
		}
		copied++
	}
	slog.Info("脚本ファイルをエクスポートしました", "files", copied)
	return nil
}

// replaceDir はエクスポート先のディレクトリを作り直し、ソースのファイルを写します。
// ソースが無い場合でも空のディレクトリは用意するのだ。
func (er *ExportRunner) replaceDir(srcDir, dstDir string) error {
	if err := os.RemoveAll(dstDir); err != nil {
		return fmt.Errorf("古いディレクトリの削除に失敗しました (%s): %w", dstDir, err)
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました (%s): %w", dstDir, err)
	}

	entries, err := os.ReadDir(srcDir)
	if os.IsNotExist(err) {
		slog.Warn("ソースディレクトリが存在しないため、コピーをスキップします", "dir", srcDir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("ソースディレクトリの走査に失敗しました (%s): %w", srcDir, err)
	}

	copied := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(srcDir, entry.Name()), filepath.Join(dstDir, entry.Name())); err != nil {
			return err
		}
		copied++
	}
	slog.Info("アセットをエクスポートしました", "dir", filepath.Base(dstDir), "files", copied)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("コピー元のオープンに失敗しました (%s): %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("コピー先の作成に失敗しました (%s): %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("ファイルのコピーに失敗しました (%s): %w", src, err)
	}
	return out.Close()
}
