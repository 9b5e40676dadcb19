// Package store は、ステージごとの中間成果物を置くファイルストアです。
// ここにあるファイルの有無が「どこまで終わっているか」の唯一の真実であり、
// 各ステージは開始のたびに必ずここを読み直します。
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Store は作業ディレクトリへの読み書きを提供します。
// 章や脚本のテキストはプロンプト組み立てのために何度も読み直されるため、
// 読み取り側に短寿命のキャッシュを挟んでいます。書き込みで必ず無効化します。
type Store struct {
	baseDir string
	cache   *cache.Cache
}

// New は作業ディレクトリを作成してストアを返すのだ。
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("作業ディレクトリの作成に失敗しました (%s): %w", baseDir, err)
	}
	return &Store{
		baseDir: baseDir,
		cache:   cache.New(30*time.Minute, 1*time.Hour),
	}, nil
}

// Dir は作業ディレクトリの絶対位置（設定されたままのパス）を返します。
func (s *Store) Dir() string {
	return s.baseDir
}

// Abs は相対キーをファイルシステム上のパスに解決します。
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(rel))
}

// Exists は成果物がすでに存在するかを調べます。
func (s *Store) Exists(rel string) bool {
	info, err := os.Stat(s.Abs(rel))
	return err == nil && !info.IsDir()
}

// ReadText はテキスト成果物を読み込みます。直近に読んだものはキャッシュから返すのだ。
func (s *Store) ReadText(rel string) (string, error) {
	if v, ok := s.cache.Get(rel); ok {
		return v.(string), nil
	}
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return "", fmt.Errorf("成果物の読み込みに失敗しました (%s): %w", rel, err)
	}
	text := string(data)
	s.cache.SetDefault(rel, text)
	return text, nil
}

// ReadBytes はバイナリ成果物を読み込みます。画像などはキャッシュしません。
func (s *Store) ReadBytes(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("成果物の読み込みに失敗しました (%s): %w", rel, err)
	}
	return data, nil
}

// WriteText はテキスト成果物を原子的に書き込みます。
func (s *Store) WriteText(rel, content string) error {
	return s.WriteBytes(rel, []byte(content))
}

// WriteBytes はバイナリ成果物を原子的に書き込みます。
// 一時ファイルへ書いてからリネームすることで、中断時の欠けたファイルが
// 「完了済み」と誤判定されるのを防ぎます。
func (s *Store) WriteBytes(rel string, data []byte) error {
	full := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました: %w", err)
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("一時ファイルの書き込みに失敗しました (%s): %w", rel, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("成果物の確定に失敗しました (%s): %w", rel, err)
	}

	s.cache.Delete(rel)
	return nil
}

// Promote は一時成果物を最終パスへ昇格させます。中間版はそのまま残すため、
// コピー元が refine 側に既に保存済みであることが前提なのだ。
func (s *Store) Promote(fromRel, toRel string) error {
	to := s.Abs(toRel)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.Rename(s.Abs(fromRel), to); err != nil {
		return fmt.Errorf("成果物の昇格に失敗しました (%s -> %s): %w", fromRel, toRel, err)
	}
	s.cache.Delete(toRel)
	return nil
}

// Remove は成果物を1つ削除します。存在しなくてもエラーにしません。
func (s *Store) Remove(rel string) error {
	s.cache.Delete(rel)
	err := os.Remove(s.Abs(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("成果物の削除に失敗しました (%s): %w", rel, err)
	}
	return nil
}

// Reset は作業ディレクトリの中身をすべて消します。
// ユーザーが明示的にやり直しを選んだときだけ呼ばれるのだ。
func (s *Store) Reset() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("作業ディレクトリの走査に失敗しました: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return fmt.Errorf("作業ディレクトリの初期化に失敗しました: %w", err)
		}
	}
	s.cache.Flush()
	return nil
}
