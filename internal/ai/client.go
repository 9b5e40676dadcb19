// Package ai は、役割ごとのテキスト/視覚モデルへの薄いアダプターです。
// 推論・汎用・SDプロンプト・視覚評価・Lint修正の5役それぞれに
// 接続先とモデル名を割り当て、共通の Client インターフェースで呼び出します。
package ai

import (
	"context"
	"strings"
)

// Request はモデル呼び出し1回分の入力です。
type Request struct {
	System string // システムプロンプト。空なら省略される
	User   string // ユーザープロンプト本文

	// Images は視覚モデル向けに埋め込む画像のバイト列。通常は高々1枚なのだ。
	Images [][]byte

	// JSONMode が true なら、対応するバックエンドにJSON応答を強制します。
	JSONMode bool
}

// Client はバックエンド1種類に対応するチャットモデルクライアントです。
// どの実装を使うかは設定ロード時に一度だけ決まり、呼び出し側は区別しません。
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StripJSONFence は応答を囲むMarkdownのコードフェンス（```json ... ```）を剥がします。
// AI はフェンス付きで返したり返さなかったりするので、パース前に必ず通すのだ。
func StripJSONFence(input string) string {
	return stripFence(input, "```json")
}

// StripRenpyFence は Ren'Py スクリプト応答のコードフェンスを剥がします。
func StripRenpyFence(input string) string {
	return stripFence(input, "```renpy")
}

func stripFence(input, opener string) string {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, opener) {
		s = s[len(opener):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
