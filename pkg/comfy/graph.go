package comfy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// バックエンドのノードグラフにおける既知のノードIDです。
// テンプレートJSON側の構造と対になっているため、勝手に変えてはいけません。
const (
	nodePositivePrompt = "6"  // ポジティブプロンプトのテキスト入力
	nodeNegativePrompt = "7"  // ネガティブプロンプトのテキスト入力
	nodeSampler        = "3"  // サンプラー（シード値を持つ）
	nodeImageLatent    = "5"  // 画像のバッチサイズを持つ潜在ノード
	nodeAudioLatent    = "11" // 音声の秒数とバッチサイズを持つ潜在ノード
	nodeOutput         = "13" // 成果物を書き出す出力ノード
)

// DefaultNegativePrompt はテンプレートに指定がないときの既定ネガティブプロンプトです。
const DefaultNegativePrompt = "(nsfw:1.1), text, watermark, nude, lowres, worst quality, bad quality, bad, jpeg artifacts, unfinished, extra digits, scan, [abstract], sketch, bad anatomy, artistic error, duplicate, mutation, deformed, disfigured, artist name, ai-generated, ai-assisted"

// Graph はジョブ投入ペイロードとなるノードグラフです。
// テンプレートの未知フィールドを壊さないよう、生のマップのまま保持します。
type Graph map[string]map[string]any

// LoadGraph はテンプレートファイルからノードグラフを読み込むのだ。
func LoadGraph(path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("グラフテンプレートの読み込みに失敗しました (%s): %w", path, err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("グラフテンプレートのパースに失敗しました (%s): %w", path, err)
	}
	return g, nil
}

// setInput は指定ノードの inputs に値を書き込みます。
func (g Graph) setInput(nodeID, key string, value any) error {
	node, ok := g[nodeID]
	if !ok {
		return fmt.Errorf("グラフにノード %s が存在しません", nodeID)
	}
	inputs, ok := node["inputs"].(map[string]any)
	if !ok {
		return fmt.Errorf("ノード %s に inputs がありません", nodeID)
	}
	inputs[key] = value
	return nil
}

// SetPositivePrompt はポジティブプロンプトを差し替えます。
func (g Graph) SetPositivePrompt(prompt string) error {
	return g.setInput(nodePositivePrompt, "text", prompt)
}

// SetNegativePrompt はネガティブプロンプトを差し替えます。空文字なら既定値を使います。
func (g Graph) SetNegativePrompt(prompt string) error {
	if prompt == "" {
		prompt = DefaultNegativePrompt
	}
	return g.setInput(nodeNegativePrompt, "text", prompt)
}

// SetSeed はサンプラーのシード値を設定します。負数ならランダムに採番するのだ。
func (g Graph) SetSeed(seed int64) error {
	if seed < 0 {
		seed = rand.Int63n(1000000)
	}
	return g.setInput(nodeSampler, "seed", seed)
}

// SetImageBatchSize は画像の生成枚数を設定します。
func (g Graph) SetImageBatchSize(n int) error {
	return g.setInput(nodeImageLatent, "batch_size", n)
}

// SetAudioOptions は音声の長さ（秒）と生成数を設定します。
func (g Graph) SetAudioOptions(seconds, batchSize int) error {
	if err := g.setInput(nodeAudioLatent, "seconds", seconds); err != nil {
		return err
	}
	return g.setInput(nodeAudioLatent, "batch_size", batchSize)
}
