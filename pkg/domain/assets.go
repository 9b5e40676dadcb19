package domain

// TaskKind は生成アセットの種別です。画像系3種と音声系2種があります。
type TaskKind string

const (
	KindSprite     TaskKind = "sprite"     // キャラクター立ち絵
	KindBackground TaskKind = "background" // 背景
	KindCG         TaskKind = "cg"         // 一枚絵（イベントCG）
	KindMusic      TaskKind = "music"      // BGM
	KindSFX        TaskKind = "sfx"        // 効果音
)

// IsAudio は音声系の種別かどうかを返します。
func (k TaskKind) IsAudio() bool {
	return k == KindMusic || k == KindSFX
}

// ImageKinds は画像ステージが処理する種別の走査順なのだ。
// 元のプロンプトファイルの命名規則と合わせるため、この順序を変えてはいけない。
var ImageKinds = []TaskKind{KindBackground, KindSprite, KindCG}

// AudioKinds は音声ステージが処理する種別の走査順なのだ。
var AudioKinds = []TaskKind{KindMusic, KindSFX}

// ImagePrompt は画像プロンプト生成ステージが書き出す1画像分の指示です。
// ImageName は後続のスクリプト・エクスポートステージから参照される
// 永続的なキーなので、スクリプト中の表記とずれてはいけません。
type ImagePrompt struct {
	ImageName string `json:"image_name"`
	Prompt    string `json:"prompt"`

	// CharacterRenpyName は立ち絵（sprite）のときだけ入る、対象キャラクターのキー。
	CharacterRenpyName string `json:"character_renpy_name,omitempty"`
}

// AudioPrompt は音声プロンプト生成ステージが書き出す1音声分の指示です。
type AudioPrompt struct {
	AudioName string `json:"audio_name"`
	Prompt    string `json:"prompt"`
}

// Verdict は画像評価モデルの構造化された判定結果です。
// 生成のたびに新しく作られ、一度も書き換えられません。
type Verdict struct {
	Acceptable      bool     `json:"acceptable"`
	Issues          []string `json:"issues"`
	OptimizedPrompt string   `json:"optimized_prompt"`
}

// FallbackVerdict は評価モデルの応答がパースできなかったときの既定値を返します。
// 判定不能で生成を止めるわけにはいかないので、現在の画像を受理する方向に倒すのだ。
func FallbackVerdict(promptUsed string) Verdict {
	return Verdict{
		Acceptable:      true,
		Issues:          []string{},
		OptimizedPrompt: promptUsed,
	}
}
