package config

import (
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultWorkDir           = "./temp"
	DefaultComfyAddress      = "127.0.0.1:8188"
	DefaultMaxConcurrent     = 1 // 外部APIのレート制限を尊重するため、既定では直列なのだ
	DefaultMaxRefineAttempts = 3
	DefaultExportDir         = "./game-project"
	DefaultRateLimit         = 3 * time.Second

	DefaultSpriteTemplate     = "./workflows/sprite.json"
	DefaultBackgroundTemplate = "./workflows/background.json"
	// CGは背景と同じワークフローテンプレートを使うのだ
	DefaultCGTemplate    = "./workflows/background.json"
	DefaultMusicTemplate = "./workflows/music.json"
	DefaultSFXTemplate   = "./workflows/sfx.json"
)

// RoleConfig はモデル1役分の接続設定です。
type RoleConfig struct {
	Provider    string // "openai"（互換API全般）または "gemini"
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
}

// Config はアプリケーション全体の環境設定を保持する構造体なのだ。
type Config struct {
	WorkDir      string // 中間成果物を置く作業ディレクトリ
	ComfyAddress string // 拡散生成サーバーのアドレス（host:port）
	ExportDir    string // ゲームプロジェクトのエクスポート先
	RenpyCommand string // Lint に使う Ren'Py SDK の起動コマンド

	MaxConcurrent     int           // ステージ内ワーカーの最大並列数
	MaxRefineAttempts int           // 画像自己修正ループの最大試行回数
	EnableEvaluation  bool          // 視覚モデルによる画像評価を行うかどうか
	RateLimit         time.Duration // 生成APIへのリクエスト間隔

	SpriteTemplate     string
	BackgroundTemplate string
	CGTemplate         string
	MusicTemplate      string
	SFXTemplate        string

	Reasoning RoleConfig // 草案・章・スクリプトを書く推論モデル
	General   RoleConfig // 構造化パースや音声プロンプト用の汎用モデル
	SDPrompt  RoleConfig // SDプロンプトを書くモデル
	Vision    RoleConfig // 画像評価用の視覚言語モデル
	Lint      RoleConfig // Lint結果のパースとスクリプト修正用モデル
}

// LoadConfig は .env と環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	// .env はあれば読むし、なければ黙って環境変数だけを使うのだ
	_ = godotenv.Load()

	cfg := &Config{
		WorkDir:      envutil.GetEnv("NOVEL_WORK_DIR", DefaultWorkDir),
		ComfyAddress: envutil.GetEnv("COMFY_UI_SERVER_ADDRESS", DefaultComfyAddress),
		ExportDir:    envutil.GetEnv("NOVEL_EXPORT_DIR", DefaultExportDir),
		RenpyCommand: envutil.GetEnv("RENPY_COMMAND", ""),

		MaxConcurrent:     getEnvInt("MAX_CONCURRENT_REQUESTS", DefaultMaxConcurrent),
		MaxRefineAttempts: getEnvInt("MAX_RETRY_TIMES", DefaultMaxRefineAttempts),
		EnableEvaluation:  getEnvBool("ENABLE_VL_EVALUATION", false),
		RateLimit:         DefaultRateLimit,

		SpriteTemplate:     envutil.GetEnv("SPRITE_TEMPLATE", DefaultSpriteTemplate),
		BackgroundTemplate: envutil.GetEnv("BACKGROUND_TEMPLATE", DefaultBackgroundTemplate),
		CGTemplate:         envutil.GetEnv("CG_TEMPLATE", DefaultCGTemplate),
		MusicTemplate:      envutil.GetEnv("MUSIC_TEMPLATE", DefaultMusicTemplate),
		SFXTemplate:        envutil.GetEnv("SFX_TEMPLATE", DefaultSFXTemplate),

		Reasoning: loadRole("REASONING", "deepseek-reasoner", 0.7),
		General:   loadRole("GENERAL", "deepseek-chat", 0.6),
		SDPrompt:  loadRole("SD_PROMPT", "Qwen/Qwen2.5-72B-Instruct", 0.7),
		Vision:    loadRole("VL", "Qwen/Qwen2.5-VL-72B-Instruct", 0.1),
		Lint:      loadRole("LINT", "Qwen/Qwen2.5-72B-Instruct", 0.7),
	}

	// 自己修正ループは最低1回は回す。0以下だと生成自体が走らなくなる。
	if cfg.MaxRefineAttempts < 1 {
		cfg.MaxRefineAttempts = 1
	}
	return cfg
}

// loadRole は「<役割名>_MODEL_*」系の環境変数から1役分の設定を読み込むのだ。
func loadRole(prefix, defaultModel string, defaultTemp float32) RoleConfig {
	return RoleConfig{
		Provider:    envutil.GetEnv(prefix+"_MODEL_PROVIDER", "openai"),
		BaseURL:     envutil.GetEnv(prefix+"_MODEL_API_BASE_URL", ""),
		APIKey:      envutil.GetEnv(prefix+"_MODEL_API_KEY", ""),
		Model:       envutil.GetEnv(prefix+"_MODEL_NAME", defaultModel),
		Temperature: getEnvFloat(prefix+"_MODEL_TEMPERATURE", defaultTemp),
	}
}

func getEnvInt(key string, fallback int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float32) float32 {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return fallback
	}
	return float32(v)
}

func getEnvBool(key string, fallback bool) bool {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
