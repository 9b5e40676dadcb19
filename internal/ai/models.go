package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-novel-kit/internal/config"
)

// ModelSet はパイプラインが使う5役のモデルクライアント一式です。
// 役割ごとに接続先もモデルも違ってよいのだ。
type ModelSet struct {
	Reasoning Client // 草案・章・スクリプトの執筆役
	General   Client // 構造化パース・音声プロンプト役
	SDPrompt  Client // 画像プロンプト役
	Vision    Client // 画像評価役（視覚言語モデル）
	Lint      Client // Lint出力のパースと修正役
}

// NewModelSet は設定から各役のクライアントを組み立てます。
func NewModelSet(ctx context.Context, cfg *config.Config) (*ModelSet, error) {
	reasoning, err := newClient(ctx, cfg.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("推論モデルの初期化: %w", err)
	}
	general, err := newClient(ctx, cfg.General)
	if err != nil {
		return nil, fmt.Errorf("汎用モデルの初期化: %w", err)
	}
	sdPrompt, err := newClient(ctx, cfg.SDPrompt)
	if err != nil {
		return nil, fmt.Errorf("SDプロンプトモデルの初期化: %w", err)
	}
	vision, err := newClient(ctx, cfg.Vision)
	if err != nil {
		return nil, fmt.Errorf("視覚モデルの初期化: %w", err)
	}
	lint, err := newClient(ctx, cfg.Lint)
	if err != nil {
		return nil, fmt.Errorf("Lintモデルの初期化: %w", err)
	}

	return &ModelSet{
		Reasoning: reasoning,
		General:   general,
		SDPrompt:  sdPrompt,
		Vision:    vision,
		Lint:      lint,
	}, nil
}

// newClient はプロバイダー名に応じた実装を1つ選びます。
// 選択は設定ロード時の一度きりで、呼び出し側に条件分岐は漏らさないのだ。
func newClient(ctx context.Context, role config.RoleConfig) (Client, error) {
	switch strings.ToLower(role.Provider) {
	case "", "openai":
		return NewOpenAIClient(role.BaseURL, role.APIKey, role.Model, role.Temperature), nil
	case "gemini":
		return NewGeminiClient(ctx, role.APIKey, role.Model, role.Temperature)
	default:
		return nil, fmt.Errorf("未知のモデルプロバイダーです: %s", role.Provider)
	}
}
