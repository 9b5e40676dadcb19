package ai

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// GeminiClient は公式 genai クライアントの薄いラッパーです。
// 推論役のプロバイダーに "gemini" を指定したときだけ使われます。
type GeminiClient struct {
	cli         *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient は Gemini API クライアントを生成します。
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float32) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, temperature: temperature}, nil
}

// Complete はコンテンツ生成を1回実行し、応答テキストを返します。
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	full := req.User
	if req.System != "" {
		full = req.System + "\n\n" + req.User
	}

	parts := []*genai.Part{{Text: full}}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/webp", Data: img},
		})
	}

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: parts}}, cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini呼び出しに失敗しました: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini応答が空です")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
