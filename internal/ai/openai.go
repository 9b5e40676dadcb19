package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIClient は OpenAI 互換の Chat Completions API を話すクライアントです。
// DeepSeek や ModelScope など、互換エンドポイントを持つサービス全般に使えます。
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	httpc       *http.Client
}

// NewOpenAIClient は OpenAI 互換クライアントを生成します。
func NewOpenAIClient(baseURL, apiKey, model string, temperature float32) *OpenAIClient {
	return &OpenAIClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		httpc:       &http.Client{Timeout: 10 * time.Minute},
	}
}

// chatMessage は Chat API のメッセージです。Content はテキストのみなら文字列、
// 画像を含む場合はパーツ配列になります。
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

// Complete はチャット補完を1回実行し、応答テキストを返します。
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: buildUserContent(req)})

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}
	if req.JSONMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("モデルAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("モデルAPIがエラーを返しました (%d): %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("モデル応答のパースに失敗しました: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("モデル応答に choices が含まれていません")
	}
	return result.Choices[0].Message.Content, nil
}

// buildUserContent はテキストと画像をAPIのコンテンツ形式に組み立てます。
func buildUserContent(req Request) any {
	if len(req.Images) == 0 {
		return req.User
	}

	parts := []contentPart{{Type: "text", Text: req.User}}
	for _, img := range req.Images {
		encoded := base64.StdEncoding.EncodeToString(img)
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURLPart{URL: "data:image/webp;base64," + encoded},
		})
	}
	return parts
}
