// Package comfy は、キュー型の拡散生成サーバー（ComfyUI互換プロトコル）への
// ジョブ投入・完了待機・成果物取得を行うクライアントです。
//
// 接続は1パイプライン実行につき1本だけ張り、すべてのジョブで使い回します。
// 完了通知は共有のWebSocketチャネル上に他クライアント・他ジョブのイベントと
// 混在して流れてくるため、prompt_id の一致で自分のジョブだけを見分けます。
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrNotFound はサーバーが指定のジョブまたは成果物を知らないことを表します。
	ErrNotFound = errors.New("comfy: 指定されたジョブまたは成果物が見つかりません")

	// ErrNoArtifacts は出力ノードが要求された種別の成果物を1つも生成しなかったことを表します。
	ErrNoArtifacts = errors.New("comfy: 出力ノードに成果物がありません")
)

// ArtifactRef は履歴マニフェスト内の成果物ファイルへの参照です。
type ArtifactRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput は1ノード分の出力記述子です。
type NodeOutput struct {
	Images []ArtifactRef `json:"images"`
	Audio  []ArtifactRef `json:"audio"`
}

// History は完了済みジョブの出力マニフェストです。
type History struct {
	Outputs map[string]NodeOutput `json:"outputs"`
}

// Client は生成サーバーへの接続を保持するクライアントです。
// WebSocket接続は共有の状態を持つため、複数ゴルーチンから使う場合は
// ジョブの投入から完了待機までを直列化する必要があります。
// 複合操作（GenerateImages / GenerateAudio）は内部でこれを行います。
type Client struct {
	serverAddress string
	clientID      string
	conn          *websocket.Conn
	httpc         *http.Client

	// mu は submit→await の一連の流れを直列化します。
	// 完了検知は prompt_id 照合なので理論上は並行投入も安全ですが、
	// 1本のソケットを複数ゴルーチンで読むことはできないためです。
	mu sync.Mutex
}

// Connect は指定アドレスのサーバーにWebSocketチャネルを張り、クライアントを返します。
// クライアントIDは接続の寿命の間だけ有効な値を一度だけ採番します。
func Connect(serverAddress string) (*Client, error) {
	clientID := uuid.NewString()
	wsURL := fmt.Sprintf("ws://%s/ws?clientId=%s", serverAddress, clientID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("生成サーバーへの接続に失敗しました (%s): %w", serverAddress, err)
	}

	return &Client{
		serverAddress: serverAddress,
		clientID:      clientID,
		conn:          conn,
		// サイドチャネルのHTTPリクエストにだけタイムアウトをかけます。
		// 完了待機側は生成時間が読めないため期限を設けません。
		httpc: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// ClientID は接続時に採番されたクライアント識別子を返します。
func (c *Client) ClientID() string {
	return c.clientID
}

// Close はWebSocketチャネルを解放します。
func (c *Client) Close() error {
	return c.conn.Close()
}

// SubmitJob はノードグラフをジョブとして投入し、サーバーが採番したジョブIDを返します。
func (c *Client) SubmitJob(ctx context.Context, graph Graph) (string, error) {
	payload := map[string]any{
		"prompt":    graph,
		"client_id": c.clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ジョブペイロードのエンコードに失敗しました: %w", err)
	}

	endpoint := fmt.Sprintf("http://%s/prompt", c.serverAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ジョブの投入に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ジョブの投入が拒否されました (%d): %s", resp.StatusCode, string(raw))
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ジョブ投入応答のパースに失敗しました: %w", err)
	}
	if result.PromptID == "" {
		return "", fmt.Errorf("サーバーがジョブIDを返しませんでした")
	}
	return result.PromptID, nil
}

// executingEvent はチャネル上を流れるイベントのうち、完了検知に必要な形だけを持ちます。
type executingEvent struct {
	Type string `json:"type"`
	Data struct {
		// Node は実行中ノードのID。ジョブ完了時だけ null になります。
		Node     *string `json:"node"`
		PromptID string  `json:"prompt_id"`
	} `json:"data"`
}

// AwaitCompletion は指定ジョブの完了をWebSocketチャネル上で待機します。
//
// 完了は「executing イベントの node が null、かつ prompt_id が一致」という
// 形だけから推定します。明示的な完了イベント型は存在しないため、この
// ヒューリスティックを変えると互換性が壊れます。バイナリフレーム
// （プレビューデータ）と無関係なジョブのイベントはすべて読み捨てます。
func (c *Client) AwaitCompletion(ctx context.Context, jobID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("イベントチャネルの読み取りに失敗しました: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue // プレビュー用のバイナリフレームは無視する
		}

		var ev executingEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue // 未知の形のイベントは読み捨てる
		}
		if ev.Type == "executing" && ev.Data.Node == nil && ev.Data.PromptID == jobID {
			return nil
		}
	}
}

// FetchHistory は完了済みジョブの出力マニフェストを取得します。
// サーバーがジョブを知らない（破棄済みなど）場合は ErrNotFound を返します。
func (c *Client) FetchHistory(ctx context.Context, jobID string) (*History, error) {
	endpoint := fmt.Sprintf("http://%s/history/%s", c.serverAddress, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ジョブ %s の履歴取得: %w", jobID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("履歴の取得に失敗しました (%d)", resp.StatusCode)
	}

	// 応答はジョブIDをキーとしたマップです。キーが無ければジョブは未知です。
	var all map[string]History
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("履歴のパースに失敗しました: %w", err)
	}
	record, ok := all[jobID]
	if !ok {
		return nil, fmt.Errorf("ジョブ %s の履歴取得: %w", jobID, ErrNotFound)
	}
	return &record, nil
}

// FetchArtifact は成果物ファイル1つの生バイト列を取得します。
func (c *Client) FetchArtifact(ctx context.Context, ref ArtifactRef) ([]byte, error) {
	params := url.Values{}
	params.Set("filename", ref.Filename)
	params.Set("subfolder", ref.Subfolder)
	params.Set("type", ref.Type)

	endpoint := fmt.Sprintf("http://%s/view?%s", c.serverAddress, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("成果物の取得に失敗しました (%s): %w", ref.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("成果物 %s の取得: %w", ref.Filename, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("成果物の取得に失敗しました (%s, %d)", ref.Filename, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GenerateImages はグラフを投入して完了を待ち、出力ノードの画像をすべて取得します。
// 出力ノードが画像を1枚も生成しなかった場合は ErrNoArtifacts を返します。
func (c *Client) GenerateImages(ctx context.Context, graph Graph) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.runJob(ctx, graph)
	if err != nil {
		return nil, err
	}

	refs := history.Outputs[nodeOutput].Images
	if len(refs) == 0 {
		return nil, fmt.Errorf("画像生成ジョブ: %w", ErrNoArtifacts)
	}

	images := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		data, err := c.FetchArtifact(ctx, ref)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

// GenerateAudio はグラフに長さとバッチ数を設定して投入し、出力ノードの音声を取得します。
func (c *Client) GenerateAudio(ctx context.Context, graph Graph, durationSeconds, batchSize int) ([][]byte, error) {
	if err := graph.SetAudioOptions(durationSeconds, batchSize); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.runJob(ctx, graph)
	if err != nil {
		return nil, err
	}

	refs := history.Outputs[nodeOutput].Audio
	if len(refs) == 0 {
		return nil, fmt.Errorf("音声生成ジョブ: %w", ErrNoArtifacts)
	}

	audio := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		data, err := c.FetchArtifact(ctx, ref)
		if err != nil {
			return nil, err
		}
		audio = append(audio, data)
	}
	return audio, nil
}

// runJob は投入・完了待機・履歴取得の共通部分です。呼び出し側がロックを握ります。
func (c *Client) runJob(ctx context.Context, graph Graph) (*History, error) {
	jobID, err := c.SubmitJob(ctx, graph)
	if err != nil {
		return nil, err
	}
	if err := c.AwaitCompletion(ctx, jobID); err != nil {
		return nil, err
	}
	return c.FetchHistory(ctx, jobID)
}
