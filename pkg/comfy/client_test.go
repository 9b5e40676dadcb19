package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsFrame はテスト用バックエンドがチャネルに流す1フレームです。
type wsFrame struct {
	binary bool
	data   []byte
}

// fakeBackend は ComfyUI 互換プロトコルの最小の偽サーバーです。
type fakeBackend struct {
	t        *testing.T
	server   *httptest.Server
	events   chan wsFrame
	upgrades atomic.Int32 // 確立されたWebSocket接続の数
	jobSeq   atomic.Int32

	wsClientID        atomic.Value // WebSocket接続時の clientId クエリ
	submittedClientID atomic.Value // ジョブ投入ボディの client_id
	// autoComplete が true なら、ジョブ投入のたびに完了イベントを自動送出する
	autoComplete bool
}

func newFakeBackend(t *testing.T, autoComplete bool) *fakeBackend {
	b := &fakeBackend{
		t:            t,
		events:       make(chan wsFrame, 16),
		autoComplete: autoComplete,
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("clientId")
		if clientID == "" {
			t.Error("clientId クエリが付与されていないのだ")
		}
		b.wsClientID.Store(clientID)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("WebSocketアップグレードに失敗: %v", err)
		}
		b.upgrades.Add(1)
		go func() {
			for frame := range b.events {
				msgType := websocket.TextMessage
				if frame.binary {
					msgType = websocket.BinaryMessage
				}
				if err := conn.WriteMessage(msgType, frame.data); err != nil {
					return
				}
			}
		}()
	})

	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("ジョブ投入ボディの解析に失敗: %v", err)
		}
		if id, ok := payload["client_id"].(string); ok {
			b.submittedClientID.Store(id)
		}
		id := fmt.Sprintf("job-%d", b.jobSeq.Add(1))
		if b.autoComplete {
			// 実サーバーと同様に、実行中イベントを挟んでから完了イベントを出す
			b.pushExecuting(id, "3")
			b.pushTerminal(id)
		}
		json.NewEncoder(w).Encode(map[string]string{"prompt_id": id})
	})

	mux.HandleFunc("/history/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/history/")
		if strings.HasPrefix(id, "missing") {
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		manifest := map[string]any{
			id: map[string]any{
				"outputs": map[string]any{
					"13": map[string]any{
						"images": []map[string]string{
							{"filename": id + ".webp", "subfolder": "", "type": "output"},
						},
						"audio": []map[string]string{
							{"filename": id + ".flac", "subfolder": "", "type": "output"},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(manifest)
	})

	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		filename := r.URL.Query().Get("filename")
		if filename == "lost.webp" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "bytes-of-%s", filename)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(b.events)
		b.server.Close()
	})
	return b
}

func (b *fakeBackend) address() string {
	return strings.TrimPrefix(b.server.URL, "http://")
}

func (b *fakeBackend) pushExecuting(jobID, node string) {
	b.events <- wsFrame{data: []byte(fmt.Sprintf(
		`{"type":"executing","data":{"node":"%s","prompt_id":"%s"}}`, node, jobID))}
}

func (b *fakeBackend) pushTerminal(jobID string) {
	b.events <- wsFrame{data: []byte(fmt.Sprintf(
		`{"type":"executing","data":{"node":null,"prompt_id":"%s"}}`, jobID))}
}

func TestAwaitCompletion(t *testing.T) {
	t.Run("完了イベントまでの雑多なフレームをすべて読み捨てるのだ", func(t *testing.T) {
		b := newFakeBackend(t, false)
		client, err := Connect(b.address())
		if err != nil {
			t.Fatalf("接続に失敗: %v", err)
		}
		defer client.Close()

		done := make(chan error, 1)
		go func() {
			done <- client.AwaitCompletion(context.Background(), "job-target")
		}()

		// プレビューのバイナリフレーム
		b.events <- wsFrame{binary: true, data: []byte{0x01, 0x02, 0x03}}
		// 無関係なジョブの実行中イベント
		b.pushExecuting("job-other", "5")
		// node=null でもジョブIDが違えば完了ではない
		b.pushTerminal("job-other")
		// 対象ジョブの実行中イベント（nodeあり）も完了ではない
		b.pushExecuting("job-target", "13")

		select {
		case err := <-done:
			t.Fatalf("完了イベント前に待機が解除されてしまったのだ: %v", err)
		case <-time.After(150 * time.Millisecond):
			// まだブロックしているのが正しい
		}

		b.pushTerminal("job-target")

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("完了待機がエラーで終わったのだ: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("完了イベントを受けても待機が解除されないのだ")
		}
	})
}

func TestGenerateImages(t *testing.T) {
	t.Run("1本の接続で2つのジョブを順に処理できるのだ", func(t *testing.T) {
		b := newFakeBackend(t, true)
		client, err := Connect(b.address())
		if err != nil {
			t.Fatalf("接続に失敗: %v", err)
		}
		defer client.Close()

		graph := Graph{
			"3":  {"inputs": map[string]any{"seed": float64(0)}},
			"5":  {"inputs": map[string]any{"batch_size": float64(1)}},
			"6":  {"inputs": map[string]any{"text": ""}},
			"7":  {"inputs": map[string]any{"text": ""}},
			"13": {"inputs": map[string]any{}},
		}

		first, err := client.GenerateImages(context.Background(), graph)
		if err != nil {
			t.Fatalf("1回目の画像生成に失敗: %v", err)
		}
		second, err := client.GenerateImages(context.Background(), graph)
		if err != nil {
			t.Fatalf("2回目の画像生成に失敗: %v", err)
		}

		if len(first) != 1 || string(first[0]) != "bytes-of-job-1.webp" {
			t.Errorf("1回目の成果物が想定と違うのだ: %q", first)
		}
		if len(second) != 1 || string(second[0]) != "bytes-of-job-2.webp" {
			t.Errorf("2回目の成果物が想定と違うのだ: %q", second)
		}
		if got := b.upgrades.Load(); got != 1 {
			t.Errorf("接続が使い回されていないのだ: 接続回数=%d", got)
		}
	})

	t.Run("接続と投入は同じクライアントIDで相関するのだ", func(t *testing.T) {
		b := newFakeBackend(t, true)
		client, err := Connect(b.address())
		if err != nil {
			t.Fatalf("接続に失敗: %v", err)
		}
		defer client.Close()

		if client.ClientID() == "" {
			t.Fatal("クライアントIDが採番されていないのだ")
		}
		if got := b.wsClientID.Load(); got != client.ClientID() {
			t.Errorf("WebSocket側のクライアントIDが一致しません: %v", got)
		}

		graph := Graph{
			"3":  {"inputs": map[string]any{"seed": float64(0)}},
			"5":  {"inputs": map[string]any{"batch_size": float64(1)}},
			"6":  {"inputs": map[string]any{"text": ""}},
			"7":  {"inputs": map[string]any{"text": ""}},
			"13": {"inputs": map[string]any{}},
		}
		if _, err := client.GenerateImages(context.Background(), graph); err != nil {
			t.Fatalf("画像生成に失敗: %v", err)
		}
		if got := b.submittedClientID.Load(); got != client.ClientID() {
			t.Errorf("ジョブ投入側の client_id が一致しません: %v", got)
		}
	})
}

func TestFetchHistory_NotFound(t *testing.T) {
	b := newFakeBackend(t, false)
	client, err := Connect(b.address())
	if err != nil {
		t.Fatalf("接続に失敗: %v", err)
	}
	defer client.Close()

	_, err = client.FetchHistory(context.Background(), "missing-job")
	if err == nil || !strings.Contains(err.Error(), ErrNotFound.Error()) {
		t.Errorf("未知のジョブは ErrNotFound になるべきなのだ: %v", err)
	}
}

func TestFetchArtifact_NotFound(t *testing.T) {
	b := newFakeBackend(t, false)
	client, err := Connect(b.address())
	if err != nil {
		t.Fatalf("接続に失敗: %v", err)
	}
	defer client.Close()

	_, err = client.FetchArtifact(context.Background(), ArtifactRef{Filename: "lost.webp", Type: "output"})
	if err == nil || !strings.Contains(err.Error(), ErrNotFound.Error()) {
		t.Errorf("存在しないファイルは ErrNotFound になるべきなのだ: %v", err)
	}
}

func TestGraph_Setters(t *testing.T) {
	graph := Graph{
		"3":  {"inputs": map[string]any{"seed": float64(0)}},
		"5":  {"inputs": map[string]any{"batch_size": float64(0)}},
		"6":  {"inputs": map[string]any{"text": ""}},
		"7":  {"inputs": map[string]any{"text": ""}},
		"11": {"inputs": map[string]any{"seconds": float64(0), "batch_size": float64(0)}},
	}

	t.Run("プロンプトと各種パラメータを差し込めるのだ", func(t *testing.T) {
		if err := graph.SetPositivePrompt("a quiet cafe"); err != nil {
			t.Fatal(err)
		}
		if err := graph.SetNegativePrompt(""); err != nil {
			t.Fatal(err)
		}
		if err := graph.SetSeed(42); err != nil {
			t.Fatal(err)
		}
		if err := graph.SetAudioOptions(30, 1); err != nil {
			t.Fatal(err)
		}

		if got := graph["6"]["inputs"].(map[string]any)["text"]; got != "a quiet cafe" {
			t.Errorf("ポジティブプロンプトが反映されていないのだ: %v", got)
		}
		if got := graph["7"]["inputs"].(map[string]any)["text"]; got != DefaultNegativePrompt {
			t.Errorf("既定のネガティブプロンプトが使われていないのだ: %v", got)
		}
		if got := graph["11"]["inputs"].(map[string]any)["seconds"]; got != 30 {
			t.Errorf("音声の長さが反映されていないのだ: %v", got)
		}
	})

	t.Run("存在しないノードへの書き込みはエラーなのだ", func(t *testing.T) {
		broken := Graph{}
		if err := broken.SetPositivePrompt("x"); err == nil {
			t.Error("ノード欠落が検出されなかったのだ")
		}
	})
}
