package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/plan"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/comfy"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// 音声の生成秒数。音楽はループ前提の30秒、効果音は5秒なのだ。
const (
	musicDurationSeconds = 30
	sfxDurationSeconds   = 5
)

// AudioBackend は音声生成バックエンドに求める操作です。
type AudioBackend interface {
	GenerateAudio(ctx context.Context, graph comfy.Graph, durationSeconds, batchSize int) ([][]byte, error)
}

// AudioRunner は、プロンプト一覧から音楽と効果音を生成するステージです。
// バックエンドの生出力（FLAC）を ffmpeg で Opus に変換してから保存します。
type AudioRunner struct {
	store   *store.Store
	backend AudioBackend
	cfg     *config.Config

	// transcode は FLAC → Opus の変換処理。テストで ffmpeg 無しに動かすために差し替え可能なのだ。
	transcode func(ctx context.Context, inPath, outPath string) error
}

// NewAudioRunner は AudioRunner の新しいインスタンスを生成して返すのだ。
func NewAudioRunner(st *store.Store, backend AudioBackend, cfg *config.Config) *AudioRunner {
	return &AudioRunner{
		store:     st,
		backend:   backend,
		cfg:       cfg,
		transcode: transcodeFlacToOpus,
	}
}

// Run は未生成の音声をすべて生成します。1件の失敗で全体は止めません。
func (ar *AudioRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	report, err := plan.ScanAudio(ar.store, len(sd.Chapters))
	if err != nil {
		return err
	}

	fmt.Print(report.Render())

	pending := report.Pending()
	if len(pending) == 0 {
		slog.Info("生成すべき音声がないため、音声生成をスキップしました")
		return nil
	}

	// 見積もり時間をログに出すのだ。生成はだいたい実時間より速いが目安にはなる。
	total := 0
	for _, task := range pending {
		total += durationFor(task.Kind)
	}
	slog.Info("音声生成を開始するのだ", "count", len(pending), "total_duration_sec", total)

	failed := 0
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ar.generateOne(ctx, task); err != nil {
			slog.Error("音声の生成に失敗しました", "audio", task.Name, "chapter", task.ChapterNum, "error", err)
			failed++
		} else {
			slog.Info("音声を保存しました", "audio", task.Name, "kind", task.Kind)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d 件の音声生成に失敗しました。再実行すれば失敗分だけやり直せます", failed)
	}
	slog.Info("すべての音声が正常に生成されたのだ", "total", len(pending))
	return nil
}

// generateOne は音声1件を生成して Opus 形式で確定します。
func (ar *AudioRunner) generateOne(ctx context.Context, task plan.Task) error {
	graph, err := comfy.LoadGraph(ar.templatePath(task.Kind))
	if err != nil {
		return err
	}
	if err := graph.SetPositivePrompt(task.Prompt); err != nil {
		return err
	}
	if err := graph.SetSeed(-1); err != nil {
		return err
	}

	clips, err := ar.backend.GenerateAudio(ctx, graph, durationFor(task.Kind), 1)
	if err != nil {
		return err
	}

	// 生出力をいったん FLAC のまま置いてから変換するのだ。
	rawRel := store.AudioRawPath(task.Name)
	if err := ar.store.WriteBytes(rawRel, clips[0]); err != nil {
		return err
	}

	if err := ar.transcode(ctx, ar.store.Abs(rawRel), ar.store.Abs(store.AudioPath(task.Name))); err != nil {
		return fmt.Errorf("音声の変換に失敗しました (%s): %w", task.Name, err)
	}
	return ar.store.Remove(rawRel)
}

func (ar *AudioRunner) templatePath(kind domain.TaskKind) string {
	if kind == domain.KindMusic {
		return ar.cfg.MusicTemplate
	}
	return ar.cfg.SFXTemplate
}

func durationFor(kind domain.TaskKind) int {
	if kind == domain.KindMusic {
		return musicDurationSeconds
	}
	return sfxDurationSeconds
}

// transcodeFlacToOpus は ffmpeg で FLAC を Opus (libopus 128k VBR) に変換します。
func transcodeFlacToOpus(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inPath,
		"-c:a", "libopus",
		"-b:a", "128k",
		"-vbr", "on",
		"-compression_level", "10",
		"-y",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg の実行に失敗しました: %w\n%s", err, out)
	}
	return nil
}
