package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shouni/go-novel-kit/internal/config"
	"github.com/shouni/go-novel-kit/internal/plan"
	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/comfy"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// ImageBackend は画像生成バックエンドに求める操作です。
// 実体は comfy.Client だが、テストではスタブに差し替えるのだ。
type ImageBackend interface {
	GenerateImages(ctx context.Context, graph comfy.Graph) ([][]byte, error)
}

// ImageRunner は、プロンプト一覧から実際の画像を生成するステージです。
//
// 1枚ごとに「生成→視覚モデルで評価→改善プロンプトで再生成」の自己補正ループを
// 回します。試行回数には上限があり、上限に達したら最後の画像をそのまま採用します。
// 各試行の画像と評価ログは refine/ に必ず残すため、あとから補正の過程を追えるのだ。
type ImageRunner struct {
	store     *store.Store
	backend   ImageBackend
	evaluator *Evaluator
	cfg       *config.Config
}

// NewImageRunner は ImageRunner の新しいインスタンスを生成して返すのだ。
func NewImageRunner(st *store.Store, backend ImageBackend, evaluator *Evaluator, cfg *config.Config) *ImageRunner {
	return &ImageRunner{store: st, backend: backend, evaluator: evaluator, cfg: cfg}
}

// Run は未生成の画像をすべて生成します。1枚の失敗で全体は止めず、
// 失敗したタスクを記録して次へ進みます。
func (ir *ImageRunner) Run(ctx context.Context, sd *domain.StructuredDraft) error {
	report, err := plan.ScanImages(ir.store, len(sd.Chapters))
	if err != nil {
		return err
	}

	fmt.Print(report.Render())

	pending := report.Pending()
	if len(pending) == 0 {
		slog.Info("生成すべき画像がないため、画像生成をスキップしました")
		return nil
	}

	slog.Info("画像生成を開始するのだ", "count", len(pending), "evaluation", ir.cfg.EnableEvaluation)

	failed := 0
	for _, task := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ir.generateOne(ctx, task); err != nil {
			slog.Error("画像の生成に失敗しました", "image", task.Name, "chapter", task.ChapterNum, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d 件の画像生成に失敗しました。再実行すれば失敗分だけやり直せます", failed)
	}
	slog.Info("すべての画像が正常に生成されたのだ", "total", len(pending))
	return nil
}

// generateOne は1枚分の自己補正ループを回します。
func (ir *ImageRunner) generateOne(ctx context.Context, task plan.Task) error {
	current := task.Prompt
	maxAttempts := ir.cfg.MaxRefineAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		image, err := ir.generateCandidate(ctx, task, current)
		if err != nil {
			return err
		}

		// どの試行の画像も refine/ に残すのだ。採用されなかった版も補正過程の記録になる。
		refineRel := store.RefineImagePath(task.Name, attempt)
		if err := ir.store.WriteBytes(refineRel, image); err != nil {
			return err
		}
		// 最新の試行は candidates/ にも置き、採用時にここから昇格させる。
		if err := ir.store.WriteBytes(store.CandidatePath(task.Name), image); err != nil {
			return err
		}

		// 評価が無効、または試行上限に達したら、この画像で確定する。
		if !ir.cfg.EnableEvaluation || attempt >= maxAttempts {
			reason := "視覚モデルによる評価は無効です"
			if ir.cfg.EnableEvaluation {
				reason = fmt.Sprintf("試行上限 (%d) に達したため、最後の画像を採用します", maxAttempts)
			}
			if err := ir.writeEvalLog(task, attempt, current, reason, nil); err != nil {
				return err
			}
			return ir.accept(task)
		}

		verdict := ir.evaluator.Evaluate(ctx, task, current, image)
		if err := ir.writeEvalLog(task, attempt, current, "", &verdict); err != nil {
			return err
		}

		if verdict.Acceptable {
			slog.Info("画像が受理されました", "image", task.Name, "attempt", attempt)
			return ir.accept(task)
		}

		// 改善プロンプトが得られなければ、これ以上良くならないので現在の画像で確定する。
		if verdict.OptimizedPrompt == "" || verdict.OptimizedPrompt == current {
			slog.Warn("改善プロンプトが得られなかったため、現在の画像を採用します",
				"image", task.Name, "issues", strings.Join(verdict.Issues, ", "))
			return ir.accept(task)
		}

		slog.Info("改善プロンプトで再生成します",
			"image", task.Name, "attempt", attempt, "issues", strings.Join(verdict.Issues, ", "))
		current = verdict.OptimizedPrompt
	}
	return nil
}

// generateCandidate はバックエンドに1枚生成させて、そのバイト列を返します。
func (ir *ImageRunner) generateCandidate(ctx context.Context, task plan.Task, positive string) ([]byte, error) {
	graph, err := comfy.LoadGraph(ir.templatePath(task.Kind))
	if err != nil {
		return nil, err
	}
	if err := graph.SetPositivePrompt(positive); err != nil {
		return nil, err
	}
	if err := graph.SetNegativePrompt(""); err != nil {
		return nil, err
	}
	if err := graph.SetSeed(-1); err != nil {
		return nil, err
	}
	if err := graph.SetImageBatchSize(1); err != nil {
		return nil, err
	}

	images, err := ir.backend.GenerateImages(ctx, graph)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

// accept は candidates/ の最新候補を最終的な置き場所へ昇格させます。
func (ir *ImageRunner) accept(task plan.Task) error {
	return ir.store.Promote(store.CandidatePath(task.Name), store.ImagePath(task.Name))
}

// writeEvalLog は試行1回分の評価ログを refine/ の画像と対になるパスへ書きます。
func (ir *ImageRunner) writeEvalLog(task plan.Task, attempt int, promptUsed, note string, verdict *domain.Verdict) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Image Name: %s\n", task.Name)
	fmt.Fprintf(&b, "Iteration: %d/%d\n", attempt, ir.cfg.MaxRefineAttempts)
	fmt.Fprintf(&b, "Prompt: %s\n", promptUsed)

	switch {
	case verdict != nil:
		acceptable := "No"
		if verdict.Acceptable {
			acceptable = "Yes"
		}
		fmt.Fprintf(&b, "Acceptable: %s\n", acceptable)
		if len(verdict.Issues) > 0 {
			fmt.Fprintf(&b, "Issues: %s\n", strings.Join(verdict.Issues, ", "))
		}
		if verdict.OptimizedPrompt != "" {
			fmt.Fprintf(&b, "Optimized Prompt: %s\n", verdict.OptimizedPrompt)
		}
	default:
		fmt.Fprintf(&b, "Evaluation: %s\n", note)
	}

	return ir.store.WriteText(store.RefineLogPath(task.Name, attempt), b.String())
}

// templatePath は種別ごとのワークフローテンプレートの場所を返します。
func (ir *ImageRunner) templatePath(kind domain.TaskKind) string {
	switch kind {
	case domain.KindSprite:
		return ir.cfg.SpriteTemplate
	case domain.KindCG:
		return ir.cfg.CGTemplate
	default:
		return ir.cfg.BackgroundTemplate
	}
}
