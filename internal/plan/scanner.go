// Package plan は、プロンプト一覧と既存成果物を突き合わせて
// 「これから作るべきもの」の一覧を組み立てます。
// 生成ステージは必ずこの走査を通ってから動くため、途中で落ちても
// 同じコマンドを再実行するだけで続きから再開できるのだ。
package plan

import (
	"encoding/json"
	"fmt"

	"github.com/shouni/go-novel-kit/internal/store"
	"github.com/shouni/go-novel-kit/pkg/domain"
)

// Status はタスク1件の走査結果です。
type Status string

const (
	// StatusPending は成果物が未生成で、これから作るべき状態です。
	StatusPending Status = "pending"
	// StatusExists は成果物がすでに存在し、スキップされる状態です。
	StatusExists Status = "exists"
	// StatusDuplicate は同名の成果物が先の章で予約済みの状態です。
	StatusDuplicate Status = "duplicate"
	// StatusSkipped は前提となるプロンプトファイルが無く、走査対象外の状態です。
	// 脚本が無い章ではプロンプト生成自体が飛ばされるため、欠けは正常系なのだ。
	StatusSkipped Status = "skipped"
)

// Task は生成対象1件分の情報です。画像と音声で共通に使います。
type Task struct {
	ChapterNum        int // 1始まり
	Kind              domain.TaskKind
	Name              string
	Prompt            string
	CharacterRenpyName string // 立ち絵のみ
	Status            Status
	Note              string
}

// ArtifactPath はこのタスクの最終成果物の置き場所を返します。
func (t Task) ArtifactPath() string {
	if t.Kind.IsAudio() {
		return store.AudioPath(t.Name)
	}
	return store.ImagePath(t.Name)
}

// Report は1回の走査結果の全体です。
type Report struct {
	Tasks []Task
}

// Pending は未生成のタスクだけを抜き出します。
func (r *Report) Pending() []Task {
	var out []Task
	for _, t := range r.Tasks {
		if t.Status == StatusPending {
			out = append(out, t)
		}
	}
	return out
}

// Counts は状態ごとの件数を返します。ログ出力用なのだ。
func (r *Report) Counts() (pending, exists, duplicate, skipped int) {
	for _, t := range r.Tasks {
		switch t.Status {
		case StatusPending:
			pending++
		case StatusExists:
			exists++
		case StatusDuplicate:
			duplicate++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// skippedTask はプロンプトファイルが欠けている章×種別の行を作ります。
func skippedTask(num int, kind domain.TaskKind) Task {
	return Task{
		ChapterNum: num,
		Kind:       kind,
		Name:       "-",
		Status:     StatusSkipped,
		Note:       "プロンプトファイルがありません",
	}
}

// ScanImages は全章の画像プロンプト一覧を読み、作業一覧を組み立てます。
// プロンプトファイルが無い章×種別はスキップ行として記録します。
func ScanImages(st *store.Store, chapterCount int) (*Report, error) {
	report := &Report{}
	seen := map[string]int{}

	for num := 1; num <= chapterCount; num++ {
		for _, kind := range domain.ImageKinds {
			rel := store.ImagePromptPath(num, kind)
			if !st.Exists(rel) {
				report.Tasks = append(report.Tasks, skippedTask(num, kind))
				continue
			}
			data, err := st.ReadBytes(rel)
			if err != nil {
				return nil, err
			}
			var prompts []domain.ImagePrompt
			if err := json.Unmarshal(data, &prompts); err != nil {
				return nil, fmt.Errorf("画像プロンプトの解析に失敗しました (%s): %w", rel, err)
			}
			for _, p := range prompts {
				task := Task{
					ChapterNum:         num,
					Kind:               kind,
					Name:               p.ImageName,
					Prompt:             p.Prompt,
					CharacterRenpyName: p.CharacterRenpyName,
				}
				classify(st, &task, seen)
				report.Tasks = append(report.Tasks, task)
			}
		}
	}
	return report, nil
}

// ScanAudio は全章の音声プロンプト一覧を読み、作業一覧を組み立てます。
func ScanAudio(st *store.Store, chapterCount int) (*Report, error) {
	report := &Report{}
	seen := map[string]int{}

	for num := 1; num <= chapterCount; num++ {
		for _, kind := range domain.AudioKinds {
			rel := store.AudioPromptPath(num, kind)
			if !st.Exists(rel) {
				report.Tasks = append(report.Tasks, skippedTask(num, kind))
				continue
			}
			data, err := st.ReadBytes(rel)
			if err != nil {
				return nil, err
			}
			var prompts []domain.AudioPrompt
			if err := json.Unmarshal(data, &prompts); err != nil {
				return nil, fmt.Errorf("音声プロンプトの解析に失敗しました (%s): %w", rel, err)
			}
			for _, p := range prompts {
				task := Task{
					ChapterNum: num,
					Kind:       kind,
					Name:       p.AudioName,
					Prompt:     p.Prompt,
				}
				classify(st, &task, seen)
				report.Tasks = append(report.Tasks, task)
			}
		}
	}
	return report, nil
}

// classify はタスク1件の状態を決めます。同名の成果物は最初に現れた章
// （章番号が最小のもの）が勝ち、以降の章の同名タスクは重複扱いです。
func classify(st *store.Store, task *Task, seen map[string]int) {
	if first, ok := seen[task.Name]; ok {
		task.Status = StatusDuplicate
		task.Note = fmt.Sprintf("chapter%d で定義済み", first)
		return
	}
	seen[task.Name] = task.ChapterNum

	if st.Exists(task.ArtifactPath()) {
		task.Status = StatusExists
		return
	}
	task.Status = StatusPending
}
