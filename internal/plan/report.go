package plan

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Render は走査結果を人間向けの表として整形します。
// 生成ステージはジョブを投げる前に必ずこれをログに出し、
// 何が飛ばされて何が作られるのかを先に示すのだ。
func (r *Report) Render() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CHAPTER\tKIND\tNAME\tSTATUS\tNOTE")
	for _, t := range r.Tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ChapterNum, t.Kind, t.Name, t.Status, t.Note)
	}
	w.Flush()

	pending, exists, duplicate, skipped := r.Counts()
	fmt.Fprintf(&b, "未生成 %d / 生成済み %d / 重複 %d / スキップ %d\n", pending, exists, duplicate, skipped)
	return b.String()
}
