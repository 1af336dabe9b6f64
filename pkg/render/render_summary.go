// Plain text summary of a finished run, one block per group.

package render

import (
	"io"
	"strconv"
	"text/template"

	"github.com/yumyai/habconn/logger"
	"github.com/yumyai/habconn/pkg/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var summary_template *template.Template

type GroupSummary struct {
	Group      string
	Iterations int
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
}

type SummaryData struct {
	RunID  string
	Output string
	Groups []GroupSummary
}

func init() {
	mainTmpl := `Run {{ if .RunID }}{{ .RunID }}{{ else }}(unsaved){{ end }} -> {{ .Output }}
{{ range .Groups }}{{ template "group" . }}{{ end }}`

	groupTmpl := `{{ define "group" }}  {{ .Group }}: {{ .Iterations }} iterations, Gene Avg mean {{ fmt4 .Mean }} sd {{ fmt4 .StdDev }} range [{{ fmt4 .Min }}, {{ fmt4 .Max }}]
{{ end }}`

	summary_template = template.New("summary").Funcs(template.FuncMap{
		"fmt4": func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) },
	})
	summary_template = template.Must(summary_template.Parse(mainTmpl))
	summary_template = template.Must(summary_template.Parse(groupTmpl))
}

// Summarize aggregates Gene Avg per group, groups in first-seen order.
func Summarize(results []model.SampleResult) []GroupSummary {
	var order []string
	scores := make(map[string][]float64)
	for _, r := range results {
		if _, ok := scores[r.Group]; !ok {
			order = append(order, r.Group)
		}
		scores[r.Group] = append(scores[r.Group], r.GeneAvg)
	}

	out := make([]GroupSummary, 0, len(order))
	for _, g := range order {
		s := scores[g]
		mean, std := stat.MeanStdDev(s, nil)
		if len(s) < 2 {
			std = 0
		}
		out = append(out, GroupSummary{
			Group:      g,
			Iterations: len(s),
			Mean:       mean,
			StdDev:     std,
			Min:        floats.Min(s),
			Max:        floats.Max(s),
		})
	}
	return out
}

func RenderSummary(w io.Writer, data SummaryData) error {
	logger.Debug("Rendering summary", zap.String("run_id", data.RunID), zap.Int("groups", len(data.Groups)))
	return summary_template.Execute(w, data)
}
