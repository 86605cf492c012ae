// Package evaluation scores classification results: accuracy, per class
// precision/recall/F1, confusion matrices, text reports and training curves.
package evaluation

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// ClassMetrics are the scores of one label or of an average.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises predictions against true labels.
type Report struct {
	Classes             []ClassMetrics `json:"classes"`
	Accuracy            float64        `json:"accuracy"`
	MacroAvg            ClassMetrics   `json:"macro_avg"`
	WeightedAvg         ClassMetrics   `json:"weighted_avg"`
	Confusion           [][]int        `json:"confusion_matrix"`
	NormalizedConfusion [][]float64    `json:"normalized_confusion_matrix"`
}

// ConfusionMatrix counts (true, predicted) pairs; rows are true labels.
func ConfusionMatrix(truth, predicted []int, numLabels int) [][]int {
	cm := make([][]int, numLabels)
	for i := range cm {
		cm[i] = make([]int, numLabels)
	}
	for i := range truth {
		t, p := truth[i], predicted[i]
		if t >= 0 && t < numLabels && p >= 0 && p < numLabels {
			cm[t][p]++
		}
	}
	return cm
}

// Normalize divides every row by its sum. Empty rows stay zero.
func Normalize(cm [][]int) [][]float64 {
	out := make([][]float64, len(cm))
	for i, row := range cm {
		out[i] = make([]float64, len(row))
		sum := 0
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		for j, v := range row {
			out[i][j] = float64(v) / float64(sum)
		}
	}
	return out
}

// Accuracy is the share of matching predictions.
func Accuracy(truth, predicted []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	correct := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// Evaluate builds the report over labels. Undefined ratios (no predictions
// or no support for a class) count as 0.
func Evaluate(truth, predicted []int, labels []string) (Report, error) {
	if len(truth) != len(predicted) {
		return Report{}, fmt.Errorf("%d true labels for %d predictions", len(truth), len(predicted))
	}

	k := len(labels)
	cm := ConfusionMatrix(truth, predicted, k)
	report := Report{
		Classes:             make([]ClassMetrics, k),
		Accuracy:            Accuracy(truth, predicted),
		Confusion:           cm,
		NormalizedConfusion: Normalize(cm),
	}

	total := 0
	for c := 0; c < k; c++ {
		tp, support, predictedC := cm[c][c], 0, 0
		for j := 0; j < k; j++ {
			support += cm[c][j]
			predictedC += cm[j][c]
		}
		precision := ratio(tp, predictedC)
		recall := ratio(tp, support)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		report.Classes[c] = ClassMetrics{Label: labels[c], Precision: precision, Recall: recall, F1: f1, Support: support}
		total += support
	}

	report.MacroAvg = ClassMetrics{Label: "macro avg", Support: total}
	report.WeightedAvg = ClassMetrics{Label: "weighted avg", Support: total}
	for _, m := range report.Classes {
		report.MacroAvg.Precision += m.Precision / float64(k)
		report.MacroAvg.Recall += m.Recall / float64(k)
		report.MacroAvg.F1 += m.F1 / float64(k)
		if total > 0 {
			w := float64(m.Support) / float64(total)
			report.WeightedAvg.Precision += m.Precision * w
			report.WeightedAvg.Recall += m.Recall * w
			report.WeightedAvg.F1 += m.F1 * w
		}
	}
	return report, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Render writes the classification report followed by the normalised
// confusion matrix as text tables.
func (r Report) Render(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"label", "precision", "recall", "f1-score", "support"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, m := range r.Classes {
		table.Append(metricsRow(m))
	}
	table.Append([]string{"accuracy", "", "", format(r.Accuracy), strconv.Itoa(r.MacroAvg.Support)})
	table.Append(metricsRow(r.MacroAvg))
	table.Append(metricsRow(r.WeightedAvg))
	table.Render()

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	cm := tablewriter.NewWriter(w)
	header := []string{"true \\ predicted"}
	for _, m := range r.Classes {
		header = append(header, m.Label)
	}
	cm.SetHeader(header)
	cm.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, row := range r.NormalizedConfusion {
		line := []string{r.Classes[i].Label}
		for _, v := range row {
			line = append(line, format(v))
		}
		cm.Append(line)
	}
	cm.Render()
	return nil
}

func metricsRow(m ClassMetrics) []string {
	return []string{m.Label, format(m.Precision), format(m.Recall), format(m.F1), strconv.Itoa(m.Support)}
}
