package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ClassScores are the precision, recall and F1 of one class or average.
type ClassScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is a per-class classification report with a confusion matrix.
// Rows of Confusion are true classes, columns predicted classes.
type Report struct {
	Labels      []string
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
	Confusion   [][]int
}

// NewReport scores predictions against ground truth.
func NewReport(yTrue, yPred []int, labels []string) Report {
	k := len(labels)
	r := Report{Labels: labels, Classes: make([]ClassScores, k), Confusion: make([][]int, k)}
	for i := range r.Confusion {
		r.Confusion[i] = make([]int, k)
	}
	hits := 0
	for i, t := range yTrue {
		p := yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			continue
		}
		r.Confusion[t][p]++
		if t == p {
			hits++
		}
	}
	if len(yTrue) > 0 {
		r.Accuracy = float64(hits) / float64(len(yTrue))
	}

	total := 0
	for c := 0; c < k; c++ {
		tp, predicted, support := r.Confusion[c][c], 0, 0
		for o := 0; o < k; o++ {
			predicted += r.Confusion[o][c]
			support += r.Confusion[c][o]
		}
		s := ClassScores{Support: support}
		s.Precision = ratio(tp, predicted)
		s.Recall = ratio(tp, support)
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		r.Classes[c] = s
		total += support

		r.MacroAvg.Precision += s.Precision / float64(k)
		r.MacroAvg.Recall += s.Recall / float64(k)
		r.MacroAvg.F1 += s.F1 / float64(k)
	}
	r.MacroAvg.Support = total
	r.WeightedAvg.Support = total
	if total > 0 {
		for _, s := range r.Classes {
			w := float64(s.Support) / float64(total)
			r.WeightedAvg.Precision += s.Precision * w
			r.WeightedAvg.Recall += s.Recall * w
			r.WeightedAvg.F1 += s.F1 * w
		}
	}
	return r
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// MarshalJSON writes the report keyed by label, with "accuracy", "macro avg"
// and "weighted avg" entries.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Labels)+3)
	for i, l := range r.Labels {
		out[l] = r.Classes[i]
	}
	out["accuracy"] = r.Accuracy
	out["macro avg"] = r.MacroAvg
	out["weighted avg"] = r.WeightedAvg
	return json.Marshal(out)
}

// String renders the report as an aligned text table.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for i, l := range r.Labels {
		s := r.Classes[i]
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", l, s.Precision, s.Recall, s.F1, s.Support)
	}
	fmt.Fprintf(&b, "\n%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, row := range []struct {
		name string
		s    ClassScores
	}{{"macro avg", r.MacroAvg}, {"weighted avg", r.WeightedAvg}} {
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", row.name, row.s.Precision, row.s.Recall, row.s.F1, row.s.Support)
	}
	return b.String()
}
