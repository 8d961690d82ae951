package riskscore

import (
	"sort"
)

// Metrics summarizes held-out classifier quality
type Metrics struct {
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	AUC          float64 `json:"auc"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
}

// Evaluate scores probabilities against 0/1 labels at a 0.5 cut-off.
// Undefined ratios (zero division, single-class AUC) are reported as 0.
func Evaluate(labels, probs []float64) *Metrics {
	m := &Metrics{}
	n := len(labels)
	if n == 0 {
		return m
	}

	var tp, fp, tn, fn float64
	for i, y := range labels {
		predicted := probs[i] >= 0.5
		switch {
		case predicted && y == 1:
			tp++
		case predicted:
			fp++
		case y == 1:
			fn++
		default:
			tn++
		}
	}

	m.Accuracy = (tp + tn) / float64(n)
	m.Precision = ratio(tp, tp+fp)
	m.Recall = ratio(tp, tp+fn)
	m.F1 = ratio(2*m.Precision*m.Recall, m.Precision+m.Recall)
	m.AUC = auc(labels, probs)
	return m
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// auc is the Mann-Whitney estimate with average ranks for ties
func auc(labels, probs []float64) float64 {
	n := len(labels)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, y := range labels {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
