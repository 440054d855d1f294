package inference

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// topClass picks the argmax class from a logit vector and computes its
// probability with a numerically stable softmax (max subtracted before
// exponentiation).
func topClass(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return 0, 0
	}

	scores := make([]float64, len(logits))
	for i, v := range logits {
		scores[i] = float64(v)
	}

	idx := floats.MaxIdx(scores)
	max := scores[idx]
	for i := range scores {
		scores[i] = math.Exp(scores[i] - max)
	}

	return idx, scores[idx] / floats.Sum(scores)
}
