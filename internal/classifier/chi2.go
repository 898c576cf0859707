package classifier

import "math"

// chiSquareQ returns the upper-tail probability (one minus the CDF) of the
// chi-squared distribution with dof degrees of freedom at statistic x. The
// closed-form series only holds for even dof, which is all the combiner
// ever needs: it always passes twice the predictor count.
func chiSquareQ(x float64, dof int) float64 {
	if dof <= 0 || x <= 0 || math.IsNaN(x) {
		return 1
	}
	m := x / 2
	term := math.Exp(-m)
	sum := term
	for i := 1; i < dof/2; i++ {
		term *= m / float64(i)
		sum += term
	}
	return math.Min(sum, 1)
}
