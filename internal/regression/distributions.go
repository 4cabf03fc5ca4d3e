package regression

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// TwoSidedTPValue computes the two-sided p-value of a t statistic with the
// given degrees of freedom. A NaN statistic yields NaN.
func TwoSidedTPValue(tStatistic float64, degreesOfFreedom int) float64 {
	if math.IsNaN(tStatistic) || degreesOfFreedom <= 0 {
		return math.NaN()
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(degreesOfFreedom)}
	return clampProbability(2 * tDist.Survival(math.Abs(tStatistic)))
}

// ChiSquarePValue computes the upper-tail p-value of a chi-square statistic.
func ChiSquarePValue(chiSquare, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(chiSquare) {
		return math.NaN()
	}
	chiDist := distuv.ChiSquared{K: degreesOfFreedom}
	return clampProbability(chiDist.Survival(chiSquare))
}

// FTestPValue computes the upper-tail p-value of an F statistic.
func FTestPValue(fStatistic, df1, df2 float64) float64 {
	if df1 <= 0 || df2 <= 0 || math.IsNaN(fStatistic) {
		return math.NaN()
	}
	if fStatistic <= 0 {
		return 1
	}
	fDist := distuv.F{D1: df1, D2: df2}
	return clampProbability(fDist.Survival(fStatistic))
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
