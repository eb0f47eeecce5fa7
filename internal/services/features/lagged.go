package features

// LagFeatureNames labels the columns produced by LaggedMatrix.
var LagFeatureNames = []string{"lag1", "lag2", "ma5", "ma10", "std10", "max10", "min10"}

// LaggedMatrix builds one feature row per index i >= 10 from data up to i.
// Rows are returned with the source index so callers can attach targets.
func LaggedMatrix(values []float64) (rows [][]float64, idx []int) {
	const warm = 10
	if len(values) <= warm {
		return nil, nil
	}
	ma5 := TrailingMean(values, 5)
	ma10 := TrailingMean(values, 10)
	std10 := RollingStd(values, 10)
	max10 := RollingMax(values, 10)
	min10 := RollingMin(values, 10)
	for i := warm; i < len(values); i++ {
		rows = append(rows, []float64{
			values[i-1], values[i-2], ma5[i], ma10[i], std10[i], max10[i], min10[i],
		})
		idx = append(idx, i)
	}
	return rows, idx
}
