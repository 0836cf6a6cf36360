package aggregate

import (
	"math"
	"sort"
)

// hundredths is 100% expressed at two decimal places
const hundredths = 10000

// Apportion converts counts into percentages with two decimals that sum to
// exactly 100 using the largest-remainder method. Remainder ties go to the
// earlier index. All-zero input yields all zeros.
func Apportion(counts []int) []float64 {
	out := make([]float64, len(counts))
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return out
	}

	units := make([]int, len(counts))
	remainders := make([]int, len(counts))
	assigned := 0
	for i, c := range counts {
		units[i] = c * hundredths / total
		remainders[i] = c * hundredths % total
		assigned += units[i]
	}

	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for k := 0; k < hundredths-assigned; k++ {
		units[order[k]]++
	}

	for i, u := range units {
		out[i] = float64(u) / 100
	}
	return out
}

// ratio returns part/whole as a percentage rounded to two decimals
func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*hundredths) / 100
}
