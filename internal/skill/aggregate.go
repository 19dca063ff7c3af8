package skill

import "math"

// Aggregate folds a new rating into the ratings already on record and returns
// the review count and the mean rounded to one decimal.
func Aggregate(prior []int, rating int) (int, float64) {
	sum := rating
	for _, r := range prior {
		sum += r
	}
	total := len(prior) + 1
	return total, roundOneDecimal(float64(sum) / float64(total))
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
