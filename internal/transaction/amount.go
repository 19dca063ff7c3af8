package transaction

import "strconv"

// FormatAmount renders a USD amount with the shortest exact decimal, e.g. 0.003.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
