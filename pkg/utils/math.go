package utils

import (
	"math"
)

// AreWithinPercentage checks whether two numbers are within tolerance (a
// fraction of the larger magnitude) of each other, and returns the difference
// as a percentage.
func AreWithinPercentage(num1, num2, tolerance float64) (bool, float64) {
	if num1 == 0 && num2 == 0 {
		return true, 0
	}

	tolerance = math.Abs(tolerance)
	diff := math.Abs(num1 - num2)
	reference := math.Max(math.Abs(num1), math.Abs(num2))

	diffPercent := (diff / reference) * 100

	return diff <= reference*tolerance, diffPercent
}

// SecondsToHours converts a runtime in seconds to fractional hours.
func SecondsToHours(seconds float64) float64 {
	return seconds / 3600
}

func RoundUpToTwoDecimals(num float64) float64 {
	return math.Round(num*100) / 100
}
