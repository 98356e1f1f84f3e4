package retrieval

import "strconv"

// compareNumeric compares two field values as numbers, reading only the
// leading numeric prefix of each (so "1.4kg" compares as 1.4, "$1999" as
// 1999). Non-numeric values always compare as lower, so a SKU missing
// the field never satisfies a gte/lte filter by accident.
func compareNumeric(a, b string) int {
	av, aok := leadingNumber(a)
	bv, bok := leadingNumber(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func leadingNumber(s string) (float64, bool) {
	start := -1
	end := -1
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		isDot := r == '.'
		if isDigit || isDot {
			if start == -1 {
				start = i
			}
			end = i + 1
		} else if start != -1 {
			break
		}
	}
	if start == -1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
