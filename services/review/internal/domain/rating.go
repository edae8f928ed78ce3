package domain

import (
	"encoding/json"
	"math"
	"strings"
)

var ratingLabels = map[string]int{
	"ONE":   1,
	"TWO":   2,
	"THREE": 3,
	"FOUR":  4,
	"FIVE":  5,
}

// NormalizeRating maps an upstream star rating to 0..5. Integral numbers in
// range are returned as is and the labels ONE..FIVE are accepted in any case.
// Everything else, including nil and fractional values, yields 0.
func NormalizeRating(raw any) int {
	switch v := raw.(type) {
	case int:
		return ratingInRange(float64(v))
	case int32:
		return ratingInRange(float64(v))
	case int64:
		return ratingInRange(float64(v))
	case float32:
		return ratingInRange(float64(v))
	case float64:
		return ratingInRange(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return ratingInRange(f)
	case string:
		return ratingLabels[strings.ToUpper(strings.TrimSpace(v))]
	default:
		return 0
	}
}

func ratingInRange(f float64) int {
	if math.IsNaN(f) || f != math.Trunc(f) || f < 0 || f > 5 {
		return 0
	}
	return int(f)
}
