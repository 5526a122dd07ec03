package db

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wesm/barview/internal/query"
)

// Float converts a driver value to float64. NULL, NaN, Inf and
// anything non-numeric become 0. DECIMAL columns arrive as text
// from the MySQL driver.
func Float(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case uint64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case []byte:
		return Float(string(x))
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return 0
		}
		f = d.InexactFloat64()
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Int converts a driver value to int64, rounding fractional
// values. Same NULL rules as Float.
func Int(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	}
	return int64(math.Round(Float(v)))
}

// Text converts a driver value to a string. NULL is "" and
// timestamps use query.TimestampLayout.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(query.TimestampLayout)
	}
	return fmt.Sprint(v)
}

// Bool reports whether a driver value is true or a nonzero number.
func Bool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return Float(v) != 0
}
