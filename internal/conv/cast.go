package conv

import (
	"fmt"
	"math"
	"strconv"
)

// IntToUint64 converts int to uint64 safely.
func IntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint64 (negative)", v)
	}
	return uint64(v), nil
}

// Uint64ToInt converts uint64 to int safely.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("integer overflow: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}

// Float64ToInt converts an integral float64 to int safely.
func Float64ToInt(v float64) (int, error) {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	if v < math.MinInt || v >= math.MaxInt {
		return 0, fmt.Errorf("integer overflow: %v cannot be converted to int", v)
	}
	return int(v), nil
}

// ToInt converts a decoded number (as produced by JSON and YAML decoders)
// to int. Strings are accepted when they hold a base-10 integer.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, fmt.Errorf("integer overflow: %d cannot be converted to int", n)
		}
		return int(n), nil
	case uint32:
		return Uint64ToInt(uint64(n))
	case uint64:
		return Uint64ToInt(n)
	case uint:
		return Uint64ToInt(uint64(n))
	case float64:
		return Float64ToInt(n)
	case float32:
		return Float64ToInt(float64(n))
	case string:
		return strconv.Atoi(n)
	case fmt.Stringer:
		return strconv.Atoi(n.String())
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// ToUint64 converts a decoded number to uint64.
func ToUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case int:
		return IntToUint64(n)
	case int32:
		return IntToUint64(int(n))
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("integer overflow: %d cannot be converted to uint64 (negative)", n)
		}
		return uint64(n), nil
	case float64:
		if n < 0 || n != math.Trunc(n) || n >= math.MaxUint64 {
			return 0, fmt.Errorf("%v cannot be converted to uint64", n)
		}
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	case fmt.Stringer:
		return strconv.ParseUint(n.String(), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to uint64", v)
	}
}
