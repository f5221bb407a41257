package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ToInt converts various types to int using explicit type switching.
// It handles standard integer types, floats, strings, and byte slices.
// Unparseable input yields 0; use ParseInt when the caller needs the error.
func ToInt(val any) int {
	i, _ := ParseInt(val)
	return int(i)
}

// ParseInt converts integer, integral float, string and byte slice values to int64.
func ParseInt(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return ParseInt(uint64(v))
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%v overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return ParseInt(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		// GeoJSON exports frequently write years as "1987.0"
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as integer", v)
		}
		return ParseInt(f)
	case []byte:
		return ParseInt(string(v))
	default:
		return 0, fmt.Errorf("unsupported integer type %T", val)
	}
}

// ParseFloat converts numeric, string and byte slice values to float64.
func ParseFloat(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		i, err := ParseInt(v)
		return float64(i), err
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(v, ",", ".", 1)), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", v)
		}
		return f, nil
	case []byte:
		return ParseFloat(string(v))
	default:
		return 0, fmt.Errorf("unsupported number type %T", val)
	}
}

// ToString converts various types to string.
func ToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToBool converts various types to bool.
// It handles bool, numeric types (1=true), and strings ("1", "true").
func ToBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8:
		return ToInt(v) == 1
	case string:
		return v == "1" || strings.ToLower(v) == "true"
	case []byte:
		s := string(v)
		return s == "1" || strings.ToLower(s) == "true"
	default:
		return false
	}
}

// DateLayout is the single textual date format used in files and APIs.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02Z",
}

// ParseDate converts time values and date strings to a calendar date,
// represented as time.Time at midnight UTC.
func ParseDate(val any) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return TruncateDate(v), nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil date")
		}
		return TruncateDate(*v), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return TruncateDate(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as date", v)
	case []byte:
		return ParseDate(string(v))
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", val)
	}
}

// TruncateDate drops the clock part of t, keeping the calendar date as seen in t's location.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
