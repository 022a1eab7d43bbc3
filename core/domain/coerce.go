package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/tidwall/gjson"
)

// ToFloat64 converts numeric values, and strings holding numbers, to float64.
// The boolean reports whether the conversion succeeded.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case gjson.Result:
		switch val.Type {
		case gjson.Number:
			return val.Num, true
		case gjson.String:
			return ToFloat64(val.Str)
		}
		return 0, false
	default:
		return 0, false
	}
}

func unixSecondsToTime(s int64) time.Time {
	if s <= 0 {
		return time.Time{}
	}
	return time.Unix(s, 0)
}

// ToTime converts timestamps to time.Time. Strings are tried as RFC3339 first
// and then handed to dateparse; whole numbers are Unix seconds.
func ToTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return unixSecondsToTime(t), nil
	case float64:
		if t != float64(int64(t)) {
			return time.Time{}, fmt.Errorf("%v is not a whole number of seconds", t)
		}
		return unixSecondsToTime(int64(t)), nil
	case string:
		tm, err := time.Parse(time.RFC3339, t)
		if err != nil {
			tm, err = dateparse.ParseAny(t)
			if err != nil {
				return time.Time{}, fmt.Errorf("could not parse %q as a time: %v", t, err)
			}
		}
		return tm, nil
	case gjson.Result:
		switch t.Type {
		case gjson.Number:
			return ToTime(t.Num)
		case gjson.String:
			return ToTime(t.Str)
		}
		return time.Time{}, fmt.Errorf("%s is not a time", t.Type)
	default:
		return time.Time{}, fmt.Errorf("%v is not a time", v)
	}
}

// splitField splits a `path:value` operand at the first colon.
func splitField(operand string) (path, value string, ok bool) {
	i := strings.IndexByte(operand, ':')
	if i <= 0 {
		return "", "", false
	}
	return operand[:i], operand[i+1:], true
}
