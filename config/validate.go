package config

import (
	"fmt"
	"math"
	"strconv"
)

type valueCache struct {
	stringVal      string
	stringArrayVal []string
	intVal         int64
	boolVal        bool
}

func (vc *valueCache) getData(opt *Option) interface{} {
	if vc == nil {
		return nil
	}

	switch opt.OptType {
	case OptTypeBool:
		return vc.boolVal
	case OptTypeInt:
		return vc.intVal
	case OptTypeString:
		return vc.stringVal
	case OptTypeStringArray:
		return vc.stringArrayVal
	default:
		return nil
	}
}

// matchesRegex checks the value against the validation regex, if
// the option has one.
func (option *Option) matchesRegex(v string) bool {
	return option.compiledRegex == nil || option.compiledRegex.MatchString(v)
}

func validateValue(option *Option, value interface{}) (*valueCache, error) { //nolint:gocyclo
	switch v := value.(type) {
	case string:
		if option.OptType != OptTypeString {
			return nil, newInvalidValueError(option.Key, v, "expected type "+getTypeName(option.OptType))
		}
		if !option.matchesRegex(v) {
			return nil, newInvalidValueError(option.Key, v, "validation regex failed")
		}
		return &valueCache{stringVal: v}, nil

	case []interface{}:
		vConverted := make([]string, len(v))
		for pos, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, newInvalidValueError(option.Key, fmt.Sprintf("element %+v at index %d", entry, pos), "not a string")
			}
			vConverted[pos] = s
		}
		// continue to next case
		return validateValue(option, vConverted)

	case []string:
		if option.OptType != OptTypeStringArray {
			return nil, newInvalidValueError(option.Key, v, "expected type "+getTypeName(option.OptType))
		}
		for pos, entry := range v {
			if !option.matchesRegex(entry) {
				return nil, newInvalidValueError(option.Key, fmt.Sprintf("element %s at index %d", entry, pos), "validation regex failed")
			}
		}
		return &valueCache{stringArrayVal: v}, nil

	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, float32, float64:
		// uint64 is omitted, as it does not fit in a int64
		if option.OptType != OptTypeInt {
			return nil, newInvalidValueError(option.Key, v, "expected type "+getTypeName(option.OptType))
		}
		intVal, ok := toInt64(v)
		if !ok {
			return nil, newInvalidValueError(option.Key, v, "failed to convert to int64")
		}
		// match the decimal form, as floats from json would print in exponent notation.
		if !option.matchesRegex(strconv.FormatInt(intVal, 10)) {
			return nil, newInvalidValueError(option.Key, v, "validation regex failed")
		}
		return &valueCache{intVal: intVal}, nil

	case bool:
		if option.OptType != OptTypeBool {
			return nil, newInvalidValueError(option.Key, v, "expected type "+getTypeName(option.OptType))
		}
		return &valueCache{boolVal: v}, nil

	default:
		return nil, newInvalidValueError(option.Key, fmt.Sprintf("%T", v), "invalid value")
	}
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float32:
		// convert if float has no decimals
		if math.Remainder(float64(v), 1) == 0 {
			return int64(v), true
		}
	case float64:
		// convert if float has no decimals
		if math.Remainder(v, 1) == 0 {
			return int64(v), true
		}
	}
	return 0, false
}
