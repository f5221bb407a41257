package reconcile

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"tree-sync/core/utils"
)

// normalizeValue converts a raw value to the canonical in-memory type of kind:
// string, int64, float64, bool or a UTC-midnight time.Time. Nil pointers and
// blank strings of non-string kinds become nil.
func normalizeValue(kind Kind, raw any) (any, error) {
	raw = deref(raw)
	if raw == nil {
		return nil, nil
	}

	if s, ok := raw.(string); ok && kind != KindString && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch kind {
	case KindString:
		return utils.ToString(raw), nil
	case KindInt:
		return utils.ParseInt(raw)
	case KindFloat:
		f, err := utils.ParseFloat(raw)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case KindDate:
		return utils.ParseDate(raw)
	case KindBool:
		return utils.ToBool(raw), nil
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", kind)
	}
}

// deref unwraps pointers so that drivers and models may hand over *string,
// *float64, *time.Time and the like.
func deref(raw any) any {
	if raw == nil {
		return nil
	}
	v := reflect.ValueOf(raw)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// valuesEqual compares two normalized values. Nil equals only nil. Floats
// compare exactly unless tolerance is positive.
func valuesEqual(a, b any, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		if tolerance > 0 {
			return math.Abs(av-bv) <= tolerance
		}
		return av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}
