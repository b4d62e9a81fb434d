package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tree is a decoded structured object. Values are strings, numbers, booleans,
// nil, lists or nested objects.
type Tree map[string]any

var (
	errFieldAbsent = errors.New("field absent")
	errNotANumber  = errors.New("not a number")
	errNotAString  = errors.New("not a string")
)

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case Tree:
		return v.Clone()
	case map[string]any:
		return map[string]any(Tree(v).Clone())
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	case []byte:
		return append([]byte(nil), v...)
	default:
		return v
	}
}

// Has reports whether key is present.
func (t Tree) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// String returns the string value at key.
func (t Tree) String(key string) (string, error) {
	v, ok := t[key]
	if !ok {
		return "", errFieldAbsent
	}
	s, ok := v.(string)
	if !ok {
		return "", errNotAString
	}
	return s, nil
}

// Object returns the nested object at key.
func (t Tree) Object(key string) (Tree, bool) {
	switch v := t[key].(type) {
	case Tree:
		return v, true
	case map[string]any:
		return Tree(v), true
	default:
		return nil, false
	}
}

// Int64 returns the value at key as a 64-bit signed integer. Numbers and
// numeric strings are accepted; fractions and values outside the int64 range
// are rejected.
func (t Tree) Int64(key string) (int64, error) {
	v, ok := t[key]
	if !ok {
		return 0, errFieldAbsent
	}
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is not a 64-bit integer", n)
		}
		return int64(n), nil
	default:
		return 0, errNotANumber
	}
}
