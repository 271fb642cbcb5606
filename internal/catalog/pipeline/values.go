package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func validPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty field path")
	}
	if strings.HasPrefix(path, "$") {
		return fmt.Errorf("field path %q must not start with '$'", path)
	}
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return fmt.Errorf("field path %q has an empty segment", path)
		}
	}
	return nil
}

// lookup resolves a dotted path. Nested documents may be bson.M, bson.D or
// plain maps depending on how the document was decoded.
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch d := cur.(type) {
		case bson.M:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := d[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range d {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath returns a shallow copy of doc with path replaced by v. Intermediate
// documents along the path are copied so the source is never mutated.
func setPath(doc bson.M, path string, v any) bson.M {
	out := make(bson.M, len(doc))
	for k, val := range doc {
		out[k] = val
	}
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		out[head] = v
		return out
	}
	var child bson.M
	switch c := doc[head].(type) {
	case bson.M:
		child = c
	case map[string]any:
		child = bson.M(c)
	default:
		child = bson.M{}
	}
	out[head] = setPath(child, rest, v)
	return out
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return []any(a), true
	case []any:
		return a, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// typeRank orders values of different kinds the way the server's sort does
// for the types a catalog holds: null < numbers < strings < dates < other.
func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case primitive.DateTime, time.Time:
		return 3
	}
	return 4
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	}
	return time.Time{}
}

// compare returns -1, 0 or 1 and whether a and b were comparable within the
// same type bracket.
func compare(a, b any) (int, bool) {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1, false
		}
		return 1, false
	}
	switch ra {
	case 0:
		return 0, true
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	case 2:
		return strings.Compare(a.(string), b.(string)), true
	case 3:
		return toTime(a).Compare(toTime(b)), true
	}
	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(sa, sb), true
}

// groupKey turns a value into a map key; numbers of different widths that are
// equal land in the same group.
func groupKey(v any) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
