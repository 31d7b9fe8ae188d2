package dbsink

import (
	"math"
	"regexp"
)

var isoDateTimePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

// InferColumnType implements spec.md §4.7.1's inference table from a
// single representative value.
func InferColumnType(v any) string {
	switch t := v.(type) {
	case nil:
		return "TEXT"
	case bool:
		return "INTEGER"
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt32 && t <= math.MaxInt32 {
			return "INTEGER"
		}
		if t == math.Trunc(t) {
			return "BIGINT"
		}
		return "REAL"
	case int:
		return InferColumnType(float64(t))
	case string:
		if isoDateTimePrefix.MatchString(t) {
			return "DATETIME"
		}
		return "TEXT"
	case map[string]any, []any:
		return "NVARCHAR(MAX)"
	default:
		return "TEXT"
	}
}
