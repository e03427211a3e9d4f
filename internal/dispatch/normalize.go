package dispatch

import (
	"math"

	"github.com/umarmk/mcp-server/internal/query"
)

// maxExactFloat is the largest integer a float64 holds exactly (2^53).
const maxExactFloat = 1 << 53

// normalizeArg converts JSON numbers that are whole into int64 so they bind
// to integer columns. JSON decoding into any yields float64 for every number.
func normalizeArg(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) <= maxExactFloat {
			return int64(x)
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeArg(e)
		}
		return out
	default:
		return v
	}
}

func normalizeArgs(args []any) []any {
	if args == nil {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = normalizeArg(a)
	}
	return out
}

func normalizeValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeArg(v)
	}
	return out
}

func normalizeFilters(filters []query.Filter) []query.Filter {
	if filters == nil {
		return nil
	}
	out := make([]query.Filter, len(filters))
	for i, f := range filters {
		f.Value = normalizeArg(f.Value)
		out[i] = f
	}
	return out
}
