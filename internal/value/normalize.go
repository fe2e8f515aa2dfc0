package value

// NormalizeNumbers rewrites a decoded value tree so that every integral
// number is an int64. CUE, YAML and hand-written Go literals disagree on
// the concrete type they produce for "1"; change detection compares
// deeply by type, so definition files and payloads are normalized to one
// numeric spelling before they reach the engine.
func NormalizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = NormalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = NormalizeNumbers(e)
		}
		return out
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return NormalizeNumbers(float64(val))
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return v
	}
}
