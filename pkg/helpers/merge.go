package helpers

// DeepMerge returns defaults overlaid with override. Nested objects merge
// recursively; every other value, arrays included, replaces the default
// wholesale, so a one-element palette overrides a three-element one.
// Neither input is mutated.
func DeepMerge(defaults, override map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(override))
	for k, v := range defaults {
		out[k] = cloneValue(v)
	}
	for k, v := range override {
		src, srcIsMap := asMap(v)
		dst, dstIsMap := asMap(out[k])
		if srcIsMap && dstIsMap {
			out[k] = DeepMerge(dst, src)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	if m, ok := asMap(v); ok {
		return DeepMerge(nil, m)
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}
