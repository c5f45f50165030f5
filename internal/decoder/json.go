package decoder

// Small strict accessors over a decoded JSON object. Each returns a
// *DecodeError on the specific failure so callers can return it directly.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func requireString(m map[string]any, key string) (string, error) {
	v, present := m[key]
	if !present {
		return "", newDecodeError(ErrMissingField, "missing required field "+key)
	}
	s, ok := v.(string)
	if !ok {
		return "", newDecodeError(ErrTypeMismatch, "field "+key+" is not a string")
	}
	return s, nil
}

func optString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func optInt(m map[string]any, key string) *int {
	if v, ok := m[key].(float64); ok {
		i := int(v)
		return &i
	}
	return nil
}

func optInt64(m map[string]any, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func optFloat(m map[string]any, key string) *float64 {
	if v, ok := m[key].(float64); ok {
		f := v
		return &f
	}
	return nil
}

func requireMap(m map[string]any, key string) (map[string]any, error) {
	v, present := m[key]
	if !present {
		return nil, newDecodeError(ErrMissingField, "missing required field "+key)
	}
	sub, ok := asMap(v)
	if !ok {
		return nil, newDecodeError(ErrTypeMismatch, "field "+key+" is not an object")
	}
	return sub, nil
}

func requireSlice(m map[string]any, key string) ([]any, error) {
	v, present := m[key]
	if !present {
		return nil, newDecodeError(ErrMissingField, "missing required field "+key)
	}
	s, ok := asSlice(v)
	if !ok {
		return nil, newDecodeError(ErrTypeMismatch, "field "+key+" is not an array")
	}
	return s, nil
}
