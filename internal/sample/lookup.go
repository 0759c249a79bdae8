package sample

import "strconv"

// Lookup 按优先级顺序从原始 payload 中取数值字段
// 查找顺序：顶层字段 → inference 嵌套块，keys 本身即为备选名的优先级列表。
// 0 和 0.0 是合法值，不视为缺失；仅当所有路径都未命中时返回 ok=false。
func Lookup(raw map[string]any, keys ...string) (float64, bool) {
	if raw == nil {
		return 0, false
	}

	for _, key := range keys {
		if v, ok := asFloat(raw[key]); ok {
			return v, true
		}
	}

	inf, ok := raw["inference"].(map[string]any)
	if !ok {
		return 0, false
	}

	for _, key := range keys {
		if v, ok := asFloat(inf[key]); ok {
			return v, true
		}
	}

	return 0, false
}

// LookupString 与 Lookup 相同的优先级规则，但返回字符串字段
func LookupString(raw map[string]any, keys ...string) (string, bool) {
	if raw == nil {
		return "", false
	}

	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s, true
		}
	}

	inf, ok := raw["inference"].(map[string]any)
	if !ok {
		return "", false
	}

	for _, key := range keys {
		if s, ok := inf[key].(string); ok && s != "" {
			return s, true
		}
	}

	return "", false
}

// asFloat 将 JSON 解码产物转换为 float64
// 支持 float64、int、数字字符串以及 {"value": x} 包装
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case map[string]any:
		if inner, ok := t["value"]; ok {
			return asFloat(inner)
		}
	}
	return 0, false
}
