package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sensitiveTokens = []string{
	"password",
	"token",
	"secret",
	"authorization",
	"cookie",
}

// SanitizeFields masks credential-bearing fields before they reach a sink.
// Nested maps are walked; anything under a sensitive key becomes "***".
func SanitizeFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		if isSensitiveKey(field.Key) {
			out = append(out, zap.String(field.Key, "***"))
			continue
		}

		enc := zapcore.NewMapObjectEncoder()
		field.AddTo(enc)
		value, ok := enc.Fields[field.Key]
		if !ok {
			out = append(out, field)
			continue
		}
		out = append(out, zap.Any(field.Key, maskValue(field.Key, value)))
	}
	return out
}

func maskValue(key string, value interface{}) interface{} {
	if isSensitiveKey(key) {
		return "***"
	}

	switch typed := value.(type) {
	case map[string]interface{}:
		masked := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			masked[k] = maskValue(k, v)
		}
		return masked
	case []interface{}:
		masked := make([]interface{}, len(typed))
		for i, item := range typed {
			masked[i] = maskValue(key, item)
		}
		return masked
	default:
		return typed
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	if normalized == "" {
		return false
	}

	for _, token := range sensitiveTokens {
		if strings.Contains(normalized, token) {
			return true
		}
	}
	return false
}
