package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"masterauth",
	"requirepass",
	"credential",
	"auth",
}

// Keys whose values are user data and may be arbitrarily large.
var valueKeys = []string{
	"value",
	"payload",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// MaxValueLen is the length beyond which value attributes are truncated.
const MaxValueLen = 64

// redactAttr masks credential-like attributes and truncates stored
// values. Groups are handled recursively.
func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if isValueKey(a.Key) {
			return slog.String(a.Key, Truncate(strVal))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// Truncate shortens value to MaxValueLen bytes, noting the original size.
func Truncate(value string) string {
	if len(value) <= MaxValueLen {
		return value
	}
	return fmt.Sprintf("%s...(%d bytes)", value[:MaxValueLen], len(value))
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

func isValueKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, k := range valueKeys {
		if keyLower == k {
			return true
		}
	}
	return false
}
