// Package util holds small helpers shared across packages.
package util

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the cleaned WRITABLE_PATH environment variable when it is set.
// It accepts both uppercase and lowercase variants.
func WritablePath() string {
	for _, key := range []string{"WRITABLE_PATH", "writable_path"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return filepath.Clean(value)
		}
	}
	return ""
}

// HideSecret obscures a credential for logging, keeping only a few characters at each end.
func HideSecret(secret string) string {
	var keep int
	switch n := len(secret); {
	case n > 8:
		keep = 4
	case n > 4:
		keep = 2
	case n > 2:
		keep = 1
	default:
		return secret
	}
	return secret[:keep] + "..." + secret[len(secret)-keep:]
}

// sensitiveParamMarkers flag query parameters whose values never reach the logs.
var sensitiveParamMarkers = []string{"token", "secret", "password", "totp", "api_key", "apikey"}

// MaskSensitiveQuery masks credential-like query parameters (tokens, passwords, TOTP codes)
// within a raw query string. Other parameters are kept byte for byte.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		key, value, _ := strings.Cut(part, "=")
		name, errKey := url.QueryUnescape(key)
		if errKey != nil {
			name = key
		}
		if !isSensitiveParam(name) {
			continue
		}
		plain, errValue := url.QueryUnescape(value)
		if errValue != nil {
			plain = value
		}
		parts[i] = key + "=" + url.QueryEscape(HideSecret(strings.TrimSpace(plain)))
	}
	return strings.Join(parts, "&")
}

func isSensitiveParam(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), "[]")
	if name == "code" || name == "key" {
		return true
	}
	for _, marker := range sensitiveParamMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
