// Package utils provides small helpers shared across llmi: home directory
// expansion, binary content sniffing and environment filtering.
package utils

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// sniffLen is the number of leading bytes inspected for NUL bytes
const sniffLen = 512

// ExpandHomePath expands a leading ~ to the given home directory.
// Paths such as ~user are returned unchanged.
func ExpandHomePath(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ExpandUserPath expands a leading ~ using the current user's home directory.
func ExpandUserPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return ExpandHomePath(path, home)
}

// IsBinary reports whether data looks like binary content. The first 512
// bytes are checked for NULL bytes, and anything that is not valid UTF-8
// is treated as binary as well.
func IsBinary(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	for _, b := range head {
		if b == 0 {
			return true
		}
	}
	return !utf8.Valid(data)
}

// FilterEnv returns env without the entries whose key is listed in drop.
func FilterEnv(env []string, drop ...string) []string {
	if len(drop) == 0 {
		return env
	}
	blocked := make(map[string]bool, len(drop))
	for _, key := range drop {
		blocked[key] = true
	}

	filtered := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if blocked[key] {
			continue
		}
		filtered = append(filtered, kv)
	}
	return filtered
}
