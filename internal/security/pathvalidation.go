// Package security confines user-supplied scan filenames to the configured
// output directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its directory.
var ErrPathEscape = errors.New("path escapes output directory")

// ValidatePathWithinDirectory checks that filePath, with symlinks in its
// existing prefix resolved, stays inside safeDir. safeDir must exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	canonicalPath := canonicalize(absPath)
	relPath, err := filepath.Rel(canonicalSafeDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, ErrPathEscape)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("%s attempts to escape %s: %w", filePath, safeDir, ErrPathEscape)
	}
	return nil
}

// canonicalize resolves symlinks in the longest existing prefix of absPath,
// so /out/link/new.obj with link -> /etc is seen as /etc/new.obj.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, _ := filepath.Rel(dir, absPath)
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			return absPath
		}
	}
}

// ResolveScanPath turns a requested scan filename into a path inside
// outputDir, creating outputDir if needed. Relative names are taken
// relative to outputDir. An empty name uses fallback, sanitized, with ext
// appended. A name that resolves to outputDir itself is rejected.
func ResolveScanPath(outputDir, name, fallback, ext string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if name == "" {
		name = SanitizeFilename(fallback)
		if ext != "" {
			name += "." + ext
		}
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(outputDir, path)
	}
	if err := ValidatePathWithinDirectory(path, outputDir); err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if canonicalize(absPath) == canonicalize(absDir) {
		return "", fmt.Errorf("%q names the output directory itself: %w", name, ErrPathEscape)
	}
	return filepath.Clean(path), nil
}

// SanitizeFilename makes a safe filename from an arbitrary string such as a
// session id. Characters other than ASCII letters, digits, dot, underscore
// and dash become a single underscore; the result is at most 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "scan"
	}
	return out
}
