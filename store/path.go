package store

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// NormalizePath trims leading and trailing separators from a logical path,
// collapses empty and "." segments and rejects parent directory segments.
// Both "/" and "\" are treated as separators. The result uses "/" and is
// empty for the backend root.
func NormalizePath(logicalPath string) (string, error) {
	p := strings.ReplaceAll(logicalPath, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	if strings.ContainsRune(p, 0) {
		return "", NewError(KindPathSafety, "", "", logicalPath, fmt.Errorf("path contains null byte"))
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", NewError(KindPathSafety, "", "", logicalPath, fmt.Errorf("path contains parent directory segment"))
		}
	}
	p = path.Clean(p)
	if p == "." {
		return "", nil
	}
	return p, nil
}

// ValidateFilename rejects names that are not a single path element.
func ValidateFilename(name string) error {
	if name == "" {
		return NewError(KindPathSafety, "", "", name, fmt.Errorf("filename cannot be empty"))
	}
	if name == "." || name == ".." {
		return NewError(KindPathSafety, "", "", name, fmt.Errorf("filename cannot be %q", name))
	}
	if strings.ContainsAny(name, "/\\") {
		return NewError(KindPathSafety, "", "", name, fmt.Errorf("filename contains path separator"))
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return NewError(KindPathSafety, "", "", name, fmt.Errorf("filename contains control character: %q", r))
		}
	}
	return nil
}

// JoinUnder joins a normalized logical path onto root and verifies that the
// result does not leave root.
func JoinUnder(root, logicalPath string) (string, error) {
	abs := filepath.Join(root, filepath.FromSlash(logicalPath))
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewError(KindPathSafety, "", "", logicalPath, fmt.Errorf("path escapes storage root"))
	}
	return abs, nil
}

// ObjectKey builds the object key for a handle under an optional prefix.
func ObjectKey(prefix string, h *FileHandle) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return h.Key()
	}
	return prefix + "/" + h.Key()
}
