package errors

import (
	"strings"
	"unicode"
)

// ValidateGUID validates a node or edge identifier for safety and correctness.
// GUIDs travel through storage keys, Redis channels, and URL paths, so the
// rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters or null bytes
//   - No path traversal sequences (.., //, backslash)
//   - Maximum length of 256 characters
func ValidateGUID(guid string) error {
	if guid == "" {
		return New(ErrCodeInvalidGUID, "guid cannot be empty")
	}

	if len(guid) > 256 {
		return New(ErrCodeInvalidGUID, "guid too long (max 256 characters)")
	}

	for _, r := range guid {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidGUID, "guid contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(guid, pattern) {
			return New(ErrCodeInvalidGUID, "guid contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateViewID validates a view identifier used for snapshot documents
// and delta subscriptions. Same rules as ValidateGUID plus a slash ban,
// since view IDs appear as single URL path segments.
func ValidateViewID(viewID string) error {
	if viewID == "" {
		return New(ErrCodeInvalidViewID, "view ID cannot be empty")
	}
	if strings.ContainsAny(viewID, "/") {
		return New(ErrCodeInvalidViewID, "view ID must not contain path separators")
	}
	if err := ValidateGUID(viewID); err != nil {
		return New(ErrCodeInvalidViewID, "%s", UserMessage(err))
	}
	return nil
}
