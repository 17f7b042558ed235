package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits for edited sources
const (
	MaxFiles          = 64
	MaxFileSize       = 512 * 1024 // 512KB per file
	MaxFileNameLength = 256
	MaxIDLength       = 128
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// FileNamePattern allows relative module paths such as "src/index.tsx"
	FileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9@._/-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an id that ends up in URLs and log fields
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateFileName accepts clean relative module paths only
func ValidateFileName(name string) error {
	if err := ValidateString(name, "file name", 1, MaxFileNameLength, true); err != nil {
		return err
	}
	if !FileNamePattern.MatchString(name) {
		return fmt.Errorf("file name %q contains invalid characters", name)
	}
	if strings.HasPrefix(name, "/") || path.Clean(name) != name {
		return fmt.Errorf("file name %q must be a clean relative path", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return fmt.Errorf("file name %q escapes the demo", name)
		}
	}
	return nil
}

// ValidateFiles checks an edited source set: file count, names and sizes
func ValidateFiles(files map[string]string) error {
	if len(files) == 0 {
		return fmt.Errorf("source must contain at least one file")
	}
	if len(files) > MaxFiles {
		return fmt.Errorf("source has %d files, at most %d allowed", len(files), MaxFiles)
	}

	for name, content := range files {
		if err := ValidateFileName(name); err != nil {
			return err
		}
		if len(content) > MaxFileSize {
			return fmt.Errorf("file %s exceeds maximum size of %d bytes", name, MaxFileSize)
		}
		if !utf8.ValidString(content) {
			return fmt.Errorf("file %s is not valid UTF-8", name)
		}
	}
	return nil
}
