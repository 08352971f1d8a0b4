package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxIDLength          = 128
	MaxNameLength        = 256
	MaxDescriptionLength = 2048
	MaxURILength         = 2048
	MaxStateBlobSize     = 512 * 1024 // 512KB per-widget private state
)

// Regular expressions for validation
var (
	// PluginIDPattern allows lowercase slugs: letters, digits, hyphens, underscores
	PluginIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidatePluginID validates a plugin identifier slug
func ValidatePluginID(id string) error {
	if err := ValidateString(id, "plugin_id", 1, MaxIDLength, true); err != nil {
		return err
	}

	if !PluginIDPattern.MatchString(id) {
		return fmt.Errorf("plugin_id contains invalid characters (only lowercase letters, digits, hyphens, and underscores allowed)")
	}

	return nil
}

// ValidateID validates a generic ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateName validates a display name field
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateDescription validates a description field
func ValidateDescription(description, fieldName string, required bool) error {
	return ValidateString(description, fieldName, 0, MaxDescriptionLength, required)
}

// ValidateURI validates a source location string (path or URL)
func ValidateURI(uri string) error {
	return ValidateString(uri, "uri_or_path", 1, MaxURILength, true)
}

// ValidateStateBlob bounds a widget's serialized private state
func ValidateStateBlob(blob []byte) error {
	if len(blob) > MaxStateBlobSize {
		return fmt.Errorf("private state %d bytes exceeds maximum %d bytes", len(blob), MaxStateBlobSize)
	}
	return nil
}
