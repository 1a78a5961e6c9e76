package serialization

import (
	"fmt"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxBodySize    = 2 << 30 // 2GB - maximum body size
	MaxRecordCount = 1 << 20 // Maximum number of variables plus ops
	MaxNameLen     = 4096    // Maximum variable or op name length
	MaxRank        = 32      // Maximum declared rank
)

// ValidateName checks a variable or op name read from a file.
func ValidateName(name string) error {
	if name == "" {
		return &FormatError{Type: "invalid_name", Details: "empty name"}
	}
	if len(name) > MaxNameLen {
		return &FormatError{
			Type:    "name_too_long",
			Name:    name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxNameLen),
		}
	}
	// Null bytes break the table output and log lines that print names.
	if strings.Contains(name, "\x00") {
		return &FormatError{Type: "invalid_name", Name: name, Details: "contains null byte"}
	}
	return nil
}

func validateHeader(h header) error {
	if h.Version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, h.Version, FormatVersion)
	}
	if h.BodySize > MaxBodySize {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, h.BodySize)
	}
	if unknown := h.Flags &^ (FlagHasValues | FlagHasLosses); unknown != 0 {
		return &FormatError{Type: "unknown_flags", Details: fmt.Sprintf("0x%x", unknown)}
	}
	return nil
}
