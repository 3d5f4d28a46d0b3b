package deck

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// ConfigurationError reports a usage error detected before any device
// interaction: a missing slot, a kind mismatch, a well index outside a
// container's valid range, or an overlapping reagent claim.
//
// Configuration errors are always fatal to setup; they indicate the
// protocol and the deck disagree, not a transient condition.
type ConfigurationError struct {
	Code    string // error category, e.g. "SLOT_NOT_FOUND"
	Message string
}

// Configuration error codes.
const (
	CodeSlotNotFound    = "SLOT_NOT_FOUND"
	CodeKindMismatch    = "KIND_MISMATCH"
	CodeIndexOutOfRange = "INDEX_OUT_OF_RANGE"
	CodeReagentOverlap  = "REAGENT_OVERLAP"
	CodeVolumeExceeded  = "VOLUME_EXCEEDS_CAPACITY"
	CodeEmptyAssignment = "EMPTY_ASSIGNMENT"
)

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigurationError builds a ConfigurationError with a formatted
// message.
func NewConfigurationError(code, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is (or wraps) a
// ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// LoadError represents an error that occurred during layout loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

// Layout load error codes.
const (
	ErrCodeNotFound    = "LAYOUT_NOT_FOUND"
	ErrCodeScanError   = "LAYOUT_SCAN_ERROR"
	ErrCodeNoFiles     = "LAYOUT_NO_FILES"
	ErrCodeLoadFailed  = "LAYOUT_LOAD_FAILED"
	ErrCodeBuildFailed = "LAYOUT_BUILD_FAILED"
	ErrCodeBadSlot     = "LAYOUT_BAD_SLOT"
	ErrCodeDuplicate   = "LAYOUT_DUPLICATE_SLOT"
)

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
