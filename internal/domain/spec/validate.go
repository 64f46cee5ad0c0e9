package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lllypuk/specd/internal/domain/errs"
)

// Validation limits for spec names and content.
const (
	MaxNameLength   = 255
	MaxContentBytes = 2048
)

// ValidateName checks that a spec name is a valid identifier.
// Allowed characters: ASCII letters, digits, '-', '_' and '.'.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", errs.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", errs.ErrValidation, MaxNameLength)
	}
	for _, r := range name {
		if !isNameRune(r) {
			return fmt.Errorf("%w: name contains invalid character %q", errs.ErrValidation, r)
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	default:
		return false
	}
}

// ValidateContent checks that spec content is non-empty, within the size
// ceiling and well-formed YAML. Content is always stored in full, so a single
// fact is self-sufficient to read that version.
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content cannot be empty", errs.ErrValidation)
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content too large (max %d bytes)", errs.ErrValidation, MaxContentBytes)
	}

	var doc any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("%w: content is not valid YAML: %v", errs.ErrValidation, err)
	}

	return nil
}
