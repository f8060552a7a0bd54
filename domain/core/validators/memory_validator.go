package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kondrei/TalkieMartin-BE/domain/config"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// MemoryValidator validates memory-related domain rules that struct tags
// cannot express, such as limits that come from DomainConfig.
type MemoryValidator struct {
	cfg *config.DomainConfig
}

// NewMemoryValidator creates a validator. A nil config uses the defaults.
func NewMemoryValidator(cfg *config.DomainConfig) *MemoryValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &MemoryValidator{cfg: cfg}
}

// Config returns the limits in effect
func (v *MemoryValidator) Config() *config.DomainConfig {
	return v.cfg
}

// ValidateTitle validates a memory title
func (v *MemoryValidator) ValidateTitle(title string) error {
	title = strings.TrimSpace(title)

	if title == "" {
		return errors.NewValidationError("title is required").WithDetail("field", "title")
	}

	if n := utf8.RuneCountInString(title); n > v.cfg.MaxTitleLength {
		return errors.NewValidationError(fmt.Sprintf("title must be at most %d characters", v.cfg.MaxTitleLength)).
			WithDetail("field", "title").
			WithDetail("actual_length", n)
	}

	return nil
}

// ValidateDescription validates an optional description
func (v *MemoryValidator) ValidateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > v.cfg.MaxDescriptionLength {
		return errors.NewValidationError(fmt.Sprintf("description must be at most %d characters", v.cfg.MaxDescriptionLength)).
			WithDetail("field", "description").
			WithDetail("actual_length", n)
	}
	return nil
}

// ValidateTags validates a list of tags
func (v *MemoryValidator) ValidateTags(tags []string) error {
	return v.validateList("tags", tags, v.cfg.MaxTagsPerMemory)
}

// ValidateFamilyMembers validates the family member list
func (v *MemoryValidator) ValidateFamilyMembers(members []string) error {
	return v.validateList("familyMembers", members, v.cfg.MaxFamilyMembers)
}

func (v *MemoryValidator) validateList(field string, values []string, max int) error {
	if len(values) > max {
		return errors.NewValidationError(fmt.Sprintf("cannot have more than %d %s", max, field)).
			WithDetail("field", field).
			WithDetail("count", len(values))
	}

	for i, value := range values {
		if utf8.RuneCountInString(value) > v.cfg.MaxTagLength {
			return errors.NewValidationError(fmt.Sprintf("%s entries must be at most %d characters", field, v.cfg.MaxTagLength)).
				WithDetail("field", field).
				WithDetail("index", i)
		}
	}

	return nil
}

// ValidateFileCount validates the number of files in one request
func (v *MemoryValidator) ValidateFileCount(n int) error {
	if n > v.cfg.MaxFilesPerRequest {
		return errors.NewValidationError(fmt.Sprintf("cannot upload more than %d files at once", v.cfg.MaxFilesPerRequest)).
			WithDetail("field", "files").
			WithDetail("count", n)
	}
	return nil
}

// ValidateFile validates a single upload
func (v *MemoryValidator) ValidateFile(name string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidationError("file name is required").WithDetail("field", "files")
	}

	if size > v.cfg.MaxFileSize {
		return errors.NewValidationError(fmt.Sprintf("file exceeds the maximum size of %d bytes", v.cfg.MaxFileSize)).
			WithDetail("field", "files").
			WithDetail("file", name).
			WithDetail("size", size)
	}

	return nil
}
