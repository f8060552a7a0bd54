package validators

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kondrei/TalkieMartin-BE/domain/config"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

func TestMemoryValidator(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxTitleLength = 10
	cfg.MaxTagsPerMemory = 2
	cfg.MaxTagLength = 5
	cfg.MaxFilesPerRequest = 2
	cfg.MaxFileSize = 100
	v := NewMemoryValidator(cfg)

	tests := []struct {
		name    string
		err     error
		invalid bool
	}{
		{"valid title", v.ValidateTitle(" Trip "), false},
		{"blank title", v.ValidateTitle("   "), true},
		{"long title", v.ValidateTitle(strings.Repeat("x", 11)), true},
		{"tags within limit", v.ValidateTags([]string{"a", "b"}), false},
		{"too many tags", v.ValidateTags([]string{"a", "b", "c"}), true},
		{"long tag", v.ValidateTags([]string{"abcdef"}), true},
		{"file count", v.ValidateFileCount(3), true},
		{"file ok", v.ValidateFile("a.jpg", 100), false},
		{"file too large", v.ValidateFile("a.jpg", 101), true},
		{"file unnamed", v.ValidateFile("", 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.invalid {
				assert.True(t, errors.IsValidation(tt.err))
			} else {
				assert.NoError(t, tt.err)
			}
		})
	}
}

func TestNewMemoryValidator_DefaultsOnNil(t *testing.T) {
	v := NewMemoryValidator(nil)
	assert.Equal(t, config.DefaultDomainConfig().MaxTitleLength, v.Config().MaxTitleLength)
}
