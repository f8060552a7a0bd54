package config

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Record constraints
	MaxTitleLength       int
	MaxDescriptionLength int
	MaxTagsPerMemory     int
	MaxTagLength         int
	MaxFamilyMembers     int

	// Upload constraints
	MaxFilesPerRequest int
	MaxFileSize        int64
	MaxFileNameLength  int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTitleLength:       200,
		MaxDescriptionLength: 5000,
		MaxTagsPerMemory:     50,
		MaxTagLength:         100,
		MaxFamilyMembers:     50,

		MaxFilesPerRequest: 20,
		MaxFileSize:        100 << 20,
		MaxFileNameLength:  120,
	}
}
