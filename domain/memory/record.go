package memory

import (
	"strings"
	"time"
)

// Record is a memory entry: metadata plus its embedded content items
type Record struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Tags          []string      `json:"tags"`
	FamilyMembers []string      `json:"familyMembers"`
	MemoryContent []ContentItem `json:"memoryContent"`
	Version       int           `json:"-"`
	CreatedAt     time.Time     `json:"-"`
	UpdatedAt     time.Time     `json:"-"`
}

// Normalize fills read defaults: trimmed strings, empty slices instead of
// nil and a current timestamp for items without a valid date.
func (r *Record) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.FamilyMembers == nil {
		r.FamilyMembers = []string{}
	}
	if r.MemoryContent == nil {
		r.MemoryContent = []ContentItem{}
	}

	now := time.Now().UTC()
	for i := range r.MemoryContent {
		item := &r.MemoryContent[i]
		if item.DateCreated.IsZero() {
			item.DateCreated = now
		}
		if !item.ContentType.IsValid() {
			item.ContentType = ContentTypeFromMIME(item.MimeType)
		}
	}
}

// Clone returns a deep copy so read-side rewrites never touch shared state
func (r Record) Clone() Record {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.FamilyMembers = append([]string(nil), r.FamilyMembers...)
	out.MemoryContent = append([]ContentItem(nil), r.MemoryContent...)
	return out
}

// FilePaths returns the non-empty object keys referenced by the record
func (r Record) FilePaths() []string {
	paths := make([]string, 0, len(r.MemoryContent))
	for _, item := range r.MemoryContent {
		if item.FilePath != "" {
			paths = append(paths, item.FilePath)
		}
	}
	return paths
}

// NormalizeTitle trims a lookup title
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// CleanList trims entries and drops empty ones, keeping order
func CleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
