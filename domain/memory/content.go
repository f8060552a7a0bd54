package memory

import (
	"strings"
	"time"

	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// ContentType classifies an attached file
type ContentType string

const (
	ContentTypePhoto    ContentType = "photo"
	ContentTypeVideo    ContentType = "video"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeDocument ContentType = "document"
)

// IsValid reports whether t is one of the known content types
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypePhoto, ContentTypeVideo, ContentTypeAudio, ContentTypeDocument:
		return true
	}
	return false
}

// ParseContentType parses a stored or client supplied content type
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", errors.NewValidationError("invalid content type").WithDetail("contentType", s)
	}
	return t, nil
}

// ContentTypeFromMIME maps a MIME type onto the content type enum. Anything
// that is not an image, video or audio stream is a document.
func ContentTypeFromMIME(mimeType string) ContentType {
	major, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), "/")
	switch major {
	case "image":
		return ContentTypePhoto
	case "video":
		return ContentTypeVideo
	case "audio":
		return ContentTypeAudio
	default:
		return ContentTypeDocument
	}
}

// ContentItem is the metadata of one attached file. FilePath holds the
// object key in storage and a download URL in read results.
type ContentItem struct {
	DateCreated time.Time   `json:"dateCreated"`
	FilePath    string      `json:"filePath"`
	ContentType ContentType `json:"contentType"`
	MimeType    string      `json:"mimeType,omitempty"`
	Description string      `json:"description"`
}

// NewContentItem builds the item for a freshly uploaded object. A zero
// dateCreated defaults to now.
func NewContentItem(key, mimeType, description string, dateCreated time.Time) ContentItem {
	if dateCreated.IsZero() {
		dateCreated = time.Now().UTC()
	}
	return ContentItem{
		DateCreated: dateCreated,
		FilePath:    key,
		ContentType: ContentTypeFromMIME(mimeType),
		MimeType:    mimeType,
		Description: description,
	}
}
