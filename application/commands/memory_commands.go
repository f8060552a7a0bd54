package commands

import (
	"strings"
	"time"

	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/utils"
)

// FileUpload is one file received with a create or update request
type FileUpload struct {
	Name        string
	ContentType string
	Body        []byte
}

// Size returns the upload size in bytes
func (f FileUpload) Size() int64 {
	return int64(len(f.Body))
}

// CreateMemoryCommand represents the command to create a new memory. Tags
// check shape only; numeric limits come from DomainConfig.
type CreateMemoryCommand struct {
	Title         string    `json:"title" validate:"required"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags" validate:"dive,required"`
	FamilyMembers []string  `json:"familyMembers" validate:"dive,required"`
	DateCreated   time.Time `json:"dateCreated"`
}

// Normalize trims input and fills defaults before validation
func (c *CreateMemoryCommand) Normalize() {
	c.Title = memory.NormalizeTitle(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Tags = memory.CleanList(c.Tags)
	c.FamilyMembers = memory.CleanList(c.FamilyMembers)
	c.DateCreated = utils.OrNow(c.DateCreated)
}

// Validate checks struct constraints
func (c CreateMemoryCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateMemoryCommand carries the attributes of the content items appended
// by an update. Title, tags and family members cannot be changed.
type UpdateMemoryCommand struct {
	Description string    `json:"description"`
	DateCreated time.Time `json:"dateCreated"`
}

// Normalize trims input and fills defaults before validation
func (c *UpdateMemoryCommand) Normalize() {
	c.Description = strings.TrimSpace(c.Description)
	c.DateCreated = utils.OrNow(c.DateCreated)
}
