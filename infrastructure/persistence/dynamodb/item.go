package dynamodb

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kondrei/TalkieMartin-BE/domain/memory"
)

// Key layout. Every memory is one item keyed by its title; GSI1 holds all
// memories in one partition sorted by creation time for stable listing.
const (
	memoryPKPrefix  = "MEMORY#"
	metadataSK      = "METADATA"
	listPartition   = "MEMORIES"
	entityTypeValue = "MEMORY"

	// Fixed width so GSI1SK sorts lexicographically in time order
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// memoryItem represents the DynamoDB item structure for a memory
type memoryItem struct {
	PK            string        `dynamodbav:"PK"`
	SK            string        `dynamodbav:"SK"`
	GSI1PK        string        `dynamodbav:"GSI1PK"` // Always MEMORIES
	GSI1SK        string        `dynamodbav:"GSI1SK"` // <createdAt>#<id>
	EntityType    string        `dynamodbav:"EntityType"`
	MemoryID      string        `dynamodbav:"MemoryID"`
	Title         string        `dynamodbav:"Title"`
	Description   string        `dynamodbav:"Description"`
	Tags          []string      `dynamodbav:"Tags"`
	FamilyMembers []string      `dynamodbav:"FamilyMembers"`
	MemoryContent []contentItem `dynamodbav:"MemoryContent"`
	CreatedAt     string        `dynamodbav:"CreatedAt"`
	UpdatedAt     string        `dynamodbav:"UpdatedAt"`
	Version       int           `dynamodbav:"Version"`
}

// contentItem is one entry of the embedded MemoryContent list
type contentItem struct {
	DateCreated string `dynamodbav:"DateCreated"`
	FilePath    string `dynamodbav:"FilePath"`
	ContentType string `dynamodbav:"ContentType"`
	MimeType    string `dynamodbav:"MimeType,omitempty"`
	Description string `dynamodbav:"Description"`
}

func memoryPK(title string) string {
	return memoryPKPrefix + title
}

func memoryKey(title string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: memoryPK(title)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

func toItem(r *memory.Record) memoryItem {
	createdAt := r.CreatedAt.UTC()
	return memoryItem{
		PK:            memoryPK(r.Title),
		SK:            metadataSK,
		GSI1PK:        listPartition,
		GSI1SK:        createdAt.Format(sortableTime) + "#" + r.ID,
		EntityType:    entityTypeValue,
		MemoryID:      r.ID,
		Title:         r.Title,
		Description:   r.Description,
		Tags:          nonNil(r.Tags),
		FamilyMembers: nonNil(r.FamilyMembers),
		MemoryContent: toContentItems(r.MemoryContent),
		CreatedAt:     createdAt.Format(time.RFC3339Nano),
		UpdatedAt:     r.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Version:       r.Version,
	}
}

func toContentItems(items []memory.ContentItem) []contentItem {
	out := make([]contentItem, len(items))
	for i, item := range items {
		out[i] = contentItem{
			DateCreated: item.DateCreated.UTC().Format(time.RFC3339Nano),
			FilePath:    item.FilePath,
			ContentType: string(item.ContentType),
			MimeType:    item.MimeType,
			Description: item.Description,
		}
	}
	return out
}

func (i memoryItem) toRecord() memory.Record {
	content := make([]memory.ContentItem, len(i.MemoryContent))
	for n, c := range i.MemoryContent {
		// Unknown stored values are derived again from the MIME type
		contentType, err := memory.ParseContentType(c.ContentType)
		if err != nil {
			contentType = memory.ContentTypeFromMIME(c.MimeType)
		}
		content[n] = memory.ContentItem{
			DateCreated: parseTime(c.DateCreated),
			FilePath:    c.FilePath,
			ContentType: contentType,
			MimeType:    c.MimeType,
			Description: c.Description,
		}
	}

	return memory.Record{
		ID:            i.MemoryID,
		Title:         i.Title,
		Description:   i.Description,
		Tags:          nonNil(i.Tags),
		FamilyMembers: nonNil(i.FamilyMembers),
		MemoryContent: content,
		Version:       i.Version,
		CreatedAt:     parseTime(i.CreatedAt),
		UpdatedAt:     parseTime(i.UpdatedAt),
	}
}

func unmarshalRecord(av map[string]types.AttributeValue) (memory.Record, error) {
	var item memoryItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return memory.Record{}, err
	}
	return item.toRecord(), nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
