package queries

import (
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/common"
	"github.com/kondrei/TalkieMartin-BE/pkg/utils"
)

// ListMemoriesQuery represents a query to list memories
type ListMemoriesQuery struct {
	common.PaginationParams
}

// Validate validates the query
func (q ListMemoriesQuery) Validate() error {
	return utils.ValidateStruct(q.PaginationParams)
}

// MemoryPage is one page of memories with download URLs attached
type MemoryPage struct {
	Data        []memory.Record `json:"data"`
	Total       int             `json:"total"`
	Pages       int             `json:"pages"`
	CurrentPage int             `json:"currentPage"`
}
