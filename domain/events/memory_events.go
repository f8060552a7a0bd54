package events

import "time"

const (
	TypeMemoryCreated   = "memory.created"
	TypeMemoryUpdated   = "memory.updated"
	TypeMemoryDeleted   = "memory.deleted"
	TypeObjectsOrphaned = "storage.objects_orphaned"
)

// MemoryCreated is raised after a new memory and its files are committed
type MemoryCreated struct {
	BaseEvent
	MemoryID string   `json:"memory_id"`
	Title    string   `json:"title"`
	Keys     []string `json:"keys"`
}

// NewMemoryCreated creates a MemoryCreated event
func NewMemoryCreated(memoryID, title string, keys []string, timestamp time.Time) MemoryCreated {
	return MemoryCreated{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		MemoryID: memoryID,
		Title:    title,
		Keys:     keys,
	}
}

// MemoryUpdated is raised after content items are appended
type MemoryUpdated struct {
	BaseEvent
	MemoryID   string   `json:"memory_id"`
	Title      string   `json:"title"`
	AddedKeys  []string `json:"added_keys"`
	TotalItems int      `json:"total_items"`
}

// NewMemoryUpdated creates a MemoryUpdated event
func NewMemoryUpdated(memoryID, title string, addedKeys []string, totalItems, version int, timestamp time.Time) MemoryUpdated {
	return MemoryUpdated{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryUpdated,
			Timestamp:   timestamp,
			Version:     version,
		},
		MemoryID:   memoryID,
		Title:      title,
		AddedKeys:  addedKeys,
		TotalItems: totalItems,
	}
}

// MemoryDeleted is raised after a memory and its objects are removed
type MemoryDeleted struct {
	BaseEvent
	MemoryID    string   `json:"memory_id"`
	Title       string   `json:"title"`
	DeletedKeys []string `json:"deleted_keys"`
}

// NewMemoryDeleted creates a MemoryDeleted event
func NewMemoryDeleted(memoryID, title string, deletedKeys []string, version int, timestamp time.Time) MemoryDeleted {
	return MemoryDeleted{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryDeleted,
			Timestamp:   timestamp,
			Version:     version,
		},
		MemoryID:    memoryID,
		Title:       title,
		DeletedKeys: deletedKeys,
	}
}

// ObjectsOrphaned is raised when uploaded objects could not be removed after
// a failed write. The cleanup handler consumes it and retries the delete.
type ObjectsOrphaned struct {
	BaseEvent
	Bucket    string   `json:"bucket"`
	Keys      []string `json:"keys"`
	Operation string   `json:"operation"`
	Reason    string   `json:"reason"`
}

// NewObjectsOrphaned creates an ObjectsOrphaned event
func NewObjectsOrphaned(title, bucket string, keys []string, operation, reason string, timestamp time.Time) ObjectsOrphaned {
	return ObjectsOrphaned{
		BaseEvent: BaseEvent{
			AggregateID: title,
			EventType:   TypeObjectsOrphaned,
			Timestamp:   timestamp,
			Version:     1,
		},
		Bucket:    bucket,
		Keys:      keys,
		Operation: operation,
		Reason:    reason,
	}
}
