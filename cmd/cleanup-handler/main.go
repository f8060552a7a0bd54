// Package main implements the Lambda that deletes objects left behind when
// a failed write could not remove its own uploads. It consumes the
// storage.objects_orphaned events delivered by EventBridge.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/domain/events"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/config"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/di"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// RecordFinder reads the memory an orphaned key may still belong to
type RecordFinder interface {
	FindByTitle(ctx context.Context, title string) (*memory.Record, error)
}

// Cleaner deletes orphaned objects that no memory references
type Cleaner struct {
	store         ports.ObjectStore
	records       RecordFinder
	defaultBucket string
	logger        *zap.Logger
}

// NewCleaner creates a Cleaner. defaultBucket is used when an event does
// not name one.
func NewCleaner(store ports.ObjectStore, records RecordFinder, defaultBucket string, logger *zap.Logger) *Cleaner {
	return &Cleaner{store: store, records: records, defaultBucket: defaultBucket, logger: logger}
}

// Handle processes one EventBridge event. Returning an error makes Lambda
// retry the delivery.
func (c *Cleaner) Handle(ctx context.Context, event awsevents.CloudWatchEvent) error {
	if event.DetailType != events.TypeObjectsOrphaned {
		c.logger.Debug("Ignoring event", zap.String("detailType", event.DetailType))
		return nil
	}

	var orphaned events.ObjectsOrphaned
	if err := json.Unmarshal(event.Detail, &orphaned); err != nil {
		// A malformed event will never succeed, so it is dropped
		c.logger.Error("Failed to decode orphaned objects event",
			zap.String("eventID", event.ID),
			zap.Error(err),
		)
		return nil
	}
	keys, err := c.unreferenced(ctx, orphaned.GetAggregateID(), orphaned.Keys)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		c.logger.Info("Orphaned objects are referenced, nothing to delete",
			zap.String("memory", orphaned.GetAggregateID()),
			zap.Int("count", len(orphaned.Keys)),
		)
		return nil
	}

	bucket := orphaned.Bucket
	if bucket == "" {
		bucket = c.defaultBucket
	}

	if err := c.store.DeleteFiles(ctx, bucket, keys); err != nil {
		c.logger.Error("Failed to delete orphaned objects",
			zap.String("bucket", bucket),
			zap.Strings("keys", keys),
			zap.String("operation", orphaned.Operation),
			zap.Error(err),
		)
		return fmt.Errorf("delete orphaned objects: %w", err)
	}

	c.logger.Info("Orphaned objects deleted",
		zap.String("bucket", bucket),
		zap.Int("count", len(keys)),
		zap.String("memory", orphaned.GetAggregateID()),
	)
	return nil
}

// unreferenced drops keys the memory still lists. A write whose commit
// outcome was unknown may have landed after all.
func (c *Cleaner) unreferenced(ctx context.Context, title string, keys []string) ([]string, error) {
	if title == "" || len(keys) == 0 {
		return keys, nil
	}

	record, err := c.records.FindByTitle(ctx, title)
	if errors.IsNotFound(err) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory %q: %w", title, err)
	}

	referenced := record.FilePaths()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !slices.Contains(referenced, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, _, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	cleaner := NewCleaner(container.ObjectStore, container.MemoryRepo, cfg.BucketName, container.Logger)
	lambda.Start(cleaner.Handle)
}
