package services

import (
	"context"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/commands"
	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/domain/core/validators"
	"github.com/kondrei/TalkieMartin-BE/domain/events"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

// Operation names used in logs and metrics
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
	OpGet    = "get"
)

// Options configures the MemoryService
type Options struct {
	// Bucket is the object store bucket holding every memory file
	Bucket string

	// URLConcurrency bounds concurrent download URL requests per read
	URLConcurrency int
}

// MemoryService coordinates the metadata transaction with object storage.
// It is the only component that orders writes across the two systems:
// files are uploaded before the metadata commit and deleted before the
// metadata delete commits, so a failure never exposes partial state.
type MemoryService struct {
	repo      ports.MemoryRepository
	store     ports.ObjectStore
	publisher ports.EventPublisher
	metrics   ports.Metrics
	validator *validators.MemoryValidator
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewMemoryService creates a new memory service
func NewMemoryService(
	repo ports.MemoryRepository,
	store ports.ObjectStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	validator *validators.MemoryValidator,
	opts Options,
	logger *zap.Logger,
) *MemoryService {
	if opts.URLConcurrency <= 0 {
		opts.URLConcurrency = 16
	}
	if validator == nil {
		validator = validators.NewMemoryValidator(nil)
	}
	if metrics == nil {
		metrics = observability.NewNoopMetrics()
	}
	return &MemoryService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		validator: validator,
		opts:      opts,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateMemory stores a new memory and uploads its files. The metadata is
// committed only after every upload succeeded.
func (s *MemoryService) CreateMemory(ctx context.Context, cmd commands.CreateMemoryCommand, files []commands.FileUpload) (result *memory.Record, err error) {
	defer s.observe(ctx, OpCreate, time.Now(), &err)

	cmd.Normalize()
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateTitle(cmd.Title); err != nil {
		return nil, err
	}
	if err := s.validateLists(cmd.Description, cmd.Tags, cmd.FamilyMembers); err != nil {
		return nil, err
	}
	if err := s.validateFiles(files); err != nil {
		return nil, err
	}

	now := s.now()
	objects, items := s.prepareUploads(files, cmd.Description, cmd.DateCreated, now)
	record := &memory.Record{
		ID:            uuid.NewString(),
		Title:         cmd.Title,
		Description:   cmd.Description,
		Tags:          cmd.Tags,
		FamilyMembers: cmd.FamilyMembers,
		MemoryContent: items,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.logger.Debug("Creating memory",
		zap.String("title", record.Title),
		zap.Int("files", len(files)),
	)

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, transactionError("begin", err)
	}
	defer s.abort(ctx, tx)

	if err := tx.Insert(ctx, record); err != nil {
		return nil, transactionError("insert", err)
	}

	keys := objectKeys(objects)
	if err := s.upload(ctx, objects); err != nil {
		s.compensate(ctx, OpCreate, record.Title, keys)
		return nil, errors.NewUploadError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		applied := func(stored *memory.Record) bool { return stored.ID == record.ID }
		if _, ok := s.settleCommit(ctx, OpCreate, record.Title, keys, err, applied); !ok {
			return nil, transactionError("commit", err)
		}
	}

	s.publish(ctx, events.NewMemoryCreated(record.ID, record.Title, keys, now))

	s.logger.Info("Memory created",
		zap.String("memoryID", record.ID),
		zap.String("title", record.Title),
		zap.Int("files", len(keys)),
	)

	created := record.Clone()
	created.Normalize()
	return &created, nil
}

// UpdateMemory appends content items for new files to an existing memory
// and returns the updated memory with download URLs attached.
func (s *MemoryService) UpdateMemory(ctx context.Context, title string, cmd commands.UpdateMemoryCommand, files []commands.FileUpload) (result *memory.Record, err error) {
	defer s.observe(ctx, OpUpdate, time.Now(), &err)

	title = memory.NormalizeTitle(title)
	cmd.Normalize()
	if err := s.validateTitle(title); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateDescription(cmd.Description); err != nil {
		return nil, err
	}
	if err := s.validateFiles(files); err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, transactionError("begin", err)
	}
	defer s.abort(ctx, tx)

	existing, err := tx.FindByTitle(ctx, title)
	if err != nil {
		return nil, transactionError("find", err)
	}

	if len(files) == 0 {
		s.logger.Debug("Update without files, nothing to append", zap.String("title", title))
		return s.withDownloadURLs(ctx, *existing)
	}

	now := s.now()
	objects, items := s.prepareUploads(files, cmd.Description, cmd.DateCreated, now)
	keys := objectKeys(objects)

	if err := s.upload(ctx, objects); err != nil {
		s.compensate(ctx, OpUpdate, title, keys)
		return nil, errors.NewUploadError(err)
	}

	updated, err := tx.AppendContentItems(ctx, title, items)
	if err != nil {
		s.compensate(ctx, OpUpdate, title, keys)
		return nil, transactionError("append", err)
	}

	if err := tx.Commit(ctx); err != nil {
		applied := func(stored *memory.Record) bool { return slices.Contains(stored.FilePaths(), keys[0]) }
		stored, ok := s.settleCommit(ctx, OpUpdate, title, keys, err, applied)
		if !ok {
			return nil, transactionError("commit", err)
		}
		updated = stored
	}

	s.publish(ctx, events.NewMemoryUpdated(updated.ID, title, keys, len(updated.MemoryContent), updated.Version, now))

	s.logger.Info("Memory updated",
		zap.String("memoryID", updated.ID),
		zap.String("title", title),
		zap.Int("added", len(keys)),
	)

	out, err := s.withDownloadURLs(ctx, *updated)
	if err != nil {
		// The append is already durable; tell the caller not to retry it.
		if appErr := errors.GetAppError(err); appErr != nil {
			appErr.WithDetail("committed", true)
		}
		return nil, err
	}
	return out, nil
}

// DeleteMemory removes a memory and every object it references. Objects are
// deleted before the metadata delete commits; if that fails the record is
// kept so the delete can be retried.
func (s *MemoryService) DeleteMemory(ctx context.Context, title string) (err error) {
	defer s.observe(ctx, OpDelete, time.Now(), &err)

	title = memory.NormalizeTitle(title)
	if err := s.validateTitle(title); err != nil {
		return err
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return transactionError("begin", err)
	}
	defer s.abort(ctx, tx)

	existing, err := tx.FindAndDelete(ctx, title)
	if err != nil {
		return transactionError("find and delete", err)
	}

	keys := existing.FilePaths()
	if len(keys) > 0 {
		if err := s.store.DeleteFiles(ctx, s.opts.Bucket, keys); err != nil {
			s.logger.Error("Failed to delete memory files, keeping record",
				zap.String("title", title),
				zap.Strings("keys", keys),
				zap.Error(err),
			)
			return errors.NewCleanupError(title, err)
		}
		s.metrics.RecordObjects(ctx, "deleted", len(keys))
	}

	if err := tx.Commit(ctx); err != nil {
		return transactionError("commit", err)
	}

	s.publish(ctx, events.NewMemoryDeleted(existing.ID, title, keys, existing.Version, s.now()))

	s.logger.Info("Memory deleted",
		zap.String("memoryID", existing.ID),
		zap.String("title", title),
		zap.Int("files", len(keys)),
	)

	return nil
}

func (s *MemoryService) validateTitle(title string) error {
	return s.validator.ValidateTitle(title)
}

func (s *MemoryService) validateLists(description string, tags, familyMembers []string) error {
	if err := s.validator.ValidateDescription(description); err != nil {
		return err
	}
	if err := s.validator.ValidateTags(tags); err != nil {
		return err
	}
	return s.validator.ValidateFamilyMembers(familyMembers)
}

func (s *MemoryService) validateFiles(files []commands.FileUpload) error {
	if err := s.validator.ValidateFileCount(len(files)); err != nil {
		return err
	}
	for _, f := range files {
		if err := s.validator.ValidateFile(f.Name, f.Size()); err != nil {
			return err
		}
	}
	return nil
}

// prepareUploads derives one object key and one content item per file, in
// request order.
func (s *MemoryService) prepareUploads(files []commands.FileUpload, description string, dateCreated, now time.Time) ([]ports.Object, []memory.ContentItem) {
	objects := make([]ports.Object, 0, len(files))
	items := make([]memory.ContentItem, 0, len(files))

	for _, f := range files {
		mimeType := detectContentType(f)
		key := memory.NewObjectKey(f.Name, now)

		objects = append(objects, ports.Object{Key: key, Body: f.Body, ContentType: mimeType})
		items = append(items, memory.NewContentItem(key, mimeType, description, dateCreated))
	}

	return objects, items
}

func (s *MemoryService) upload(ctx context.Context, objects []ports.Object) error {
	if len(objects) == 0 {
		return nil
	}
	if err := s.store.UploadFiles(ctx, s.opts.Bucket, objects); err != nil {
		s.logger.Error("Failed to upload memory files",
			zap.Int("files", len(objects)),
			zap.Error(err),
		)
		return err
	}
	s.metrics.RecordObjects(ctx, "uploaded", len(objects))
	return nil
}

// compensate removes objects uploaded for a write that did not commit. It
// runs detached from ctx so a cancelled request still cleans up. Objects
// that cannot be removed are reported as orphaned for out of band cleanup.
func (s *MemoryService) compensate(ctx context.Context, operation, title string, keys []string) {
	if len(keys) == 0 {
		return
	}

	cctx := context.WithoutCancel(ctx)
	if err := s.store.DeleteFiles(cctx, s.opts.Bucket, keys); err != nil {
		s.logger.Error("Failed to remove uploaded files after aborted write",
			zap.String("operation", operation),
			zap.String("title", title),
			zap.Strings("keys", keys),
			zap.Error(err),
		)
		s.metrics.RecordObjects(cctx, "orphaned", len(keys))
		s.publish(cctx, events.NewObjectsOrphaned(title, s.opts.Bucket, keys, operation, err.Error(), s.now()))
		return
	}

	s.metrics.RecordObjects(cctx, "compensated", len(keys))
	s.logger.Warn("Removed uploaded files after aborted write",
		zap.String("operation", operation),
		zap.String("title", title),
		zap.Int("files", len(keys)),
	)
}

// settleCommit handles uploaded objects after a failed commit and reports
// whether the write was applied after all. A definite failure is
// compensated. When the outcome is unknown the record is read back first,
// and objects are only deleted once it is clear nothing references them.
func (s *MemoryService) settleCommit(ctx context.Context, operation, title string, keys []string, commitErr error, applied func(*memory.Record) bool) (*memory.Record, bool) {
	if !errors.IsOutcomeUnknown(commitErr) {
		s.compensate(ctx, operation, title, keys)
		return nil, false
	}

	rctx := context.WithoutCancel(ctx)
	stored, err := s.repo.FindByTitle(rctx, title)
	switch {
	case err == nil && applied(stored):
		s.logger.Warn("Commit outcome resolved as applied",
			zap.String("operation", operation),
			zap.String("title", title),
		)
		return stored, true
	case err == nil || errors.IsNotFound(err):
		s.compensate(ctx, operation, title, keys)
		return nil, false
	}

	s.logger.Error("Commit outcome unknown, leaving uploaded files for cleanup",
		zap.String("operation", operation),
		zap.String("title", title),
		zap.Strings("keys", keys),
		zap.NamedError("commitError", commitErr),
		zap.Error(err),
	)
	if len(keys) > 0 {
		s.metrics.RecordObjects(rctx, "orphaned", len(keys))
		s.publish(rctx, events.NewObjectsOrphaned(title, s.opts.Bucket, keys, operation, "commit outcome unknown: "+commitErr.Error(), s.now()))
	}
	return nil, false
}

func (s *MemoryService) abort(ctx context.Context, tx ports.Transaction) {
	if err := tx.Abort(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to abort transaction", zap.Error(err))
	}
}

func (s *MemoryService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}

func (s *MemoryService) observe(ctx context.Context, operation string, start time.Time, errp *error) {
	outcome := "success"
	if *errp != nil {
		outcome = string(errors.TypeOf(*errp))
	}
	s.metrics.RecordOperation(ctx, operation, outcome, time.Since(start))
}

// transactionError keeps typed repository errors and wraps anything else as
// a TRANSACTION_FAILURE.
func transactionError(operation string, err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.NewTransactionError(operation, err)
}

// detectContentType trusts the declared type unless it is missing or
// generic, in which case the body is sniffed.
func detectContentType(f commands.FileUpload) string {
	declared := f.ContentType
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(f.Body) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(f.Body).String()
}

func objectKeys(objects []ports.Object) []string {
	keys := make([]string, len(objects))
	for i, o := range objects {
		keys[i] = o.Key
	}
	return keys
}
