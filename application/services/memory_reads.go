package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kondrei/TalkieMartin-BE/application/queries"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/common"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// ListMemories returns one page of memories with download URLs attached.
// Without a page size the whole collection is returned as page 1.
func (s *MemoryService) ListMemories(ctx context.Context, query queries.ListMemoriesQuery) (page *queries.MemoryPage, err error) {
	defer s.observe(ctx, OpList, time.Now(), &err)

	params := query.PaginationParams.Normalize()
	if err := (queries.ListMemoriesQuery{PaginationParams: params}).Validate(); err != nil {
		return nil, err
	}

	var (
		records []memory.Record
		total   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.repo.Find(gctx, params.CalculateOffset(), params.Limit())
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, transactionError("list", err)
	}

	data, err := s.attachDownloadURLs(ctx, records)
	if err != nil {
		return nil, err
	}

	return &queries.MemoryPage{
		Data:        data,
		Total:       total,
		Pages:       common.CalculateTotalPages(total, params.PerPage),
		CurrentPage: params.CurrentPage,
	}, nil
}

// GetMemory returns a single memory with download URLs attached
func (s *MemoryService) GetMemory(ctx context.Context, title string) (result *memory.Record, err error) {
	defer s.observe(ctx, OpGet, time.Now(), &err)

	title = memory.NormalizeTitle(title)
	if err := s.validateTitle(title); err != nil {
		return nil, err
	}

	record, err := s.repo.FindByTitle(ctx, title)
	if err != nil {
		return nil, transactionError("find", err)
	}

	return s.withDownloadURLs(ctx, *record)
}

func (s *MemoryService) withDownloadURLs(ctx context.Context, record memory.Record) (*memory.Record, error) {
	out, err := s.attachDownloadURLs(ctx, []memory.Record{record})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// attachDownloadURLs returns normalized copies of records with every
// FilePath replaced by a signed download URL. The first URL failure aborts
// the whole read. Items without a path are left untouched.
func (s *MemoryService) attachDownloadURLs(ctx context.Context, records []memory.Record) ([]memory.Record, error) {
	out := make([]memory.Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
		out[i].Normalize()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.URLConcurrency)

	for i := range out {
		for j := range out[i].MemoryContent {
			item := &out[i].MemoryContent[j]
			if item.FilePath == "" {
				continue
			}
			g.Go(func() error {
				url, err := s.store.DownloadURL(gctx, s.opts.Bucket, item.FilePath)
				if err != nil {
					return errors.NewObjectStoreError(item.FilePath, err)
				}
				item.FilePath = url
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to generate download URLs", zap.Error(err))
		return nil, err
	}

	return out, nil
}
