package services

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/domain/events"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
)

// memoryRepo is an in-memory MemoryRepository whose transactions stage
// writes and apply them atomically at commit, like the DynamoDB one. A
// delete claims its record when it reads it and appends to a claimed
// record fail with CONFLICT.
type memoryRepo struct {
	mu      sync.Mutex
	records map[string]memory.Record
	order   []string
	pending map[string]int // title -> id of the claiming transaction

	begins int

	commitErr error
	// commitAppliedErr is returned after the staged writes were applied
	commitAppliedErr error
	findErr          error
	titleErr         error

	beforeClaim  func()
	beforeCommit func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[string]memory.Record),
		pending: make(map[string]int),
	}
}

func (r *memoryRepo) BeginTransaction(ctx context.Context) (ports.Transaction, error) {
	r.mu.Lock()
	r.begins++
	id := r.begins
	r.mu.Unlock()
	return &memoryTx{repo: r, id: id}, nil
}

func (r *memoryRepo) FindByTitle(ctx context.Context, title string) (*memory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.titleErr != nil {
		return nil, r.titleErr
	}
	rec, ok := r.records[title]
	if !ok {
		return nil, errors.NewNotFoundError(title)
	}
	out := rec.Clone()
	return &out, nil
}

func (r *memoryRepo) Find(ctx context.Context, skip, limit int) ([]memory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := []memory.Record{}
	for i, title := range r.order {
		if i < skip {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r.records[title].Clone())
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), nil
}

// stored returns the committed record, bypassing the service
func (r *memoryRepo) stored(title string) (memory.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[title]
	return rec.Clone(), ok
}

func (r *memoryRepo) claimed(title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[title]
	return ok
}

type stagedOp func(records map[string]memory.Record, order *[]string, pending map[string]int) error

type memoryTx struct {
	repo      *memoryRepo
	id        int
	ops       []stagedOp
	claimed   string
	committed bool
	aborted   bool
}

func (t *memoryTx) Insert(ctx context.Context, record *memory.Record) error {
	if _, err := t.repo.FindByTitle(ctx, record.Title); err == nil {
		return errors.NewDuplicateKeyError(record.Title)
	}
	rec := record.Clone()
	t.ops = append(t.ops, func(records map[string]memory.Record, order *[]string, _ map[string]int) error {
		if _, exists := records[rec.Title]; exists {
			return errors.NewDuplicateKeyError(rec.Title)
		}
		records[rec.Title] = rec
		*order = append(*order, rec.Title)
		return nil
	})
	return nil
}

func (t *memoryTx) FindByTitle(ctx context.Context, title string) (*memory.Record, error) {
	return t.repo.FindByTitle(ctx, title)
}

func (t *memoryTx) AppendContentItems(ctx context.Context, title string, items []memory.ContentItem) (*memory.Record, error) {
	current, err := t.repo.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	added := append([]memory.ContentItem(nil), items...)
	t.ops = append(t.ops, func(records map[string]memory.Record, order *[]string, pending map[string]int) error {
		rec, exists := records[title]
		if !exists {
			return errors.NewNotFoundError(title)
		}
		if _, ok := pending[title]; ok {
			return errors.NewConflictError(title)
		}
		rec.MemoryContent = append(append([]memory.ContentItem(nil), rec.MemoryContent...), added...)
		rec.Version++
		records[title] = rec
		return nil
	})

	projected := current.Clone()
	projected.MemoryContent = append(projected.MemoryContent, added...)
	projected.Version++
	return &projected, nil
}

func (t *memoryTx) FindAndDelete(ctx context.Context, title string) (*memory.Record, error) {
	current, err := t.repo.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	observed := current.Version

	if t.repo.beforeClaim != nil {
		t.repo.beforeClaim()
	}
	t.repo.mu.Lock()
	rec, exists := t.repo.records[title]
	switch {
	case !exists:
		t.repo.mu.Unlock()
		return nil, errors.NewNotFoundError(title)
	case rec.Version != observed:
		t.repo.mu.Unlock()
		return nil, errors.NewConflictError(title)
	}
	t.repo.pending[title] = t.id
	t.claimed = title
	t.repo.mu.Unlock()

	t.ops = append(t.ops, func(records map[string]memory.Record, order *[]string, pending map[string]int) error {
		rec, exists := records[title]
		if !exists || rec.Version != observed || pending[title] != t.id {
			return errors.NewConflictError(title)
		}
		delete(records, title)
		delete(pending, title)
		kept := (*order)[:0:0]
		for _, t := range *order {
			if t != title {
				kept = append(kept, t)
			}
		}
		*order = kept
		return nil
	})
	return current, nil
}

func (t *memoryTx) Commit(ctx context.Context) error {
	if t.committed || t.aborted {
		return stderrors.New("transaction already finished")
	}
	if t.repo.beforeCommit != nil {
		t.repo.beforeCommit()
	}

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if t.repo.commitErr != nil {
		return t.repo.commitErr
	}

	records := make(map[string]memory.Record, len(t.repo.records))
	for k, v := range t.repo.records {
		records[k] = v
	}
	pending := make(map[string]int, len(t.repo.pending))
	for k, v := range t.repo.pending {
		pending[k] = v
	}
	order := append([]string(nil), t.repo.order...)
	for _, op := range t.ops {
		if err := op(records, &order, pending); err != nil {
			return err
		}
	}

	t.repo.records = records
	t.repo.order = order
	t.repo.pending = pending
	if t.repo.commitAppliedErr != nil {
		return t.repo.commitAppliedErr
	}
	t.committed = true
	return nil
}

func (t *memoryTx) Abort(ctx context.Context) error {
	if t.committed {
		return nil
	}
	t.aborted = true
	t.ops = nil
	if t.claimed != "" {
		t.repo.mu.Lock()
		if t.repo.pending[t.claimed] == t.id {
			delete(t.repo.pending, t.claimed)
		}
		t.repo.mu.Unlock()
		t.claimed = ""
	}
	return nil
}

const urlPrefix = "https://signed.example/"

// objectStore is an in-memory ObjectStore returning deterministic URLs
type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	uploadFailAfter int // fail once this many objects were written, -1 disables
	deleteErr       error
	urlErr          error
	uploads         int
}

func newObjectStore() *objectStore {
	return &objectStore{objects: make(map[string][]byte), uploadFailAfter: -1}
}

func (s *objectStore) UploadFiles(ctx context.Context, bucket string, objects []ports.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	for i, o := range objects {
		if s.uploadFailAfter >= 0 && i >= s.uploadFailAfter {
			return stderrors.New("s3 unavailable")
		}
		s.objects[bucket+"/"+o.Key] = append([]byte(nil), o.Body...)
	}
	return nil
}

func (s *objectStore) DeleteFiles(ctx context.Context, bucket string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for _, k := range keys {
		delete(s.objects, bucket+"/"+k)
	}
	return nil
}

func (s *objectStore) DownloadURL(ctx context.Context, bucket, key string) (string, error) {
	if s.urlErr != nil {
		return "", s.urlErr
	}
	return urlPrefix + bucket + "/" + key, nil
}

// resolve plays the role of an HTTP GET against a signed URL
func (s *objectStore) resolve(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[strings.TrimPrefix(url, urlPrefix)]
	return body, ok
}

func (s *objectStore) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

func (s *objectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, evs []events.DomainEvent) error {
	for _, e := range evs {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

type recordingMetrics struct {
	mu      sync.Mutex
	ops     map[string]string
	objects map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ops: map[string]string{}, objects: map[string]int{}}
}

func (m *recordingMetrics) RecordOperation(ctx context.Context, operation, outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[operation] = outcome
}

func (m *recordingMetrics) RecordObjects(ctx context.Context, action string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[action] += count
}
