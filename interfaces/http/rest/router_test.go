package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/commands"
	"github.com/kondrei/TalkieMartin-BE/application/queries"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

// MockCoordinator is a mock implementation of handlers.MemoryCoordinator
type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) CreateMemory(ctx context.Context, cmd commands.CreateMemoryCommand, files []commands.FileUpload) (*memory.Record, error) {
	args := m.Called(ctx, cmd, files)
	rec, _ := args.Get(0).(*memory.Record)
	return rec, args.Error(1)
}

func (m *MockCoordinator) UpdateMemory(ctx context.Context, title string, cmd commands.UpdateMemoryCommand, files []commands.FileUpload) (*memory.Record, error) {
	args := m.Called(ctx, title, cmd, files)
	rec, _ := args.Get(0).(*memory.Record)
	return rec, args.Error(1)
}

func (m *MockCoordinator) DeleteMemory(ctx context.Context, title string) error {
	return m.Called(ctx, title).Error(0)
}

func (m *MockCoordinator) ListMemories(ctx context.Context, query queries.ListMemoriesQuery) (*queries.MemoryPage, error) {
	args := m.Called(ctx, query)
	page, _ := args.Get(0).(*queries.MemoryPage)
	return page, args.Error(1)
}

func (m *MockCoordinator) GetMemory(ctx context.Context, title string) (*memory.Record, error) {
	args := m.Called(ctx, title)
	rec, _ := args.Get(0).(*memory.Record)
	return rec, args.Error(1)
}

func newTestServer(svc *MockCoordinator, opts Options) (http.Handler, *observability.Collector) {
	collector := observability.NewCollector("test")
	if opts.MaxUploadBytes == 0 {
		opts.MaxUploadBytes = 1 << 20
	}
	return NewRouter(svc, collector, nil, opts, zap.NewNop()).Setup(), collector
}

func multipartBody(t *testing.T, fields map[string][]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func sample(title string) *memory.Record {
	return &memory.Record{
		ID:            "id-1",
		Title:         title,
		Tags:          []string{},
		FamilyMembers: []string{},
		MemoryContent: []memory.ContentItem{{FilePath: "https://signed/k1", ContentType: memory.ContentTypePhoto}},
	}
}

func TestCreateMemory(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{})

	svc.On("CreateMemory", mock.Anything, mock.MatchedBy(func(cmd commands.CreateMemoryCommand) bool {
		return cmd.Title == "Trip" &&
			assert.ObjectsAreEqual([]string{"sea", "sun", "sand"}, cmd.Tags) &&
			assert.ObjectsAreEqual([]string{"Ana"}, cmd.FamilyMembers) &&
			cmd.DateCreated.Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC))
	}), mock.MatchedBy(func(files []commands.FileUpload) bool {
		return len(files) == 1 && files[0].Name == "photo.png" && string(files[0].Body) == "png-bytes"
	})).Return(sample("Trip"), nil)

	body, contentType := multipartBody(t, map[string][]string{
		"title":         {"Trip"},
		"tags":          {"sea,sun", "sand"},
		"familyMembers": {"Ana"},
		"dateCreated":   {"2023-07-01"},
	}, map[string]string{"photo.png": "png-bytes"})

	req := httptest.NewRequest(http.MethodPost, "/api/memories", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Trip", got["title"])
	assert.Equal(t, "id-1", got["id"])
	svc.AssertExpectations(t)
}

func TestCreateMemory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"duplicate", errors.NewDuplicateKeyError("Trip"), http.StatusBadRequest, "DUPLICATE_KEY"},
		{"validation", errors.NewValidationError("title is required"), http.StatusBadRequest, "VALIDATION"},
		{"upload", errors.NewUploadError(assert.AnError), http.StatusInternalServerError, "UPLOAD_FAILURE"},
		{"transaction", errors.NewTransactionError("commit", assert.AnError), http.StatusInternalServerError, "TRANSACTION_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCoordinator)
			handler, _ := newTestServer(svc, Options{})
			svc.On("CreateMemory", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			body, contentType := multipartBody(t, map[string][]string{"title": {"Trip"}}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/memories", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp errors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
		})
	}
}

func TestCreateMemory_BodyTooLarge(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{MaxUploadBytes: 512})

	body, contentType := multipartBody(t, map[string][]string{"title": {"Trip"}},
		map[string]string{"big.bin": strings.Repeat("x", 4096)})
	req := httptest.NewRequest(http.MethodPost, "/api/memories", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "CreateMemory", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateMemory_EscapedTitle(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{})
	svc.On("UpdateMemory", mock.Anything, "Summer Trip", mock.MatchedBy(func(cmd commands.UpdateMemoryCommand) bool {
		return cmd.Description == "more"
	}), mock.Anything).Return(sample("Summer Trip"), nil)

	body, contentType := multipartBody(t, map[string][]string{"description": {"more"}}, map[string]string{"a.txt": "hi"})
	req := httptest.NewRequest(http.MethodPatch, "/api/memories/Summer%20Trip", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestGetMemory_NotFound(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{})
	svc.On("GetMemory", mock.Anything, "Ghost").Return(nil, errors.NewNotFoundError("Ghost"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memories/Ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Type)
}

func TestDeleteMemory(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{})
	svc.On("DeleteMemory", mock.Anything, "Trip").Return(nil).Once()
	svc.On("DeleteMemory", mock.Anything, "Busy").Return(errors.NewConflictError("Busy")).Once()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/memories/Trip", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/memories/Busy", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Retryable)
}

func TestListMemories(t *testing.T) {
	svc := new(MockCoordinator)
	handler, collector := newTestServer(svc, Options{})
	svc.On("ListMemories", mock.Anything, mock.MatchedBy(func(q queries.ListMemoriesQuery) bool {
		return q.CurrentPage == 2 && q.PerPage == 5
	})).Return(&queries.MemoryPage{
		Data:        []memory.Record{*sample("m5")},
		Total:       6,
		Pages:       2,
		CurrentPage: 2,
	}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memories?currentPage=2&perPage=5", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		Data        []map[string]interface{} `json:"data"`
		Total       int                      `json:"total"`
		Pages       int                      `json:"pages"`
		CurrentPage int                      `json:"currentPage"`
		Pagination  struct {
			HasNext bool `json:"hasNext"`
			HasPrev bool `json:"hasPrev"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Data, 1)
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, 2, got.Pages)
	assert.Equal(t, 2, got.CurrentPage)
	assert.False(t, got.Pagination.HasNext)
	assert.True(t, got.Pagination.HasPrev)

	metrics := httptest.NewRecorder()
	collector.Handler().ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `route="/api/memories`)
}

func TestListMemories_InvalidParams(t *testing.T) {
	svc := new(MockCoordinator)
	handler, _ := newTestServer(svc, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memories?perPage=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ListMemories", mock.Anything, mock.Anything)
}

func TestHealthAndReadiness(t *testing.T) {
	svc := new(MockCoordinator)
	failing := NewRouter(svc, nil, func(context.Context) error { return assert.AnError }, Options{}, zap.NewNop()).Setup()

	rec := httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteRateLimit(t *testing.T) {
	svc := &MockCoordinator{}
	svc.On("DeleteMemory", mock.Anything, "Trip").Return(nil)
	svc.On("GetMemory", mock.Anything, "Trip").Return(&memory.Record{Title: "Trip"}, nil)
	handler, _ := newTestServer(svc, Options{WriteRateLimit: 1})

	send := func(method string) int {
		req := httptest.NewRequest(method, "/api/memories/Trip", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send(http.MethodDelete))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodDelete))
	// Reads are not throttled
	assert.Equal(t, http.StatusOK, send(http.MethodGet))
	assert.Equal(t, http.StatusOK, send(http.MethodGet))
	svc.AssertNumberOfCalls(t, "DeleteMemory", 1)
}
