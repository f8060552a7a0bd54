package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/commands"
	"github.com/kondrei/TalkieMartin-BE/application/queries"
	"github.com/kondrei/TalkieMartin-BE/domain/memory"
	"github.com/kondrei/TalkieMartin-BE/pkg/common"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
	"github.com/kondrei/TalkieMartin-BE/pkg/utils"
)

// MemoryCoordinator is the application surface served over HTTP
type MemoryCoordinator interface {
	CreateMemory(ctx context.Context, cmd commands.CreateMemoryCommand, files []commands.FileUpload) (*memory.Record, error)
	UpdateMemory(ctx context.Context, title string, cmd commands.UpdateMemoryCommand, files []commands.FileUpload) (*memory.Record, error)
	DeleteMemory(ctx context.Context, title string) error
	ListMemories(ctx context.Context, query queries.ListMemoriesQuery) (*queries.MemoryPage, error)
	GetMemory(ctx context.Context, title string) (*memory.Record, error)
}

// Multipart parts beyond this are spooled to disk by the standard library
const multipartMemory = 32 << 20

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	service        MemoryCoordinator
	errorHandler   *errors.ErrorHandler
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(
	service MemoryCoordinator,
	errorHandler *errors.ErrorHandler,
	maxUploadBytes int64,
	logger *zap.Logger,
) *MemoryHandler {
	return &MemoryHandler{
		service:        service,
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ListResponse is the body of GET /memories
type ListResponse struct {
	*queries.MemoryPage
	Pagination *common.PaginationInfo `json:"pagination"`
}

// CreateMemory handles POST /memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	form, files, err := h.parseMultipart(w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	dateCreated, _ := utils.ParseTimestamp(form.Get("dateCreated"))
	cmd := commands.CreateMemoryCommand{
		Title:         form.Get("title"),
		Description:   form.Get("description"),
		Tags:          splitList(form["tags"]),
		FamilyMembers: splitList(form["familyMembers"]),
		DateCreated:   dateCreated,
	}

	record, err := h.service.CreateMemory(r.Context(), cmd, files)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("Memory created",
		zap.String("title", record.Title),
		zap.Int("files", len(files)),
		zap.String("requestID", common.ExtractRequestID(r)),
	)
	common.RespondJSON(w, http.StatusCreated, record)
}

// UpdateMemory handles PATCH /memories/{title}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	title, err := titleParam(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	form, files, err := h.parseMultipart(w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	dateCreated, _ := utils.ParseTimestamp(form.Get("dateCreated"))
	cmd := commands.UpdateMemoryCommand{
		Description: form.Get("description"),
		DateCreated: dateCreated,
	}

	record, err := h.service.UpdateMemory(r.Context(), title, cmd, files)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, record)
}

// DeleteMemory handles DELETE /memories/{title}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	title, err := titleParam(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.service.DeleteMemory(r.Context(), title); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondNoContent(w)
}

// GetMemory handles GET /memories/{title}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	title, err := titleParam(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	record, err := h.service.GetMemory(r.Context(), title)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, record)
}

// ListMemories handles GET /memories?currentPage=&perPage=
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	params, err := common.ExtractPaginationParams(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	page, err := h.service.ListMemories(r.Context(), queries.ListMemoriesQuery{PaginationParams: params})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, ListResponse{
		MemoryPage: page,
		Pagination: common.BuildPaginationMeta(params.Normalize(), page.Total),
	})
}

// parseMultipart reads the form fields and the "files" parts of a request.
// Requests without a multipart body carry no files.
func (h *MemoryHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (url.Values, []commands.FileUpload, error) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseForm(); err != nil {
			return nil, nil, bodyError(err)
		}
		return r.Form, nil, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, bodyError(err)
	}

	var files []commands.FileUpload
	for _, field := range []string{"files", "file"} {
		for _, fh := range r.MultipartForm.File[field] {
			upload, err := readPart(fh)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, upload)
		}
	}

	return url.Values(r.MultipartForm.Value), files, nil
}

func readPart(fh *multipart.FileHeader) (commands.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return commands.FileUpload{}, errors.NewValidationError(fmt.Sprintf("cannot read file %q", fh.Filename))
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		return commands.FileUpload{}, errors.NewValidationError(fmt.Sprintf("cannot read file %q", fh.Filename))
	}

	return commands.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		appErr := errors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)).
			WithCode("PAYLOAD_TOO_LARGE")
		appErr.HTTPStatus = http.StatusRequestEntityTooLarge
		return appErr
	}
	return errors.NewValidationError("malformed request body").WithCause(err)
}

func titleParam(r *http.Request) (string, error) {
	title, err := url.PathUnescape(chi.URLParam(r, "title"))
	if err != nil {
		return "", errors.NewValidationError("malformed title")
	}
	return title, nil
}

// splitList accepts repeated fields and comma separated values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			out = append(out, part)
		}
	}
	return out
}
