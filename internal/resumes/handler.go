package resumes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-feedback/internal/queue"
	"resume-feedback/internal/shared/metrics"
	"resume-feedback/internal/shared/server/middleware"
	"resume-feedback/internal/shared/server/respond"
)

// multipartOverhead allows for form boundaries and the file_name field.
const multipartOverhead = 64 << 10

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches résumé routes to the router group. upload carries
// extra middleware for the upload route only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, upload ...gin.HandlerFunc) {
	rg.POST("/resumes", append(upload, h.upload)...)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.DELETE("/resumes/:id", h.delete)
	rg.POST("/resumes/:id/analyze", h.reanalyze)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("pdf_file")
	if err != nil {
		metrics.IncUploadsRejected()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusBadRequest, "validation_error", ErrFileTooLarge.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "pdf_file is required", nil)
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		metrics.IncUploadsRejected()
		respond.Error(c, http.StatusBadRequest, "validation_error", ErrFileTooLarge.Error(), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		metrics.IncUploadsRejected()
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := queue.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Svc.Upload(ctx, userID, UploadFile{
		Name:        fileHeader.Filename,
		DisplayName: c.PostForm("file_name"),
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotPDF), errors.Is(err, ErrFileTooLarge):
			metrics.IncUploadsRejected()
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload resume", nil)
		}
		return
	}
	metrics.IncUploadsAccepted()
	c.Set(middleware.ResumeIDKey, res.ID)
	respond.JSON(c, http.StatusCreated, toResponse(res))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit := queryInt(c, "limit", DefaultListLimit)
	offset := queryInt(c, "offset", 0)

	items, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	resp := make([]ResumeResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(item))
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	res, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.writeLookupError(c, err, "failed to fetch resume")
		return
	}
	respond.OK(c, toResponse(res))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), id); err != nil {
		h.writeLookupError(c, err, "failed to delete resume")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) reanalyze(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	ctx := queue.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Svc.Reanalyze(ctx, middleware.UserIDFromContext(c), id)
	if err != nil {
		if errors.Is(err, ErrAnalysisInFlight) {
			respond.Error(c, http.StatusConflict, "analysis_in_progress", err.Error(), nil)
			return
		}
		h.writeLookupError(c, err, "failed to start analysis")
		return
	}
	c.Set(middleware.StatusTransitionKey, res.Status)
	respond.JSON(c, http.StatusAccepted, toResponse(res))
}

func (h *Handler) writeLookupError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
