package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coursepilot/go-services/internal/document"
	"github.com/coursepilot/go-services/internal/document/service"
	"github.com/coursepilot/go-services/internal/extract"
	"github.com/coursepilot/go-services/internal/recommend"
	"github.com/coursepilot/go-services/pkg/logger"
	"github.com/coursepilot/go-services/pkg/middleware"
)

// UploadField is the multipart field carrying the what-if report.
const UploadField = "what-if"

// DefaultMaxUpload bounds the size of an uploaded report.
const DefaultMaxUpload = 32 << 20

const presignTTL = 15 * time.Minute

// Documents is the subset of the document service the routes use.
type Documents interface {
	Create(ctx context.Context, content string) (document.ID, error)
	Get(ctx context.Context, id document.ID) (*document.Record, error)
	Exists(ctx context.Context, id document.ID) (bool, error)
	Delete(ctx context.Context, id document.ID) error
}

type Recommender interface {
	Recommend(ctx context.Context, report string, q recommend.Query) (json.RawMessage, error)
}

// Archive keeps raw uploads. Optional.
type Archive interface {
	Put(ctx context.Context, id document.ID, data []byte) error
	PresignedURL(ctx context.Context, id document.ID, expires time.Duration) (string, error)
}

type Handler struct {
	docs        Documents
	extractor   extract.Extractor
	recommender Recommender
	archive     Archive
	maxUpload   int64
}

type Option func(*Handler)

func WithArchive(a Archive) Option {
	return func(h *Handler) { h.archive = a }
}

func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

func New(docs Documents, ex extract.Extractor, rec Recommender, opts ...Option) *Handler {
	h := &Handler{docs: docs, extractor: ex, recommender: rec, maxUpload: DefaultMaxUpload}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts the routes on rg. mw runs in order before every route,
// e.g. auth followed by a rate limiter keyed on the token subject.
func (h *Handler) Register(rg gin.IRouter, mw ...gin.HandlerFunc) {
	g := rg.Group("/", mw...)
	g.POST("/upload", h.Upload)
	g.POST("/recommend", h.Recommend)
	g.GET("/api/documents/:id", h.GetDocument)
	g.HEAD("/api/documents/:id", h.HeadDocument)
	g.DELETE("/api/documents/:id", h.DeleteDocument)
	g.GET("/api/documents/:id/original", h.Original)
}

// Upload accepts a what-if report PDF, stores its text and returns the ID.
func (h *Handler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		fail(c, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	mr, err := c.Request.MultipartReader()
	if err != nil {
		fail(c, http.StatusBadRequest, "expected a multipart upload")
		return
	}
	part, err := mr.NextPart()
	if err != nil {
		fail(c, http.StatusBadRequest, "missing "+UploadField+" field")
		return
	}
	defer part.Close()
	if part.FormName() != UploadField {
		fail(c, http.StatusBadRequest, "unexpected field "+part.FormName())
		return
	}

	data, err := io.ReadAll(part)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		fail(c, http.StatusBadRequest, "could not read upload")
		return
	}
	logger.Debugf("upload %s: %d bytes", requestID(c), len(data))

	text, err := h.extractor.Extract(data)
	if err != nil {
		logger.Warnf("upload %s: %v", requestID(c), err)
		fail(c, http.StatusBadRequest, "could not read pdf")
		return
	}

	ctx := c.Request.Context()
	id, err := h.docs.Create(ctx, text)
	if err != nil {
		internalError(c)
		return
	}
	if h.archive != nil {
		if err := h.archive.Put(ctx, id, data); err != nil {
			logger.Warnf("archive upload %s failed: %v", id, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String()})
}

type recommendRequest struct {
	ID     string `json:"id" binding:"required"`
	Major  string `json:"major"`
	Campus string `json:"campus"`
	Query  string `json:"query"`
}

// Recommend builds a schedule from a stored report and returns the model's
// JSON unchanged.
func (h *Handler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := document.ParseID(req.ID)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid hex id")
		return
	}
	ctx := c.Request.Context()
	rec, err := h.docs.Get(ctx, id)
	if errors.Is(err, service.ErrNotFound) {
		fail(c, http.StatusBadRequest, "invalid document id")
		return
	}
	if err != nil {
		internalError(c)
		return
	}

	out, err := h.recommender.Recommend(ctx, rec.Content, recommend.Query{Major: req.Major, Campus: req.Campus, Query: req.Query})
	if err != nil {
		fail(c, http.StatusBadGateway, "recommendation failed")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := h.docs.Get(c.Request.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		fail(c, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id.String(), "content": rec.Content, "created": rec.Created})
}

func (h *Handler) HeadDocument(c *gin.Context) {
	id, err := document.ParseID(c.Param("id"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	ok, err := h.docs.Exists(c.Request.Context(), id)
	switch {
	case err != nil:
		c.Status(http.StatusInternalServerError)
	case !ok:
		c.Status(http.StatusNotFound)
	default:
		c.Status(http.StatusOK)
	}
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.docs.Delete(c.Request.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		fail(c, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// Original redirects to a short-lived download link for the archived PDF.
func (h *Handler) Original(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if h.archive == nil {
		fail(c, http.StatusNotFound, "upload archive not configured")
		return
	}
	ctx := c.Request.Context()
	exists, err := h.docs.Exists(ctx, id)
	if err != nil {
		internalError(c)
		return
	}
	if !exists {
		fail(c, http.StatusNotFound, "document not found")
		return
	}
	u, err := h.archive.PresignedURL(ctx, id, presignTTL)
	if err != nil {
		logger.Errorf("presign %s failed: %v", id, err)
		internalError(c)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, u)
}

func pathID(c *gin.Context) (document.ID, bool) {
	id, err := document.ParseID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid hex id")
		return id, false
	}
	return id, true
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func internalError(c *gin.Context) {
	fail(c, http.StatusInternalServerError, "internal server error")
}

func requestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return "-"
}
