package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jangwonii/contract-gaurdian/middleware"
	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
	"github.com/jangwonii/contract-gaurdian/service"
	"github.com/jangwonii/contract-gaurdian/workflow"
)

// Archiver hands out a report saver scoped to one user
type Archiver interface {
	SaverFor(username string) workflow.Saver
}

// SessionHandler exposes the caller's document session
type SessionHandler struct {
	store    *service.SessionStore
	archive  Archiver // nil when no bucket is configured
	maxBytes int64
}

func NewSessionHandler(store *service.SessionStore, archive Archiver, maxBytes int64) *SessionHandler {
	return &SessionHandler{store: store, archive: archive, maxBytes: maxBytes}
}

// Register mounts the session routes on a protected group
func (h *SessionHandler) Register(r gin.IRoutes) {
	r.GET("/session", h.Get)
	r.DELETE("/session", h.Delete)
	r.POST("/session/upload", h.Upload)
	r.POST("/session/retry", h.Retry)
	r.POST("/session/refresh", h.Refresh)
	r.POST("/session/clauses/:clauseId/suggestion", h.Suggest)
	r.GET("/session/report", h.Download)
	r.POST("/session/report/archive", h.Archive)
}

func (h *SessionHandler) controller(c *gin.Context) *workflow.Controller {
	return h.store.Get(middleware.GetUsername(c))
}

// detached keeps request-scoped log values but outlives the HTTP request:
// a client hanging up must not abort an upload half way.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// Get returns the session view
func (h *SessionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller(c).View())
}

// Delete detaches the consumer; polling stops and the session is forgotten
func (h *SessionHandler) Delete(c *gin.Context) {
	h.store.Delete(middleware.GetUsername(c))
	c.Status(http.StatusNoContent)
}

// Upload starts a new session from a multipart file
func (h *SessionHandler) Upload(c *gin.Context) {
	upload, err := h.readUpload(c)
	if err != nil {
		writeError(c, err, model.MsgWorkflowFailed)
		return
	}

	ctrl := h.controller(c)
	if _, err := ctrl.Submit(detached(c), upload, c.PostForm("contract_type")); err != nil {
		writeError(c, err, model.MsgWorkflowFailed)
		return
	}
	c.JSON(http.StatusOK, ctrl.View())
}

// readUpload reads the "file" field. A missing field becomes an empty
// selection so the workflow's validation produces the message.
func (h *SessionHandler) readUpload(c *gin.Context) (model.Upload, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return model.Upload{}, nil
	}
	defer file.Close()

	// One byte past the ceiling is enough for validation to reject it
	limit := h.maxBytes
	if limit <= 0 {
		limit = workflow.DefaultLimits().MaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return model.Upload{}, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return model.Upload{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

// Retry resumes a failed session
func (h *SessionHandler) Retry(c *gin.Context) {
	ctrl := h.controller(c)
	if err := ctrl.Retry(detached(c)); err != nil {
		writeError(c, err, model.MsgWorkflowFailed)
		return
	}
	c.JSON(http.StatusOK, ctrl.View())
}

// Refresh reloads the latest result
func (h *SessionHandler) Refresh(c *gin.Context) {
	ctrl := h.controller(c)
	if err := ctrl.Refresh(detached(c)); err != nil {
		writeError(c, err, model.MsgResultFailed)
		return
	}
	c.JSON(http.StatusOK, ctrl.View())
}

type suggestRequest struct {
	ClauseText string `json:"clause_text"`
}

// Suggest requests an improvement for one clause. Without clause_text the
// clause's stored text is used.
func (h *SessionHandler) Suggest(c *gin.Context) {
	clauseID := c.Param("clauseId")

	var req suggestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": model.MsgSuggestFailed})
			return
		}
	}

	ctrl := h.controller(c)
	text := strings.TrimSpace(req.ClauseText)
	if text == "" {
		text = clauseText(ctrl.View(), clauseID)
	}

	imp, err := ctrl.RequestSuggestion(c.Request.Context(), clauseID, text)
	if err != nil {
		writeError(c, err, model.MsgSuggestFailed)
		return
	}
	c.JSON(http.StatusOK, imp)
}

func clauseText(view model.SessionView, clauseID string) string {
	if view.Result == nil {
		return ""
	}
	for _, cl := range view.Result.Clauses {
		if cl.ID == clauseID {
			return cl.RawText
		}
	}
	return ""
}

// Download streams the report to the browser as an attachment
func (h *SessionHandler) Download(c *gin.Context) {
	format, err := model.ParseReportFormat(c.Query("format"))
	if err != nil {
		writeError(c, err, model.MsgExportFailed)
		return
	}

	saver := workflow.SaverFunc(func(ctx context.Context, a workflow.Artifact) (string, error) {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})
		c.DataFromReader(http.StatusOK, a.Size, a.ContentType, a.Body, map[string]string{
			"Content-Disposition": disposition,
		})
		return "", c.Request.Context().Err()
	})

	if _, err := h.controller(c).Export(c.Request.Context(), format, saver); err != nil {
		if c.Writer.Written() {
			logger.Warn(c.Request.Context(), "report download interrupted", "error", err)
			return
		}
		writeError(c, err, model.MsgExportFailed)
	}
}

// Archive stores the report in the bucket and returns a download link
func (h *SessionHandler) Archive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": model.MsgArchiveDisabled})
		return
	}
	format, err := model.ParseReportFormat(c.Query("format"))
	if err != nil {
		writeError(c, err, model.MsgExportFailed)
		return
	}

	username := middleware.GetUsername(c)
	out, err := h.controller(c).Export(c.Request.Context(), format, h.archive.SaverFor(username))
	if err != nil {
		writeError(c, err, model.MsgExportFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":          out.Location,
		"filename":     out.Filename,
		"content_type": out.ContentType,
		"size":         out.Size,
	})
}
