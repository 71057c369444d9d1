package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// DefaultContractType is sent when the caller picks no classification
const DefaultContractType = "general"

// Limits are the client-side checks applied before any network call
type Limits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// DefaultLimits allows pdf and images up to 20MB
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:          20 << 20,
		AllowedExtensions: []string{"pdf", "png", "jpg", "jpeg"},
	}
}

// Uploader validates and submits files and starts analysis
type Uploader struct {
	transport Transport
	state     *State
	limits    Limits
}

// NewUploader creates an uploader
func NewUploader(t Transport, state *State, limits Limits) *Uploader {
	exts := make([]string, 0, len(limits.AllowedExtensions))
	for _, ext := range limits.AllowedExtensions {
		exts = append(exts, strings.TrimPrefix(strings.ToLower(ext), "."))
	}
	limits.AllowedExtensions = exts
	return &Uploader{transport: t, state: state, limits: limits}
}

// Validate rejects a file locally. It does not touch the session.
func (u *Uploader) Validate(upload model.Upload) error {
	if strings.TrimSpace(upload.Filename) == "" {
		return &model.ValidationError{Field: "file", Reason: "no file selected", Message: model.MsgSelectFile}
	}

	ext := upload.Extension()
	if !slices.Contains(u.limits.AllowedExtensions, ext) {
		return &model.ValidationError{
			Field:   "file",
			Reason:  fmt.Sprintf("extension %q is not allowed", ext),
			Message: model.MsgUnsupportedExt,
		}
	}

	if upload.Size() == 0 {
		return &model.ValidationError{Field: "file", Reason: "file is empty", Message: model.MsgEmptyFile}
	}
	if u.limits.MaxBytes > 0 && upload.Size() > u.limits.MaxBytes {
		return &model.ValidationError{
			Field:   "file",
			Reason:  fmt.Sprintf("size %d exceeds limit %d", upload.Size(), u.limits.MaxBytes),
			Message: model.MsgFileTooLarge,
		}
	}
	return nil
}

// Submit uploads the file for an uploading ticket. On success the session
// holds the new document id and is analyzing; the returned ticket carries it.
func (u *Uploader) Submit(ctx context.Context, t Ticket, upload model.Upload) (Ticket, error) {
	documentID, err := u.transport.Upload(ctx, upload)
	if err != nil {
		logger.Warn(ctx, "upload failed", "filename", upload.Filename, "error", err)
		u.state.failUpload(t)
		return Ticket{}, err
	}

	next, ok := u.state.assignDocument(t, documentID)
	if !ok {
		logger.Debug(ctx, "discarding stale upload", "document_id", documentID)
		return Ticket{}, model.ErrClosed
	}
	logger.Info(logger.WithDocument(ctx, documentID), "document uploaded",
		"filename", upload.Filename,
		"size", upload.Size(),
	)
	return next, nil
}

// Trigger asks the service to analyze the ticket's document. It reports
// whether this call moved the session to done.
func (u *Uploader) Trigger(ctx context.Context, t Ticket) (bool, error) {
	ctx = logger.WithDocument(ctx, t.DocumentID)

	contractType, ok := u.state.contractTypeFor(t)
	if !ok {
		return false, nil
	}

	if _, err := u.transport.Analyze(ctx, t.DocumentID, contractType); err != nil {
		if u.state.failAnalysis(t) {
			logger.Warn(ctx, "analysis trigger failed", "error", err)
		} else {
			logger.Debug(ctx, "discarding stale trigger failure", "error", err)
		}
		return false, err
	}

	done := u.state.completeAnalysis(t)
	if !done {
		logger.Debug(ctx, "trigger returned after session moved on")
	}
	return done, nil
}
