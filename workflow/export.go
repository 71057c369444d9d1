package workflow

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// Artifact is a report ready to be saved
type Artifact struct {
	DocumentID  string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Saver is the platform's save mechanism: a browser download, a bucket,
// a directory. It returns where the artifact ended up.
type Saver interface {
	Save(ctx context.Context, a Artifact) (string, error)
}

// SaverFunc adapts a function to Saver
type SaverFunc func(ctx context.Context, a Artifact) (string, error)

// Save calls f
func (f SaverFunc) Save(ctx context.Context, a Artifact) (string, error) {
	return f(ctx, a)
}

// Exported describes a finished export
type Exported struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Location    string `json:"location,omitempty"`
}

// Exporter downloads report artifacts and hands them to a Saver
type Exporter struct {
	transport Transport
	state     *State
	tempDir   string
}

// NewExporter creates an exporter spooling artifacts under tempDir
// (os.TempDir when empty).
func NewExporter(t Transport, state *State, tempDir string) *Exporter {
	return &Exporter{transport: t, state: state, tempDir: tempDir}
}

// Export requests the report in format and saves it. Only one export runs at
// a time; a second trigger while one is pending returns ErrExportInFlight
// without side effects. The spooled temp file is removed on every path.
func (e *Exporter) Export(ctx context.Context, format model.ReportFormat, saver Saver) (*Exported, error) {
	documentID, err := e.state.beginExport()
	if err != nil {
		return nil, err
	}
	ctx = logger.WithDocument(ctx, documentID)

	out, err := e.export(ctx, documentID, format, saver)
	e.state.finishExport(documentID, err)
	if err != nil {
		logger.Warn(ctx, "report export failed", "format", format, "error", err)
		return nil, err
	}
	logger.Info(ctx, "report exported", "filename", out.Filename, "size", out.Size, "location", out.Location)
	return out, nil
}

func (e *Exporter) export(ctx context.Context, documentID string, format model.ReportFormat, saver Saver) (*Exported, error) {
	report, err := e.transport.Report(ctx, documentID, format)
	if err != nil {
		return nil, err
	}
	defer report.Body.Close()

	tmp, err := os.CreateTemp(e.tempDir, "guardian-report-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, report.Body)
	if err != nil {
		return nil, &model.TransportError{Op: model.OpReport, DocumentID: documentID, Err: fmt.Errorf("failed to read report: %w", err)}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind spool file: %w", err)
	}

	contentType := report.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	artifact := Artifact{
		DocumentID:  documentID,
		Filename:    ReportFilename(report.ContentType, report.Filename, format),
		ContentType: contentType,
		Size:        size,
		Body:        tmp,
	}

	location, err := saver.Save(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return &Exported{
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
		Size:        size,
		Location:    location,
	}, nil
}

// ReportFilename derives the saved name from the declared content type. A
// service-provided name is kept when its extension agrees with the type; an
// ambiguous type falls back to the requested format's default name.
func ReportFilename(contentType, suggested string, format model.ReportFormat) string {
	ext := extensionFor(contentType)
	if ext == "" {
		return format.DefaultFilename()
	}

	name := filepath.Base(strings.TrimSpace(suggested))
	if name != "." && name != string(filepath.Separator) && strings.EqualFold(filepath.Ext(name), "."+ext) {
		return name
	}
	return "report." + ext
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/pdf":
		return "pdf"
	case "text/markdown", "text/x-markdown":
		return "md"
	default:
		return ""
	}
}
