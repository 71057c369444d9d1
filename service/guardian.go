package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/jangwonii/contract-gaurdian/config"
	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// maxErrorBody caps how much of a failed response is kept for the error
const maxErrorBody = 4 << 10

// GuardianService talks to the remote contract analysis service
type GuardianService struct {
	config     *config.GuardianConfig
	httpClient *http.Client
}

// UploadResponse is the reply to a document upload
type UploadResponse struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename,omitempty"`
}

// AnalyzeRequest is the body of the analysis trigger
type AnalyzeRequest struct {
	ContractType string `json:"contract_type"`
}

// SuggestRequest is the body of a clause improvement request
type SuggestRequest struct {
	ClauseText string `json:"clause_text"`
}

func NewGuardianService(cfg *config.GuardianConfig) *GuardianService {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GuardianService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upload submits the file as multipart field "file" and returns the new
// document id.
func (s *GuardianService) Upload(ctx context.Context, upload model.Upload) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(upload.Filename)))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", transportErr(model.OpUpload, "", 0, fmt.Errorf("failed to create form part: %w", err))
	}
	if _, err := part.Write(upload.Data); err != nil {
		return "", transportErr(model.OpUpload, "", 0, fmt.Errorf("failed to write form part: %w", err))
	}
	if err := writer.Close(); err != nil {
		return "", transportErr(model.OpUpload, "", 0, fmt.Errorf("failed to close form: %w", err))
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/api/documents", &buf)
	if err != nil {
		return "", transportErr(model.OpUpload, "", 0, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResponse
	if err := s.doJSON(req, model.OpUpload, "", &result); err != nil {
		return "", err
	}
	if result.DocumentID == "" {
		return "", transportErr(model.OpUpload, "", 0, errors.New("response has no documentId"))
	}
	return result.DocumentID, nil
}

// Analyze triggers analysis of a stored document
func (s *GuardianService) Analyze(ctx context.Context, documentID, contractType string) (*model.AnalysisResult, error) {
	req, err := s.newJSONRequest(ctx, http.MethodPost, documentPath(documentID, "analyze"), AnalyzeRequest{ContractType: contractType})
	if err != nil {
		return nil, transportErr(model.OpAnalyze, documentID, 0, err)
	}

	var result model.AnalysisResult
	if err := s.doJSON(req, model.OpAnalyze, documentID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status queries the pipeline progress of a document
func (s *GuardianService) Status(ctx context.Context, documentID string) (*model.StatusSnapshot, error) {
	req, err := s.newRequest(ctx, http.MethodGet, documentPath(documentID, "status"), nil)
	if err != nil {
		return nil, transportErr(model.OpStatus, documentID, 0, err)
	}

	var snap model.StatusSnapshot
	if err := s.doJSON(req, model.OpStatus, documentID, &snap); err != nil {
		return nil, err
	}
	if snap.DocumentID == "" {
		snap.DocumentID = documentID
	}
	return &snap, nil
}

// Result fetches the final analysis of a document
func (s *GuardianService) Result(ctx context.Context, documentID string) (*model.AnalysisResult, error) {
	req, err := s.newRequest(ctx, http.MethodGet, documentPath(documentID, "result"), nil)
	if err != nil {
		return nil, transportErr(model.OpResult, documentID, 0, err)
	}

	var result model.AnalysisResult
	if err := s.doJSON(req, model.OpResult, documentID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Report requests the rendered report. The body is returned unread and the
// caller must close it.
func (s *GuardianService) Report(ctx context.Context, documentID string, format model.ReportFormat) (*model.Report, error) {
	path := documentPath(documentID, "report") + "?" + url.Values{"format": {string(format)}}.Encode()
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, transportErr(model.OpReport, documentID, 0, err)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := s.do(req, model.OpReport, documentID)
	if err != nil {
		return nil, err
	}

	return &model.Report{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Size:        resp.ContentLength,
	}, nil
}

// Suggest asks for an improved wording of one clause
func (s *GuardianService) Suggest(ctx context.Context, documentID, clauseID, clauseText string) (*model.ClauseImprovement, error) {
	path := documentPath(documentID, "clauses", clauseID, "suggestion")
	req, err := s.newJSONRequest(ctx, http.MethodPost, path, SuggestRequest{ClauseText: clauseText})
	if err != nil {
		return nil, transportErr(model.OpSuggest, documentID, 0, err)
	}

	var imp model.ClauseImprovement
	if err := s.doJSON(req, model.OpSuggest, documentID, &imp); err != nil {
		return nil, err
	}
	if imp.ClauseID == "" {
		imp.ClauseID = clauseID
	}
	return &imp, nil
}

func (s *GuardianService) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(s.config.APIURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (s *GuardianService) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := s.newRequest(ctx, method, path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and turns any non-2xx reply into a TransportError.
// On success the caller owns resp.Body.
func (s *GuardianService) do(req *http.Request, op model.Op, documentID string) (*http.Response, error) {
	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(op, documentID, 0, fmt.Errorf("failed to send request: %w", err))
	}

	logger.Debug(req.Context(), "analysis service call",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, transportErr(op, documentID, resp.StatusCode, fmt.Errorf("service error: %s", strings.TrimSpace(string(body))))
	}
	return resp, nil
}

func (s *GuardianService) doJSON(req *http.Request, op model.Op, documentID string, out any) error {
	resp, err := s.do(req, op, documentID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(op, documentID, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportErr(op, documentID, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func transportErr(op model.Op, documentID string, status int, err error) error {
	return &model.TransportError{Op: op, DocumentID: documentID, StatusCode: status, Err: err}
}

// documentPath builds /api/documents/{id}/... with every segment escaped
func documentPath(documentID string, segments ...string) string {
	parts := []string{"/api/documents", url.PathEscape(documentID)}
	for _, seg := range segments {
		parts = append(parts, url.PathEscape(seg))
	}
	return strings.Join(parts, "/")
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
