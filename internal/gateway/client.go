// Package gateway is the stateless REST client for the two backend
// subsystems (document processing and indexing/search) and the assistant
// endpoint. It owns no state of its own; callers decide retry policy.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookchat/internal/domain"
)

// Client maps one method to each backend capability. Failures surface as
// *domain.TransportError, *domain.ServiceError or *domain.DecodeError.
type Client struct {
	processingURL string
	indexingURL   string
	agentURL      string
	client        *http.Client
	uploadClient  *http.Client
	log           *zap.Logger
}

// Config carries the endpoints and timeouts for a Client. Upload and
// indexing calls use UploadTimeout since document processing is
// long-running.
type Config struct {
	ProcessingURL string
	IndexingURL   string
	AgentURL      string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// NewClient creates a gateway client. A nil logger disables logging.
func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout == 0 {
		uploadTimeout = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		processingURL: strings.TrimRight(cfg.ProcessingURL, "/"),
		indexingURL:   strings.TrimRight(cfg.IndexingURL, "/"),
		agentURL:      strings.TrimRight(cfg.AgentURL, "/"),
		client:        &http.Client{Timeout: timeout},
		uploadClient:  &http.Client{Timeout: uploadTimeout},
		log:           log,
	}
}

// UploadDocument submits a file to the processing service. The returned
// BookName is the server-assigned identifier for the book.
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader, userID string) (domain.UploadResult, error) {
	const op = "upload"
	var out domain.UploadResult

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}

	u := c.processingURL + "/pdf/upload"
	err = c.do(ctx, c.uploadClient, op, http.MethodPost, u, &buf, mw.FormDataContentType(), &out)
	if err == nil {
		c.log.Info("document uploaded", zap.String("book", out.BookName),
			zap.Int("chapters", out.TotalChapters), zap.Int("images", out.TotalImages))
	}
	return out, err
}

// BookStatus fetches the structural decomposition of a processed book.
func (c *Client) BookStatus(ctx context.Context, bookName, userID string) (domain.ProcessedBook, error) {
	var out domain.ProcessedBook
	u := fmt.Sprintf("%s/pdf/status/%s?%s", c.processingURL, url.PathEscape(bookName),
		url.Values{"user_id": {userID}}.Encode())
	err := c.do(ctx, c.client, "book status", http.MethodGet, u, nil, "", &out)
	return out, err
}

// ChapterContent fetches one chapter's payload.
func (c *Client) ChapterContent(ctx context.Context, bookName string, chapterID int, userID string) (domain.ChapterContent, error) {
	var out domain.ChapterContent
	u := fmt.Sprintf("%s/pdf/chapter/%s/%d?%s", c.processingURL, url.PathEscape(bookName), chapterID,
		url.Values{"user_id": {userID}}.Encode())
	err := c.do(ctx, c.client, "chapter content", http.MethodGet, u, nil, "", &out)
	return out, err
}

// DeleteBook removes a processed book from the processing service.
func (c *Client) DeleteBook(ctx context.Context, bookName, userID string) error {
	u := fmt.Sprintf("%s/pdf/delete/%s?%s", c.processingURL, url.PathEscape(bookName),
		url.Values{"user_id": {userID}}.Encode())
	return c.do(ctx, c.client, "delete book", http.MethodDelete, u, nil, "", nil)
}

// ScanAndIndex asks the indexing service to discover and index all new
// books. Administrative bulk operation; the upload flow uses IndexBook.
func (c *Client) ScanAndIndex(ctx context.Context) (domain.ScanResult, error) {
	var out domain.ScanResult
	u := c.indexingURL + "/embedding/scan-and-index"
	err := c.do(ctx, c.uploadClient, "scan and index", http.MethodPost, u, jsonBody(struct{}{}), "application/json", &out)
	return out, err
}

// IndexBook indexes one processed book into a collection. force rebuilds
// the index even when the book is already indexed.
func (c *Client) IndexBook(ctx context.Context, bookName, userID string, force bool) error {
	body := map[string]any{
		"book_name":     bookName,
		"user_id":       userID,
		"force_reindex": force,
	}
	u := c.indexingURL + "/embedding/index-book"
	return c.do(ctx, c.uploadClient, "index book", http.MethodPost, u, jsonBody(body), "application/json", nil)
}

// Collections lists every collection known to the indexing service.
func (c *Client) Collections(ctx context.Context) ([]domain.Collection, error) {
	var out struct {
		Total       int                 `json:"total"`
		Collections []domain.Collection `json:"collections"`
	}
	u := c.indexingURL + "/embedding/collections"
	if err := c.do(ctx, c.client, "list collections", http.MethodGet, u, nil, "", &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// CollectionInfo fetches metadata for one collection.
func (c *Client) CollectionInfo(ctx context.Context, name string) (domain.Collection, error) {
	var out domain.Collection
	u := c.indexingURL + "/embedding/collection/" + url.PathEscape(name)
	err := c.do(ctx, c.client, "collection info", http.MethodGet, u, nil, "", &out)
	return out, err
}

// Search runs a semantic search against one collection.
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	var out domain.SearchResponse
	u := c.indexingURL + "/embedding/search"
	err := c.do(ctx, c.client, "search", http.MethodPost, u, jsonBody(req), "application/json", &out)
	return out, err
}

// DeleteCollection removes a collection from the indexing service.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	u := c.indexingURL + "/embedding/collection/" + url.PathEscape(name)
	return c.do(ctx, c.client, "delete collection", http.MethodDelete, u, nil, "", nil)
}

// Chat sends one conversation turn. A nil dbName leaves the retrieval
// scope unset (all books / general knowledge).
func (c *Client) Chat(ctx context.Context, userID, sessionID, query string, dbName *string) (domain.ChatReply, error) {
	var out domain.ChatReply
	body := map[string]any{
		"user_id":    userID,
		"session_id": sessionID,
		"query":      query,
	}
	if dbName != nil {
		body["db_name"] = *dbName
	}
	u := c.agentURL + "/agent/chat"
	err := c.do(ctx, c.uploadClient, "chat", http.MethodPost, u, jsonBody(body), "application/json", &out)
	return out, err
}

// ClearSession deletes the server-side chat session.
func (c *Client) ClearSession(ctx context.Context, userID, sessionID string) error {
	u := fmt.Sprintf("%s/agent/session/%s/%s", c.agentURL, url.PathEscape(userID), url.PathEscape(sessionID))
	return c.do(ctx, c.client, "clear session", http.MethodDelete, u, nil, "", nil)
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, method, u string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("op", op), zap.String("url", u), zap.Error(err))
		return &domain.TransportError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg := serverDetail(resp.Body)
		c.log.Warn("service error", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.String("detail", msg))
		return &domain.ServiceError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.DecodeError{Op: op, Err: err}
		}
	}
	return nil
}

// serverDetail extracts the FastAPI-style {"detail": ...} message from an
// error body, falling back to the raw body text.
func serverDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", payload.Detail)
	}
	return strings.TrimSpace(string(data))
}

func jsonBody(v any) io.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}
