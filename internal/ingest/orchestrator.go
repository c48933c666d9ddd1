// Package ingest drives the multi-step workflow that turns an uploaded
// file into a queryable collection. The processing and indexing services
// do not share a transaction, so the orchestrator's job is to sequence
// the two writes and to report partial outcomes precisely enough that the
// missing half can be retried on its own.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"bookchat/internal/domain"
)

// Gateway is the orchestrator-facing subset of the backend client.
type Gateway interface {
	UploadDocument(ctx context.Context, filename string, r io.Reader, userID string) (domain.UploadResult, error)
	IndexBook(ctx context.Context, bookName, userID string, force bool) error
	DeleteCollection(ctx context.Context, name string) error
	DeleteBook(ctx context.Context, bookName, userID string) error
}

// Orchestrator owns the only multi-service write transactions in the
// client: ingest (upload then index) and delete (collection then book).
type Orchestrator struct {
	gw  Gateway
	log *zap.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger disables logging.
func NewOrchestrator(gw Gateway, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{gw: gw, log: log}
}

// Ingest uploads the file at path and indexes the resulting book.
// The returned name is the server-assigned book identifier. An upload
// failure creates nothing and is returned unchanged; an indexing failure
// after a successful upload is reported as *domain.PartialIngestionError,
// since at that point a processed book exists with no collection.
// The caller refreshes the catalog to observe the new collection.
func (o *Orchestrator) Ingest(ctx context.Context, path, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrNoIdentity
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrEmptyFile, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return "", domain.ErrEmptyFile
	}

	filename := filepath.Base(path)
	// Advisory only; the upload response names the book.
	provisional := strings.TrimSuffix(filename, filepath.Ext(filename))

	res, err := o.gw.UploadDocument(ctx, filename, f, userID)
	if err != nil {
		o.log.Warn("upload failed", zap.String("file", filename), zap.Error(err))
		return "", err
	}
	bookName := res.BookName
	if bookName == "" {
		bookName = provisional
	}

	if err := o.gw.IndexBook(ctx, bookName, userID, false); err != nil {
		o.log.Warn("indexing failed after upload", zap.String("book", bookName), zap.Error(err))
		return bookName, &domain.PartialIngestionError{BookName: bookName, Err: err}
	}
	o.log.Info("book ingested", zap.String("book", bookName))
	return bookName, nil
}

// Reindex retries the indexing half for a book whose upload already
// succeeded, the recovery path for a partial ingestion. force rebuilds
// the collection from scratch.
func (o *Orchestrator) Reindex(ctx context.Context, bookName, userID string, force bool) error {
	if err := o.gw.IndexBook(ctx, bookName, userID, force); err != nil {
		return &domain.PartialIngestionError{BookName: bookName, Err: err}
	}
	return nil
}

// Delete removes a book from both services. The collection goes first so
// the book disappears from the catalog and chat scope immediately even if
// the second call fails; a failure of the processing-side delete is then
// reported as *domain.PartialDeletionError. A 404 from either half means
// that half is already gone and is not an error.
func (o *Orchestrator) Delete(ctx context.Context, bookName, userID string) error {
	if err := o.gw.DeleteCollection(ctx, bookName); err != nil && !domain.IsNotFound(err) {
		return err
	}
	if err := o.gw.DeleteBook(ctx, bookName, userID); err != nil && !domain.IsNotFound(err) {
		o.log.Warn("processed book left dangling", zap.String("book", bookName), zap.Error(err))
		return &domain.PartialDeletionError{BookName: bookName, Err: err}
	}
	o.log.Info("book deleted", zap.String("book", bookName))
	return nil
}
