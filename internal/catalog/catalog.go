// Package catalog presents the list of usable books. The indexing
// service's collection listing is the sole source of truth for what
// appears here: a processed book with no collection is intentionally
// invisible until it is indexed.
package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"bookchat/internal/domain"
)

// Gateway is the catalog-facing subset of the backend client.
type Gateway interface {
	Collections(ctx context.Context) ([]domain.Collection, error)
	BookStatus(ctx context.Context, bookName, userID string) (domain.ProcessedBook, error)
	ChapterContent(ctx context.Context, bookName string, chapterID int, userID string) (domain.ChapterContent, error)
}

// Library aggregates collection metadata into the book list shown to the
// user and serves per-book structural detail.
type Library struct {
	gw  Gateway
	log *zap.Logger

	mu   sync.Mutex
	last []domain.Collection
}

// NewLibrary creates a library backed by gw. A nil logger disables logging.
func NewLibrary(gw Gateway, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{gw: gw, log: log}
}

// Refresh queries the collection listing and replaces the cached view.
// On failure the previously cached listing is kept.
func (l *Library) Refresh(ctx context.Context) ([]domain.Collection, error) {
	cols, err := l.gw.Collections(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.last = cols
	l.mu.Unlock()
	l.log.Debug("catalog refreshed", zap.Int("collections", len(cols)))
	return cols, nil
}

// Collections returns the last successful listing.
func (l *Library) Collections() []domain.Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Collection, len(l.last))
	copy(out, l.last)
	return out
}

// Detail fetches the chapter structure of a book from the processing
// service. This can succeed for a book that has no collection; callers
// must not take a successful detail as proof the book is listed.
func (l *Library) Detail(ctx context.Context, bookName, userID string) (domain.ProcessedBook, error) {
	return l.gw.BookStatus(ctx, bookName, userID)
}

// Chapter fetches one chapter's content. Nothing is cached; the content
// lives only as long as the open view.
func (l *Library) Chapter(ctx context.Context, bookName string, chapterID int, userID string) (domain.ChapterContent, error) {
	return l.gw.ChapterContent(ctx, bookName, chapterID, userID)
}
