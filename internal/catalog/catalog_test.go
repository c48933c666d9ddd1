package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookchat/internal/domain"
)

type fakeGateway struct {
	collections []domain.Collection
	listErr     error
	books       map[string]domain.ProcessedBook
}

func (f *fakeGateway) Collections(ctx context.Context) ([]domain.Collection, error) {
	return f.collections, f.listErr
}

func (f *fakeGateway) BookStatus(ctx context.Context, bookName, userID string) (domain.ProcessedBook, error) {
	b, ok := f.books[bookName]
	if !ok {
		return domain.ProcessedBook{}, &domain.ServiceError{Op: "book status", Status: 404, Message: "not found"}
	}
	return b, nil
}

func (f *fakeGateway) ChapterContent(ctx context.Context, bookName string, chapterID int, userID string) (domain.ChapterContent, error) {
	return domain.ChapterContent{ChapterID: chapterID, Content: "text"}, nil
}

func TestRefreshMirrorsListing(t *testing.T) {
	gw := &fakeGateway{collections: []domain.Collection{{Name: "physics"}, {Name: "chemistry"}}}
	lib := NewLibrary(gw, nil)

	cols, err := lib.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, cols, lib.Collections())

	gw.collections = []domain.Collection{{Name: "physics"}}
	cols, err = lib.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "physics", cols[0].Name)
}

func TestRefreshFailureKeepsLastListing(t *testing.T) {
	gw := &fakeGateway{collections: []domain.Collection{{Name: "physics"}}}
	lib := NewLibrary(gw, nil)
	_, err := lib.Refresh(context.Background())
	require.NoError(t, err)

	gw.listErr = errors.New("boom")
	_, err = lib.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, lib.Collections(), 1)
}

func TestDetailSucceedsWithoutCollection(t *testing.T) {
	// "orphan" is processed but not indexed: invisible in the listing, yet
	// its detail must still resolve.
	gw := &fakeGateway{
		collections: nil,
		books: map[string]domain.ProcessedBook{
			"orphan": {BookName: "orphan", TotalChapters: 3, Chapters: []domain.Chapter{{}, {}, {}}},
		},
	}
	lib := NewLibrary(gw, nil)

	cols, err := lib.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cols)

	book, err := lib.Detail(context.Background(), "orphan", "u")
	require.NoError(t, err)
	assert.Equal(t, 3, book.TotalChapters)
}

func TestDetailNotFound(t *testing.T) {
	lib := NewLibrary(&fakeGateway{}, nil)
	_, err := lib.Detail(context.Background(), "ghost", "u")
	assert.True(t, domain.IsNotFound(err))
}
