package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookchat/internal/domain"
)

type fakeGateway struct {
	calls []string

	uploadResult domain.UploadResult
	uploadErr    error
	indexErr     error
	delCollErr   error
	delBookErr   error
}

func (f *fakeGateway) UploadDocument(ctx context.Context, filename string, r io.Reader, userID string) (domain.UploadResult, error) {
	f.calls = append(f.calls, "upload:"+filename)
	return f.uploadResult, f.uploadErr
}

func (f *fakeGateway) IndexBook(ctx context.Context, bookName, userID string, force bool) error {
	f.calls = append(f.calls, "index:"+bookName)
	return f.indexErr
}

func (f *fakeGateway) DeleteCollection(ctx context.Context, name string) error {
	f.calls = append(f.calls, "delete-collection:"+name)
	return f.delCollErr
}

func (f *fakeGateway) DeleteBook(ctx context.Context, bookName, userID string) error {
	f.calls = append(f.calls, "delete-book:"+bookName)
	return f.delBookErr
}

func writeTempPDF(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestHappyPath(t *testing.T) {
	gw := &fakeGateway{uploadResult: domain.UploadResult{BookName: "physics", TotalChapters: 12}}
	o := NewOrchestrator(gw, nil)

	book, err := o.Ingest(context.Background(), writeTempPDF(t, "physics.pdf", "%PDF"), "u")
	require.NoError(t, err)
	assert.Equal(t, "physics", book)
	assert.Equal(t, []string{"upload:physics.pdf", "index:physics"}, gw.calls)
}

func TestIngestServerAssignedNameWins(t *testing.T) {
	// Local derivation says "My Book (final)", the server says "my_book".
	gw := &fakeGateway{uploadResult: domain.UploadResult{BookName: "my_book"}}
	o := NewOrchestrator(gw, nil)

	book, err := o.Ingest(context.Background(), writeTempPDF(t, "My Book (final).pdf", "%PDF"), "u")
	require.NoError(t, err)
	assert.Equal(t, "my_book", book)
	assert.Contains(t, gw.calls, "index:my_book")
}

func TestIngestFallsBackToDerivedName(t *testing.T) {
	gw := &fakeGateway{uploadResult: domain.UploadResult{}}
	o := NewOrchestrator(gw, nil)

	book, err := o.Ingest(context.Background(), writeTempPDF(t, "physics.pdf", "%PDF"), "u")
	require.NoError(t, err)
	assert.Equal(t, "physics", book)
}

func TestIngestUploadFailureIsTerminal(t *testing.T) {
	boom := &domain.ServiceError{Op: "upload", Status: 500, Message: "parse error"}
	gw := &fakeGateway{uploadErr: boom}
	o := NewOrchestrator(gw, nil)

	_, err := o.Ingest(context.Background(), writeTempPDF(t, "physics.pdf", "%PDF"), "u")
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	var pe *domain.PartialIngestionError
	assert.False(t, errors.As(err, &pe), "upload failure is not a partial ingestion")
	assert.Equal(t, []string{"upload:physics.pdf"}, gw.calls, "indexing must not run")
}

func TestIngestIndexFailureIsPartial(t *testing.T) {
	gw := &fakeGateway{
		uploadResult: domain.UploadResult{BookName: "physics"},
		indexErr:     errors.New("embedding service down"),
	}
	o := NewOrchestrator(gw, nil)

	book, err := o.Ingest(context.Background(), writeTempPDF(t, "physics.pdf", "%PDF"), "u")
	var pe *domain.PartialIngestionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "physics", pe.BookName)
	assert.Equal(t, "physics", book)
}

func TestIngestRejectsEmptyFile(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, nil)

	_, err := o.Ingest(context.Background(), writeTempPDF(t, "empty.pdf", ""), "u")
	require.ErrorIs(t, err, domain.ErrEmptyFile)
	assert.Empty(t, gw.calls)

	_, err = o.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "u")
	require.ErrorIs(t, err, domain.ErrEmptyFile)
}

func TestIngestRequiresIdentity(t *testing.T) {
	o := NewOrchestrator(&fakeGateway{}, nil)
	_, err := o.Ingest(context.Background(), writeTempPDF(t, "a.pdf", "x"), "")
	require.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestDeleteOrdering(t *testing.T) {
	gw := &fakeGateway{}
	o := NewOrchestrator(gw, nil)

	require.NoError(t, o.Delete(context.Background(), "physics", "u"))
	assert.Equal(t, []string{"delete-collection:physics", "delete-book:physics"}, gw.calls)
}

func TestDeleteSecondHalfFailureIsPartial(t *testing.T) {
	gw := &fakeGateway{delBookErr: errors.New("s3 unavailable")}
	o := NewOrchestrator(gw, nil)

	err := o.Delete(context.Background(), "physics", "u")
	var pe *domain.PartialDeletionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "physics", pe.BookName)
	// The collection delete still happened first.
	assert.Equal(t, "delete-collection:physics", gw.calls[0])
}

func TestDeleteCollectionFailureStopsEarly(t *testing.T) {
	gw := &fakeGateway{delCollErr: errors.New("qdrant down")}
	o := NewOrchestrator(gw, nil)

	err := o.Delete(context.Background(), "physics", "u")
	require.Error(t, err)
	var pe *domain.PartialDeletionError
	assert.False(t, errors.As(err, &pe))
	assert.Equal(t, []string{"delete-collection:physics"}, gw.calls)
}

func TestDeleteToleratesAlreadyAbsentHalves(t *testing.T) {
	notFound := &domain.ServiceError{Op: "x", Status: 404, Message: "not found"}
	gw := &fakeGateway{delCollErr: notFound, delBookErr: notFound}
	o := NewOrchestrator(gw, nil)

	require.NoError(t, o.Delete(context.Background(), "physics", "u"))
	assert.Len(t, gw.calls, 2)
}

func TestReindexWrapsFailureAsPartial(t *testing.T) {
	gw := &fakeGateway{indexErr: errors.New("still down")}
	o := NewOrchestrator(gw, nil)

	err := o.Reindex(context.Background(), "physics", "u", true)
	var pe *domain.PartialIngestionError
	require.ErrorAs(t, err, &pe)

	gw.indexErr = nil
	require.NoError(t, o.Reindex(context.Background(), "physics", "u", false))
}
