package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookchat/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		ProcessingURL: srv.URL,
		IndexingURL:   srv.URL,
		AgentURL:      srv.URL,
	}, nil)
}

func TestUploadDocumentSendsMultipart(t *testing.T) {
	var gotUser, gotFile, gotContent string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pdf/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotUser = r.FormValue("user_id")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotFile = hdr.Filename
		data, _ := io.ReadAll(f)
		gotContent = string(data)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "ok", "book_name": "physics", "total_chapters": 12, "total_images": 3,
		})
	}))

	res, err := c.UploadDocument(context.Background(), "physics.pdf", strings.NewReader("%PDF-1.4"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "physics.pdf", gotFile)
	assert.Equal(t, "%PDF-1.4", gotContent)
	assert.Equal(t, "physics", res.BookName)
	assert.Equal(t, 12, res.TotalChapters)
}

func TestServiceErrorCarriesDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Book 'ghost' not found in S3"}`)
	}))

	_, err := c.BookStatus(context.Background(), "ghost", "user-1")
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Equal(t, "Book 'ghost' not found in S3", se.Message)
	assert.True(t, domain.IsNotFound(err))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := NewClient(Config{ProcessingURL: srv.URL, IndexingURL: srv.URL, AgentURL: srv.URL}, nil)

	_, err := c.Collections(context.Background())
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "list collections", te.Op)
}

func TestDecodeErrorOnMalformedBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total": `)
	}))

	_, err := c.Collections(context.Background())
	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
}

func TestIndexBookBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embedding/index-book", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"message": "ok"}`)
	}))

	require.NoError(t, c.IndexBook(context.Background(), "physics", "user-1", true))
	assert.Equal(t, "physics", got["book_name"])
	assert.Equal(t, "user-1", got["user_id"])
	assert.Equal(t, true, got["force_reindex"])
}

func TestCollectionsDecodesListing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embedding/collections", r.URL.Path)
		io.WriteString(w, `{"total": 2, "collections": [
			{"name": "physics", "points_count": 120, "vector_size": 768, "distance": "Cosine"},
			{"name": "chemistry", "points_count": 80, "vector_size": 768, "distance": "Cosine"}
		]}`)
	}))

	cols, err := c.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "physics", cols[0].Name)
	assert.Equal(t, 120, cols[0].PointsCount)
}

func TestChatScopedAndUnscoped(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agent/chat", r.URL.Path)
		got = map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"response": "42", "artifacts": [{"kind": "plot"}]}`)
	}))

	db := "physics"
	reply, err := c.Chat(context.Background(), "u", "s", "why?", &db)
	require.NoError(t, err)
	assert.Equal(t, "physics", got["db_name"])
	assert.Equal(t, "42", reply.Response)
	require.Len(t, reply.Artifacts, 1)
	assert.Equal(t, "plot", reply.Artifacts[0]["kind"])

	_, err = c.Chat(context.Background(), "u", "s", "why?", nil)
	require.NoError(t, err)
	_, present := got["db_name"]
	assert.False(t, present, "db_name must be omitted when unscoped")
}

func TestDeleteBookAndCollectionPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		io.WriteString(w, `{"message": "ok"}`)
	}))

	require.NoError(t, c.DeleteCollection(context.Background(), "physics"))
	require.NoError(t, c.DeleteBook(context.Background(), "physics", "u"))
	require.NoError(t, c.ClearSession(context.Background(), "u", "s"))
	assert.Equal(t, []string{
		"DELETE /embedding/collection/physics",
		"DELETE /pdf/delete/physics",
		"DELETE /agent/session/u/s",
	}, paths)
}
