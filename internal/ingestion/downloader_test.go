package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPDownloader_RequiresFileIDPlaceholder(t *testing.T) {
	_, err := NewHTTPDownloader("https://lms.example.edu/files/latest", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{file_id}")
}

func TestHTTPDownloader_ResolveURL(t *testing.T) {
	d, err := NewHTTPDownloader("https://lms.example.edu/courses/{assignment_id}/files/{file_id}", "")
	require.NoError(t, err)

	assert.Equal(t, "https://lms.example.edu/courses/a%2F1/files/f%209", d.ResolveURL("a/1", "f 9"))
}

func TestHTTPDownloader_Download(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="syllabus.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4\n%%EOF\n"))
	}))
	defer srv.Close()

	d, err := NewHTTPDownloader(srv.URL+"/files/{file_id}/download", "secret-token")
	require.NoError(t, err)

	got, err := d.Download(context.Background(), "course-1", "42")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/files/42/download", gotPath)
	assert.Equal(t, []byte("%PDF-1.4\n%%EOF\n"), got.Body)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "syllabus.pdf", got.Filename)
	assert.Equal(t, srv.URL+"/files/42/download", got.SourceURL)
}

func TestHTTPDownloader_NonOKIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	d, err := NewHTTPDownloader(srv.URL+"/files/{file_id}", "")
	require.NoError(t, err)

	_, err = d.Download(context.Background(), "course-1", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResponse))
}

func TestDirDownloader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "week1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "week1", "notes.txt"), []byte("Read chapter 1."), 0o644))

	d := &DirDownloader{Dir: dir}
	got, err := d.Download(context.Background(), "course-1", "week1/notes.txt")
	require.NoError(t, err)

	assert.Equal(t, []byte("Read chapter 1."), got.Body)
	assert.Equal(t, "notes.txt", got.Filename)
	assert.Contains(t, got.SourceURL, "file://")
}

func TestDirDownloader_RejectsEscapingIDs(t *testing.T) {
	d := &DirDownloader{Dir: t.TempDir()}

	for _, id := range []string{"../secret.txt", "/etc/passwd", ".", ""} {
		t.Run(id, func(t *testing.T) {
			_, err := d.Download(context.Background(), "course-1", id)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBadResponse))
		})
	}
}

func TestDirDownloader_MissingFile(t *testing.T) {
	d := &DirDownloader{Dir: t.TempDir()}
	_, err := d.Download(context.Background(), "course-1", "nope.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResponse))
}

func TestDirDownloader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &DirDownloader{Dir: t.TempDir()}
	_, err := d.Download(ctx, "course-1", "notes.txt")
	assert.ErrorIs(t, err, context.Canceled)
}
