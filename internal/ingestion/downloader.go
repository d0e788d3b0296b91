// Package ingestion downloads source materials, identifies them, stores their
// bytes and extracts the text handed to the generator.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/deliverable-builder/internal/fetch"
)

// Download is the raw response for one external file.
type Download struct {
	Body        []byte
	ContentType string
	Filename    string
	SourceURL   string
}

// Downloader fetches an instructor file by its external identifier.
type Downloader interface {
	Download(ctx context.Context, assignmentID, externalFileID string) (*Download, error)
}

// ErrBadResponse marks a download that returned no usable body.
var ErrBadResponse = errors.New("bad download response")

// ErrMaterialChanged marks a re-download whose bytes differ from the stored material.
var ErrMaterialChanged = errors.New("material changed upstream")

// HTTPDownloader resolves external file ids against a URL template.
// The template may use {assignment_id} and {file_id} placeholders, e.g.
// "https://lms.example.edu/api/v1/courses/7/files/{file_id}/download".
type HTTPDownloader struct {
	URLTemplate string
	Options     *fetch.Options
}

// NewHTTPDownloader creates a downloader for urlTemplate. A non-empty
// bearerToken is sent as an Authorization header.
func NewHTTPDownloader(urlTemplate, bearerToken string) (*HTTPDownloader, error) {
	if !strings.Contains(urlTemplate, "{file_id}") {
		return nil, fmt.Errorf("download URL template must contain {file_id}: %q", urlTemplate)
	}
	opts := fetch.DefaultOptions()
	if bearerToken != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + bearerToken}
	}
	return &HTTPDownloader{URLTemplate: urlTemplate, Options: opts}, nil
}

// ResolveURL expands the template for a file.
func (d *HTTPDownloader) ResolveURL(assignmentID, externalFileID string) string {
	r := strings.NewReplacer(
		"{assignment_id}", url.PathEscape(assignmentID),
		"{file_id}", url.PathEscape(externalFileID),
	)
	return r.Replace(d.URLTemplate)
}

// Download fetches the file. Non-200 responses wrap ErrBadResponse.
func (d *HTTPDownloader) Download(ctx context.Context, assignmentID, externalFileID string) (*Download, error) {
	target := d.ResolveURL(assignmentID, externalFileID)
	result, err := fetch.URL(ctx, target, d.Options)
	if err != nil {
		if result != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
		}
		return nil, err
	}
	return &Download{
		Body:        result.Body,
		ContentType: result.ContentType,
		Filename:    result.Filename,
		SourceURL:   target,
	}, nil
}

// DirDownloader serves files from a local directory, where the external file
// id is a path relative to Dir. It backs offline CLI runs.
type DirDownloader struct {
	Dir string
}

// Download reads Dir/externalFileID.
func (d *DirDownloader) Download(ctx context.Context, _ string, externalFileID string) (*Download, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(externalFileID)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("%w: invalid file id %q", ErrBadResponse, externalFileID)
	}

	path := filepath.Join(d.Dir, clean)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrBadResponse, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &Download{
		Body:      data,
		Filename:  filepath.Base(clean),
		SourceURL: "file://" + filepath.ToSlash(path),
	}, nil
}
