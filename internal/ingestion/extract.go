package ingestion

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/deliverable-builder/internal/fetch"
	"github.com/jonathan/deliverable-builder/internal/types"
	"github.com/jonathan/deliverable-builder/internal/validation"
)

// PageRenderer renders a JavaScript-heavy HTML page to its final markup.
type PageRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// TextExtractor turns material bytes into prompt text.
type TextExtractor struct {
	// Renderer, when set, re-renders HTML pages whose static text is too short.
	Renderer PageRenderer
}

// Extract returns the cleaned text of a material. Formats without a text
// layer yield "" and no error.
func (x *TextExtractor) Extract(ctx context.Context, data []byte, mimeType, sourceURL string) (string, error) {
	var (
		text string
		err  error
	)

	switch {
	case mimeType == types.MIMEPDF:
		// Only uncompressed text-show operands are recovered.
		text = validation.ExtractPDFText(data)
	case mimeType == types.MIMEDocx:
		text, err = validation.DocxText(data)
	case mimeType == "text/html" || mimeType == "application/xhtml+xml":
		text, err = x.htmlText(ctx, string(data), sourceURL)
	case strings.HasPrefix(mimeType, "text/"), mimeType == types.MIMEJSON:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("material is not valid UTF-8 text")
		}
		text = string(data)
	default:
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return CleanText(text), nil
}

// htmlText extracts the main text of a page, re-rendering it in a browser
// when the static text is thin, and appends the page's links so the
// generator can cite them.
func (x *TextExtractor) htmlText(ctx context.Context, html, sourceURL string) (string, error) {
	text, err := x.pageText(ctx, html, sourceURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(sourceURL, "http") {
		return text, nil
	}
	links, err := fetch.ExtractLinks(html, sourceURL)
	if err != nil || len(links) == 0 {
		return text, nil
	}
	return text + "\n\nLinks:\n- " + strings.Join(links, "\n- "), nil
}

func (x *TextExtractor) pageText(ctx context.Context, html, sourceURL string) (string, error) {
	text, err := fetch.ExtractMainText(html, fetch.CoursePageSelectors())
	if err != nil {
		return "", err
	}
	if x.Renderer == nil || sourceURL == "" || !strings.HasPrefix(sourceURL, "http") || !fetch.ShouldUseBrowser(text) {
		return text, nil
	}

	rendered, err := x.Renderer.Render(ctx, sourceURL)
	if err != nil {
		// keep the static text when the browser is unavailable
		return text, nil
	}
	renderedText, err := fetch.ExtractMainText(rendered, fetch.CoursePageSelectors())
	if err != nil || len(renderedText) <= len(text) {
		return text, nil
	}
	return renderedText, nil
}
