package validation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentPart = "word/document.xml"
	maxDocumentBytes = 32 << 20
)

var (
	// <w:p> and <w:p ...> only; <w:pPr>, <w:pStyle> and friends do not count.
	docxParagraphPattern = regexp.MustCompile(`<w:p[\s>/]`)
	docxHeadingPattern   = regexp.MustCompile(`<w:pStyle\s+w:val="Heading[1-6]"`)
	docxTitlePattern     = regexp.MustCompile(`<w:pStyle\s+w:val="Title"`)
	xmlTagPattern        = regexp.MustCompile(`<[^>]*>`)
	xmlEntityPattern     = regexp.MustCompile(`&(#[0-9]+|#x[0-9a-fA-F]+|[a-zA-Z]+);`)
)

// DocxMetrics are the structural properties read back from word/document.xml.
type DocxMetrics struct {
	Paragraphs int
	Headings   int
	HasTitle   bool
	Words      int
}

// InspectDocx opens data as a ZIP archive and measures word/document.xml.
func InspectDocx(data []byte) (*DocxMetrics, error) {
	document, err := readDocumentPart(data)
	if err != nil {
		return nil, err
	}
	return measureDocument(document), nil
}

// DocxText returns the visible text of a DOCX, one line per paragraph.
func DocxText(data []byte) (string, error) {
	document, err := readDocumentPart(data)
	if err != nil {
		return "", err
	}
	document = strings.ReplaceAll(document, "</w:p>", "\n")
	document = strings.ReplaceAll(document, "<w:br/>", "\n")
	text := html.UnescapeString(xmlTagPattern.ReplaceAllString(document, ""))

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func readDocumentPart(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Message: "not a readable ZIP archive", Cause: err}
	}

	var part *zip.File
	for _, f := range r.File {
		if f.Name == docxDocumentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", &ParseError{Message: fmt.Sprintf("%s not found", docxDocumentPart)}
	}

	rc, err := part.Open()
	if err != nil {
		return "", &ParseError{Message: fmt.Sprintf("failed to open %s", docxDocumentPart), Cause: err}
	}
	defer func() { _ = rc.Close() }()

	content, err := io.ReadAll(io.LimitReader(rc, maxDocumentBytes))
	if err != nil {
		return "", &ParseError{Message: fmt.Sprintf("failed to read %s", docxDocumentPart), Cause: err}
	}
	return string(content), nil
}

func measureDocument(document string) *DocxMetrics {
	return &DocxMetrics{
		Paragraphs: len(docxParagraphPattern.FindAllStringIndex(document, -1)),
		Headings:   len(docxHeadingPattern.FindAllStringIndex(document, -1)),
		HasTitle:   docxTitlePattern.MatchString(document),
		Words:      len(strings.Fields(DocumentText(document))),
	}
}

// DocumentText strips markup and entities from WordprocessingML, leaving the
// whitespace-separated visible text.
func DocumentText(document string) string {
	text := xmlTagPattern.ReplaceAllString(document, " ")
	return xmlEntityPattern.ReplaceAllString(text, " ")
}
