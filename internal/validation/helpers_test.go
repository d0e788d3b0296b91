package validation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDocx packages document as word/document.xml. A padding part keeps the
// archive above the byte floor so the content gates are reached.
func buildDocx(t *testing.T, document string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"_rels/.rels", `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`},
		{"customXml/padding.xml", "<pad>" + strings.Repeat("0", MinDocxBytes) + "</pad>"},
		{"word/document.xml", document},
	}
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func wordDocument(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(paragraphs, "") +
		`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`
}

func para(style, text string) string {
	if style == "" {
		return fmt.Sprintf(`<w:p><w:r><w:t>%s</w:t></w:r></w:p>`, text)
	}
	return fmt.Sprintf(`<w:p><w:pPr><w:pStyle w:val="%s"/></w:pPr><w:r><w:t>%s</w:t></w:r></w:p>`, style, text)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// wellFormedDocx passes every DOCX gate.
func wellFormedDocx(t *testing.T) []byte {
	paras := []string{para("Title", "Report"), para("Heading1", "One"), para("Heading2", "Two")}
	for i := 0; i < 6; i++ {
		paras = append(paras, para("", words(60)))
	}
	return buildDocx(t, wordDocument(paras...))
}

// buildPDF wraps content lines in a single-page PDF shell padded to the byte floor.
func buildPDF(pages int, lines ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	b.WriteString(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Count %d >>\nendobj\n", pages))
	for i := 0; i < pages; i++ {
		b.WriteString(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n", 3+i))
	}
	b.WriteString("stream\n")
	for _, line := range lines {
		b.WriteString("BT (" + line + ") Tj ET\n")
	}
	b.WriteString("endstream\n")
	for b.Len() < MinPDFBytes {
		b.WriteString("% pad\n")
	}
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

func fieldsOf(s string) []string {
	return strings.Fields(s)
}
