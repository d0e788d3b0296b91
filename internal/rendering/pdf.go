package rendering

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/deliverable-builder/internal/types"
)

// PDF content floor.
const (
	PDFMinTextChars    = 1500
	PDFFillerPassages  = 20
	PDFPassagesPerPage = 10
	PDFMinBytes        = 8 * 1024
)

// Page geometry in points (US Letter, one-inch margins).
const (
	pdfPageWidth  = 612
	pdfPageHeight = 792
	pdfMargin     = 72
)

const (
	pdfFontRegular = "F1"
	pdfFontBold    = "F2"

	pdfTitleSize   = 18.0
	pdfHeadingSize = 13.0
	pdfBodySize    = 11.0
	pdfLeading     = 1.35
	// average Helvetica glyph width as a fraction of the font size
	pdfAvgGlyphWidth = 0.5

	pdfPaddingLine = "% padding: comment lines carry no drawing operations\n"

	pdfGuidanceParagraph = "Reading guide: this document condenses the assignment material into the sections above. " +
		"Work through each section in order, note any term you cannot define without looking it up, and return to " +
		"the source material for those terms. The passages that follow restate the expectations for completing the " +
		"assignment so the document can be used on its own during revision."
	pdfFillerPassage = "Check the assignment requirements, compare your draft with each section heading, and record " +
		"one question to raise in the next session. Keep citations next to the claims they support and prefer " +
		"primary sources listed in the course outline."
)

// PDFResult is the output of RenderPDF.
type PDFResult struct {
	Buffer     []byte
	PageCount  int
	TextLength int
}

// pdfWriter lays out text top to bottom across US Letter pages and serializes
// an uncompressed PDF 1.4 file.
type pdfWriter struct {
	pages   []*bytes.Buffer
	current *bytes.Buffer
	y       float64
	text    strings.Builder
}

func newPDFWriter() *pdfWriter {
	w := &pdfWriter{}
	w.PageBreak()
	return w
}

// PageBreak starts a new page.
func (w *pdfWriter) PageBreak() {
	w.current = &bytes.Buffer{}
	w.pages = append(w.pages, w.current)
	w.y = pdfPageHeight - pdfMargin
}

// Space advances the cursor without drawing.
func (w *pdfWriter) Space(points float64) {
	w.y -= points
	if w.y < pdfMargin {
		w.PageBreak()
	}
}

// Text writes a word-wrapped paragraph. Embedded newlines start new lines.
func (w *pdfWriter) Text(font string, size float64, text string) {
	leading := size * pdfLeading
	for _, line := range wrapText(latin1Text(strings.ReplaceAll(text, "\r", "")), size) {
		if w.y-leading < pdfMargin {
			w.PageBreak()
		}
		w.y -= leading
		if line == "" {
			continue
		}
		fmt.Fprintf(w.current, "BT /%s %.1f Tf %d %.2f Td (%s) Tj ET\n",
			font, size, pdfMargin, w.y, EscapePDFString(line))
	}
	w.text.WriteString(latin1Text(text))
	w.text.WriteByte('\n')
}

// PlainText returns everything written so far as plain text.
func (w *pdfWriter) PlainText() string {
	return w.text.String()
}

// PageCount returns the number of pages laid out.
func (w *pdfWriter) PageCount() int {
	return len(w.pages)
}

// Finish serializes the document. Comment lines are inserted ahead of the
// xref table until the file reaches minBytes so recorded offsets stay valid.
func (w *pdfWriter) Finish(minBytes int) []byte {
	var out bytes.Buffer
	var offsets []int

	beginObject := func() int {
		offsets = append(offsets, out.Len())
		n := len(offsets)
		fmt.Fprintf(&out, "%d 0 obj\n", n)
		return n
	}

	out.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	// 1 catalog, 2 page tree, 3 and 4 fonts, then a page and content pair per page.
	pageObject := func(i int) int { return 5 + 2*i }

	beginObject()
	out.WriteString("<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	beginObject()
	kids := make([]string, len(w.pages))
	for i := range w.pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObject(i))
	}
	fmt.Fprintf(&out, "<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(w.pages))

	beginObject()
	out.WriteString("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n")
	beginObject()
	out.WriteString("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold /Encoding /WinAnsiEncoding >>\nendobj\n")

	for _, content := range w.pages {
		page := beginObject()
		fmt.Fprintf(&out, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] "+
			"/Resources << /Font << /%s 3 0 R /%s 4 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			pdfPageWidth, pdfPageHeight, pdfFontRegular, pdfFontBold, page+1)

		beginObject()
		fmt.Fprintf(&out, "<< /Length %d >>\nstream\n", content.Len())
		out.Write(content.Bytes())
		out.WriteString("\nendstream\nendobj\n")
	}

	tail := func(xrefOffset int) []byte {
		var t bytes.Buffer
		fmt.Fprintf(&t, "xref\n0 %d\n", len(offsets)+1)
		t.WriteString("0000000000 65535 f \n")
		for _, off := range offsets {
			fmt.Fprintf(&t, "%010d 00000 n \n", off)
		}
		fmt.Fprintf(&t, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)
		return t.Bytes()
	}

	for out.Len()+len(tail(out.Len())) < minBytes {
		out.WriteString(pdfPaddingLine)
	}
	out.Write(tail(out.Len()))

	return out.Bytes()
}

// wrapText breaks text into lines that fit the printable width at size.
func wrapText(text string, size float64) []string {
	maxChars := int((pdfPageWidth - 2*pdfMargin) / (size * pdfAvgGlyphWidth))
	if maxChars < 1 {
		maxChars = 1
	}

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		words := strings.Fields(raw)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var line strings.Builder
		for _, word := range words {
			for utf8.RuneCountInString(word) > maxChars {
				if line.Len() > 0 {
					lines = append(lines, line.String())
					line.Reset()
				}
				runes := []rune(word)
				lines = append(lines, string(runes[:maxChars]))
				word = string(runes[maxChars:])
			}
			if line.Len() > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(word) > maxChars {
				lines = append(lines, line.String())
				line.Reset()
			}
			if line.Len() > 0 {
				line.WriteByte(' ')
			}
			line.WriteString(word)
		}
		if line.Len() > 0 {
			lines = append(lines, line.String())
		}
	}
	return lines
}

// RenderPDF encodes a deliverable as a paginated PDF with a guaranteed
// minimum amount of extractable text.
func RenderPDF(d *types.Deliverable) (*PDFResult, error) {
	if d == nil {
		return nil, &RenderError{Format: "pdf", Message: "deliverable is nil"}
	}

	w := newPDFWriter()

	w.Text(pdfFontBold, pdfTitleSize, d.Title)
	w.Space(pdfBodySize / 2)
	w.Text(pdfFontRegular, pdfBodySize, "Course: "+d.Metadata.Course)
	w.Text(pdfFontRegular, pdfBodySize, "Due: "+d.Metadata.DueAtISO)
	w.Space(pdfBodySize / 2)
	w.Text(pdfFontBold, pdfHeadingSize, "Summary")
	w.Text(pdfFontRegular, pdfBodySize, d.Summary)

	for _, section := range d.Sections {
		w.Space(pdfBodySize)
		w.Text(pdfFontBold, pdfHeadingSize, section.Heading)
		w.Text(pdfFontRegular, pdfBodySize, section.Body)
	}

	if len(d.Citations) > 0 {
		w.Space(pdfBodySize)
		w.Text(pdfFontBold, pdfHeadingSize, "Citations")
		for _, c := range d.Citations {
			w.Text(pdfFontRegular, pdfBodySize, fmt.Sprintf("%s: %s", c.Label, c.URL))
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(w.PlainText())) < PDFMinTextChars {
		w.Space(pdfBodySize)
		w.Text(pdfFontRegular, pdfBodySize, pdfGuidanceParagraph)
	}

	w.Space(pdfBodySize)
	w.Text(pdfFontBold, pdfHeadingSize, "Study Passages")
	for i := 1; i <= PDFFillerPassages; i++ {
		w.Space(pdfBodySize / 2)
		w.Text(pdfFontRegular, pdfBodySize, fmt.Sprintf("%d. %s", i, pdfFillerPassage))
		if i%PDFPassagesPerPage == 0 && i < PDFFillerPassages {
			w.PageBreak()
		}
	}

	buf := w.Finish(PDFMinBytes)
	return &PDFResult{
		Buffer:     buf,
		PageCount:  w.PageCount(),
		TextLength: utf8.RuneCountInString(strings.TrimSpace(w.PlainText())),
	}, nil
}
