package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// /Type /Page but not /Type /Pages.
var pdfPagePattern = regexp.MustCompile(`/Type\s*/Page\b`)

// PDFMetrics are the properties read back from raw PDF bytes.
type PDFMetrics struct {
	PageCount  int
	Text       string
	TextLength int
}

// InspectPDF scans data as Latin-1 text, counting page objects and
// extracting the parenthesized string operands as approximate visible text.
func InspectPDF(data []byte) *PDFMetrics {
	text := ExtractPDFText(data)
	return &PDFMetrics{
		PageCount:  len(pdfPagePattern.FindAllIndex(data, -1)),
		Text:       text,
		TextLength: utf8.RuneCountInString(text),
	}
}

// ExtractPDFText returns the trimmed, newline-joined string operands found at
// parenthesis depth zero. Nested parentheses are kept literally and a
// backslash takes the next byte as-is.
func ExtractPDFText(data []byte) string {
	var (
		runs    []string
		current strings.Builder
		depth   int
		escaped bool
	)

	for _, b := range data {
		// Latin-1: each byte is the code point of the same value
		r := rune(b)

		if depth == 0 {
			if r == '(' {
				depth = 1
				current.Reset()
			}
			continue
		}

		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			escaped = true
		case '(':
			depth++
			current.WriteRune(r)
		case ')':
			depth--
			if depth == 0 {
				if run := strings.TrimSpace(current.String()); run != "" {
					runs = append(runs, run)
				}
				continue
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}

	return strings.Join(runs, "\n")
}
