package validation

import (
	"bytes"

	"github.com/jonathan/deliverable-builder/internal/types"
)

var (
	zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}
	pdfMagic = []byte("%PDF")
)

// DetectMIME identifies an artifact by its leading magic bytes. It returns ""
// for anything that is neither a ZIP (DOCX) nor a PDF.
func DetectMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return types.MIMEDocx
	case bytes.HasPrefix(data, pdfMagic):
		return types.MIMEPDF
	default:
		return ""
	}
}
