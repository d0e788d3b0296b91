package ingestion

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// undetectable is what content sniffing reports when nothing matched.
const undetectable = "application/octet-stream"

// DetectMaterialMIME identifies a downloaded material from its bytes. It
// returns "" for an empty body or content that cannot be identified; the
// server-declared content type is only used to refine generic text.
func DetectMaterialMIME(data []byte, declared string) string {
	if len(data) == 0 {
		return ""
	}

	detected := baseMediaType(mimetype.Detect(data).String())
	if detected == "" || detected == undetectable {
		return ""
	}

	if detected == "text/plain" {
		if d := baseMediaType(declared); strings.HasPrefix(d, "text/") {
			return d
		}
	}
	return detected
}

// ExtensionForMIME returns the storage extension for a detected MIME type.
func ExtensionForMIME(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return "bin"
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}
