package rendering

import "strings"

// EscapeXML escapes the five XML special characters in text.
// Special characters: & < > " '
func EscapeXML(text string) string {
	if text == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(text) + len(text)/4)

	for _, r := range text {
		switch r {
		case '&':
			result.WriteString("&amp;")
		case '<':
			result.WriteString("&lt;")
		case '>':
			result.WriteString("&gt;")
		case '"':
			result.WriteString("&quot;")
		case '\'':
			result.WriteString("&apos;")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// EscapePDFString prepares text for use inside a PDF literal string operand.
// Backslash and parentheses are escaped, control characters become spaces and
// runes outside Latin-1 are replaced with '?'. The result is Latin-1 encoded.
func EscapePDFString(text string) string {
	if text == "" {
		return ""
	}

	buf := make([]byte, 0, len(text)+8)
	for _, r := range text {
		switch {
		case r == '\\' || r == '(' || r == ')':
			buf = append(buf, '\\', byte(r))
		case r < 0x20 || r == 0x7f:
			buf = append(buf, ' ')
		case r > 0xff:
			buf = append(buf, '?')
		default:
			buf = append(buf, byte(r))
		}
	}
	return string(buf)
}

// latin1Text maps text to the characters a standard Type 1 font can show, so
// plain-text accounting matches what lands in the content stream.
func latin1Text(text string) string {
	var result strings.Builder
	result.Grow(len(text))
	for _, r := range text {
		switch {
		case r < 0x20 || r == 0x7f:
			result.WriteByte(' ')
		case r > 0xff:
			result.WriteByte('?')
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
