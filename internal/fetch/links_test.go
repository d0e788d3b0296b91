package fetch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/syllabus">Syllabus</a>
		<a href="/syllabus/#week5">Week 5</a>
		<a href="readings/ch3.pdf">Chapter 3</a>
		<a href="https://doi.org/10.1000/xyz">Paper</a>
		<a href="mailto:ta@example.edu">Email</a>
		<a href="javascript:void(0)">Toggle</a>
		<a href="">Empty</a>
	</body></html>`

	links, err := ExtractLinks(html, "https://lms.example.edu/courses/7/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://lms.example.edu/syllabus",
		"https://lms.example.edu/courses/7/readings/ch3.pdf",
		"https://doi.org/10.1000/xyz",
	}, links)
}

func TestExtractLinks_Cap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < MaxLinks+5; i++ {
		fmt.Fprintf(&sb, `<a href="/page/%d">p</a>`, i)
	}

	links, err := ExtractLinks(sb.String(), "https://lms.example.edu")
	require.NoError(t, err)
	assert.Len(t, links, MaxLinks)
}

func TestExtractLinks_BadBase(t *testing.T) {
	_, err := ExtractLinks("<a href='/x'>x</a>", "not a url")
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
}
