package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxLinks caps the links ExtractLinks returns.
const MaxLinks = 20

// ExtractLinks returns the distinct absolute http(s) links of an HTML page in
// document order, resolved against baseURL. Fragments and trailing slashes are
// dropped. At most MaxLinks are returned.
func ExtractLinks(htmlContent string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &Error{URL: baseURL, Message: "failed to parse base URL", Cause: err}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &Error{URL: baseURL, Message: "base URL must have scheme and host"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &Error{URL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	seen := make(map[string]bool)
	links := make([]string, 0)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		linkURL, err := url.Parse(strings.TrimSpace(href))
		if href == "" || err != nil {
			return true
		}

		absolute := base.ResolveReference(linkURL)
		if absolute.Scheme != "http" && absolute.Scheme != "https" {
			return true
		}
		absolute.Fragment = ""
		link := strings.TrimSuffix(absolute.String(), "/")

		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
		return len(links) < MaxLinks
	})

	return links, nil
}
