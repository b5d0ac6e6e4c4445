package documents

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const maxPreviewText = 4096

var sanitizer = bluemonday.UGCPolicy()

type htmlPage struct {
	HTML  string
	Title string
	Text  string
	Links []string
}

// renderHTML sanitizes a page for display and pulls out its title, plain
// text and links
func renderHTML(src string) (htmlPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return htmlPage{}, err
	}

	page := htmlPage{
		HTML:  sanitizer.Sanitize(src),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: []string{},
	}

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > maxPreviewText {
		text = strings.ToValidUTF8(text[:maxPreviewText], "")
	}
	page.Text = text

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			page.Links = append(page.Links, href)
		}
	})
	return page, nil
}
