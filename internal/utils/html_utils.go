package utils

import (
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HardenLinks 为评论 HTML 中的链接补充安全属性，并去掉非 http(s) 协议的链接
func HardenLinks(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(strings.TrimSpace(href))
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			// keep the text, drop the link
			s.ReplaceWithHtml(template.HTMLEscapeString(s.Text()))
			return
		}
		s.SetAttr("rel", "nofollow noopener noreferrer ugc")
		s.SetAttr("target", "_blank")
	})

	// goquery renders full document tags if missing, we just want the body content
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}

	return template.HTML(html)
}
