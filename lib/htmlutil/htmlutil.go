package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// text inside scripts and styles is never what a scraper is after
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// Normalize drops non-printable characters, trims the ends and collapses inner whitespace.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	s = strings.Trim(s, " ")
	return innerWhitespace.ReplaceAllString(s, " ")
}

// Text returns the normalized text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		text := Normalize(GetText(n))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// FormValues collects the named inputs of a form with their current values, submit buttons
// and unchecked checkboxes/radios are skipped the way a browser skips them.
func FormValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		switch goquery.NodeName(s) {
		case "select":
			selected := s.Find("option[selected]").First()
			if selected.Length() == 0 {
				selected = s.Find("option").First()
			}
			values.Add(name, selected.AttrOr("value", selected.Text()))
			return
		case "textarea":
			values.Add(name, s.Text())
			return
		}

		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); !checked {
				return
			}
			values.Add(name, s.AttrOr("value", "on"))
		default:
			values.Add(name, s.AttrOr("value", ""))
		}
	})
	return values
}

// Resolve resolves `href` against `base`, an empty href resolves to base itself.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}
