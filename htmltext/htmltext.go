// Package htmltext extracts the visible body text and the anchor targets of
// crawled HTML pages.
package htmltext

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the extracted content of an HTML document.
type Page struct {
	Title string   // Text of the first title element
	Text  string   // Body text, whitespace collapsed to single spaces
	Links []string // href values of body anchors in document order, duplicates kept
}

// skipped elements never contribute text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// block elements separate the words on either side of them
var block = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Ul: true,
}

// Extract parses data as HTML and returns its body text and links.
// Malformed markup is repaired the way browsers do; Extract does not fail
// on structurally invalid input.
func Extract(data []byte) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	page := new(Page)
	page.Title = findTitle(root)
	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}
	text := new(strings.Builder)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.A {
				if href, ok := attribute(n, "href"); ok {
					page.Links = append(page.Links, href)
				}
			}
		}
		if block[n.DataAtom] {
			text.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block[n.DataAtom] {
			text.WriteByte(' ')
		}
	}
	walk(body)
	page.Text = strings.Join(strings.Fields(text.String()), " ")
	return page, nil
}

func attribute(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func findElement(n *html.Node, element atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == element {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, element); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(root *html.Node) string {
	title := findElement(root, atom.Title)
	if title == nil {
		return ""
	}
	// get the first text node inside title
	for c := title.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return strings.TrimSpace(c.Data)
		}
	}
	return ""
}
