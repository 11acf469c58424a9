package provider

import (
	"bytes"
	"strings"

	"bicho/models"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseHouses reads the options of the first <select onchange> in page.
// Options without a value attribute are placeholders and are skipped.
func ParseHouses(page []byte) ([]models.House, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	houses := []models.House{}
	selector := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Select && hasAttr(n, "onchange")
	})
	if selector == nil {
		return houses, nil
	}

	walk(selector, func(n *html.Node) {
		if n.DataAtom != atom.Option {
			return
		}
		value, ok := attr(n, "value")
		if !ok {
			return
		}
		houses = append(houses, models.House{
			Name:  strings.TrimSpace(textContent(n)),
			Value: value,
		})
	})

	return houses, nil
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
