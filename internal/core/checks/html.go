package checks

import (
	"strings"

	"golang.org/x/net/html"
)

// findAll returns every element node with the given tag, in document order.
func findAll(root *html.Node, tag string) []*html.Node {
	if root == nil {
		return nil
	}

	var nodes []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			nodes = append(nodes, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return nodes
}

// findFirst returns the first element node with the given tag, or nil.
func findFirst(root *html.Node, tag string) *html.Node {
	nodes := findAll(root, tag)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// attr returns the value of the named attribute, case-insensitively.
func attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// textContent collects the trimmed text under a node.
func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// metaContent returns the content of <meta name=...> or <meta property=...>.
func metaContent(root *html.Node, name string) string {
	for _, meta := range findAll(root, "meta") {
		if strings.EqualFold(attr(meta, "name"), name) || strings.EqualFold(attr(meta, "property"), name) {
			return strings.TrimSpace(attr(meta, "content"))
		}
	}
	return ""
}

// wordCount counts whitespace-separated words in the visible body text.
func wordCount(root *html.Node) int {
	body := findFirst(root, "body")
	if body == nil {
		body = root
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(body)
	return len(strings.Fields(sb.String()))
}
