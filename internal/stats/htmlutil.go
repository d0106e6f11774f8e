package stats

import (
	"strings"

	"golang.org/x/net/html"
)

func findNode(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func collectNodes(n *html.Node, pred func(*html.Node) bool, out *[]*html.Node) {
	if pred(n) {
		*out = append(*out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectNodes(c, pred, out)
	}
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// rankDisplay returns the player's rank-decorated name: the text of the
// last span inside the page-header card under #wrapper.
func rankDisplay(doc *html.Node) string {
	wrapper := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attrVal(n, "id") == "wrapper"
	})
	if wrapper == nil {
		return ""
	}
	var spans []*html.Node
	collectNodes(wrapper, func(n *html.Node) bool {
		return isElement(n, "span") && attrVal(n, "class") != ""
	}, &spans)
	if len(spans) == 0 {
		collectNodes(wrapper, func(n *html.Node) bool { return isElement(n, "span") }, &spans)
	}
	if len(spans) == 0 {
		return ""
	}
	return nodeText(spans[len(spans)-1])
}

// guildName returns the text of the first anchor sibling of the "Guild" h4.
func guildName(doc *html.Node) string {
	h4 := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "h4") && nodeText(n) == "Guild"
	})
	if h4 == nil || h4.Parent == nil {
		return ""
	}
	for c := h4.Parent.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "a") {
			return nodeText(c)
		}
	}
	return ""
}

// bedwarsLevel extracts the level digits from the <li> whose <b> label
// contains "Level:".
func bedwarsLevel(doc *html.Node) string {
	b := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "b") && strings.Contains(nodeText(n), "Level:")
	})
	if b == nil {
		return "N/A"
	}
	var raw string
	if b.NextSibling != nil && b.NextSibling.Type == html.TextNode {
		raw = b.NextSibling.Data
	} else if b.Parent != nil {
		raw = strings.TrimPrefix(nodeText(b.Parent), nodeText(b))
	}
	level := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if level == "" {
		return "N/A"
	}
	return level
}

// modeRow returns the cell texts of the stats-table row whose row header
// matches the given mode label.
func modeRow(doc *html.Node, header string) []string {
	th := findNode(doc, func(n *html.Node) bool {
		return isElement(n, "th") && attrVal(n, "scope") == "row" && nodeText(n) == header
	})
	if th == nil {
		return nil
	}
	tr := th.Parent
	for tr != nil && !isElement(tr, "tr") {
		tr = tr.Parent
	}
	if tr == nil {
		return nil
	}
	var tds []*html.Node
	collectNodes(tr, func(n *html.Node) bool { return isElement(n, "td") }, &tds)
	cells := make([]string, 0, len(tds))
	for _, td := range tds {
		cells = append(cells, nodeText(td))
	}
	return cells
}
