// Package ui reads usage values the way the Cloud Meter front end renders
// them and waits for them to appear.
package ui

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NotAvailable is shown in place of a null value.
const NotAvailable = "N/A"

// TagToken is a value rendered next to a product tag in separate DOM nodes,
// which read back with no space: "12RHEL", "N/ARHEL".
func TagToken(v *int, tag string) string {
	if v == nil {
		return NotAvailable + tag
	}
	return fmt.Sprintf("%d%s", *v, tag)
}

// LabelToken is a count rendered in one text node with its label:
// "3 Instances", "N/A Images".
func LabelToken(v *int, label string) string {
	if v == nil {
		return NotAvailable + " " + label
	}
	return fmt.Sprintf("%d %s", *v, label)
}

// SpacedTagToken is a value and tag rendered with a space, as on the
// summary cards: "120 RHEL".
func SpacedTagToken(v *int, tag string) string {
	if v == nil {
		return NotAvailable + " " + tag
	}
	return fmt.Sprintf("%d %s", *v, tag)
}

// Element is the text of one rendered element.
type Element struct {
	Compact string
	Visible string
}

// HasText reports whether token appears in either reading of the element.
func (e Element) HasText(token string) bool {
	return strings.Contains(e.Compact, token) || strings.Contains(e.Visible, token)
}

// CompactText concatenates every text node of markup with no separator.
func CompactText(markup string) string {
	root, err := parse(markup)
	if err != nil {
		return ""
	}
	return strings.Join(textNodes(root), "")
}

// VisibleText joins every text node of markup with single spaces.
func VisibleText(markup string) string {
	root, err := parse(markup)
	if err != nil {
		return ""
	}
	return strings.Join(textNodes(root), " ")
}

// HasText reports whether token appears in markup read either way.
func HasText(markup, token string) bool {
	root, err := parse(markup)
	if err != nil {
		return false
	}
	return elementOf(root).HasText(token)
}

// ElementsByClass returns the text of every element carrying class, in
// document order.
func ElementsByClass(markup, class string) []Element {
	root, err := parse(markup)
	if err != nil {
		return nil
	}
	var out []Element
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, elementOf(n))
			return false
		}
		return true
	})
	return out
}

// Scope selects the first element carrying Class whose text contains Text,
// e.g. the graph card headed "Red Hat Enterprise Linux". An empty Text
// selects the first element of the class.
type Scope struct {
	Class string
	Text  string
}

func (s Scope) String() string {
	if s.Text == "" {
		return "." + s.Class
	}
	return fmt.Sprintf(".%s with %q", s.Class, s.Text)
}

// In returns the text of the element s selects in markup.
func (s Scope) In(markup string) (Element, bool) {
	root, err := parse(markup)
	if err != nil {
		return Element{}, false
	}
	n := s.node(root)
	if n == nil {
		return Element{}, false
	}
	return elementOf(n), true
}

func (s Scope) node(root *html.Node) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && hasClass(n, s.Class) && elementOf(n).HasText(s.Text) {
			found = n
			return false
		}
		return true
	})
	return found
}

func parse(markup string) (*html.Node, error) {
	return html.Parse(strings.NewReader(markup))
}

func elementOf(n *html.Node) Element {
	texts := textNodes(n)
	return Element{
		Compact: strings.Join(texts, ""),
		Visible: strings.Join(texts, " "),
	}
}

// textNodes collects trimmed, non-empty text below n, skipping scripts and
// styles.
func textNodes(n *html.Node) []string {
	var texts []string
	walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style || c.DataAtom == atom.Head {
				return false
			}
		case html.TextNode:
			if s := strings.Join(strings.Fields(c.Data), " "); s != "" {
				texts = append(texts, s)
			}
		}
		return true
	})
	return texts
}

// walk visits n and its descendants depth first. Returning false from visit
// skips the children of that node.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
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

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
