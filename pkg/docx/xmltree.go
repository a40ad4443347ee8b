package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

type nodeKind int

const (
	documentNode nodeKind = iota
	elementNode
	textNode
	rawNode
)

// node is a prefix-preserving XML tree. Element and attribute names keep the
// prefix exactly as written (Name.Space holds the prefix, not the URI), so a
// part that is parsed and written back keeps its namespace declarations and
// every element this package does not understand.
type node struct {
	kind     nodeKind
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	parent   *node
	data     []byte
}

func parseXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{kind: documentNode}
	cur := root

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{
				kind:  elementNode,
				name:  t.Name,
				attrs: append([]xml.Attr(nil), t.Attr...),
			}
			cur.appendChild(n)
			cur = n
		case xml.EndElement:
			if cur.parent == nil || cur.name != t.Name {
				return nil, fmt.Errorf("unexpected end element %s", qualified(t.Name))
			}
			cur = cur.parent
		case xml.CharData:
			cur.appendChild(&node{kind: textNode, data: bytes.Clone(t)})
		case xml.Comment:
			cur.appendChild(&node{kind: rawNode, data: []byte("<!--" + string(t) + "-->")})
		case xml.ProcInst:
			raw := "<?" + t.Target
			if len(t.Inst) > 0 {
				raw += " " + string(t.Inst)
			}
			cur.appendChild(&node{kind: rawNode, data: []byte(raw + "?>")})
		case xml.Directive:
			cur.appendChild(&node{kind: rawNode, data: []byte("<!" + string(t) + ">")})
		}
	}

	if cur != root {
		return nil, fmt.Errorf("unclosed element %s", qualified(cur.name))
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (n *node) bytes() []byte {
	var buf bytes.Buffer
	n.write(&buf)
	return buf.Bytes()
}

func (n *node) write(buf *bytes.Buffer) {
	switch n.kind {
	case documentNode:
		for _, c := range n.children {
			c.write(buf)
		}
	case textNode:
		escapeCharData(buf, n.data)
	case rawNode:
		buf.Write(n.data)
	case elementNode:
		buf.WriteByte('<')
		buf.WriteString(qualified(n.name))
		for _, a := range n.attrs {
			buf.WriteByte(' ')
			buf.WriteString(qualified(a.Name))
			buf.WriteString(`="`)
			_ = xml.EscapeText(buf, []byte(a.Value))
			buf.WriteByte('"')
		}
		if len(n.children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for _, c := range n.children {
			c.write(buf)
		}
		buf.WriteString("</")
		buf.WriteString(qualified(n.name))
		buf.WriteByte('>')
	}
}

// escapeCharData escapes markup characters only. Unlike xml.EscapeText it
// keeps newlines and tabs literal, which matters for whitespace outside the
// root element where character references are not allowed.
func escapeCharData(buf *bytes.Buffer, data []byte) {
	last := 0
	for i, b := range data {
		var esc string
		switch b {
		case '&':
			esc = "&amp;"
		case '<':
			esc = "&lt;"
		case '>':
			esc = "&gt;"
		case '\r':
			esc = "&#xD;"
		default:
			continue
		}
		buf.Write(data[last:i])
		buf.WriteString(esc)
		last = i + 1
	}
	buf.Write(data[last:])
}

func newElement(prefix, local string, attrs ...xml.Attr) *node {
	return &node{
		kind:  elementNode,
		name:  xml.Name{Space: prefix, Local: local},
		attrs: attrs,
	}
}

func newText(s string) *node {
	return &node{kind: textNode, data: []byte(s)}
}

func attr(prefix, local, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: value}
}

func (n *node) is(prefix, local string) bool {
	return n.kind == elementNode && n.name.Space == prefix && n.name.Local == local
}

func (n *node) appendChild(c *node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *node) insertChild(i int, c *node) {
	c.parent = n
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = c
}

// insertBefore inserts c before the first child matching any of locals,
// or appends it when none match.
func (n *node) insertBefore(c *node, prefix string, locals ...string) {
	for i, child := range n.children {
		for _, l := range locals {
			if child.is(prefix, l) {
				n.insertChild(i, c)
				return
			}
		}
	}
	n.appendChild(c)
}

func (n *node) retainChildren(keep func(*node) bool) {
	kept := n.children[:0]
	for _, c := range n.children {
		if keep(c) {
			kept = append(kept, c)
		} else {
			c.parent = nil
		}
	}
	for i := len(kept); i < len(n.children); i++ {
		n.children[i] = nil
	}
	n.children = kept
}

func (n *node) child(prefix, local string) *node {
	for _, c := range n.children {
		if c.is(prefix, local) {
			return c
		}
	}
	return nil
}

func (n *node) childElements(prefix, local string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.is(prefix, local) {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) firstElement() *node {
	for _, c := range n.children {
		if c.kind == elementNode {
			return c
		}
	}
	return nil
}

func (n *node) attrValue(prefix, local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Space == prefix && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) setAttr(prefix, local, value string) {
	for i, a := range n.attrs {
		if a.Name.Space == prefix && a.Name.Local == local {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, attr(prefix, local, value))
}

func (n *node) textContent() string {
	var buf bytes.Buffer
	for _, c := range n.children {
		if c.kind == textNode {
			buf.Write(c.data)
		}
	}
	return buf.String()
}

func (n *node) clone() *node {
	c := &node{
		kind:  n.kind,
		name:  n.name,
		attrs: append([]xml.Attr(nil), n.attrs...),
		data:  bytes.Clone(n.data),
	}
	for _, child := range n.children {
		c.appendChild(child.clone())
	}
	return c
}

// namespacePrefix returns the prefix bound to uri on el, "" when uri is the
// default namespace, and fallback when el does not declare it.
func namespacePrefix(el *node, uri, fallback string) string {
	if el == nil {
		return fallback
	}
	for _, a := range el.attrs {
		if a.Value != uri {
			continue
		}
		if a.Name.Space == "xmlns" {
			return a.Name.Local
		}
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			return ""
		}
	}
	return fallback
}
