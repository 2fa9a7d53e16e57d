package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// node is a generic decoded XML element.
type node struct {
	name     xml.Name
	children []*node
	text     strings.Builder
	isNil    bool
}

func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

func (n *node) childText(path ...string) string {
	cur := n
	for _, local := range path {
		if cur = cur.child(local); cur == nil {
			return ""
		}
	}
	return strings.TrimSpace(cur.text.String())
}

// soapFault is a SOAP 1.1 or 1.2 Fault element.
type soapFault struct {
	Code    string
	Message string
}

// decodeResponse parses a SOAP envelope. It returns either the decoded
// operation payload or the SOAP fault carried in the body.
func decodeResponse(data []byte) (any, *soapFault, error) {
	root, err := parseTree(data)
	if err != nil {
		return nil, nil, err
	}
	if root.name.Local != "Envelope" {
		return nil, nil, fmt.Errorf("unexpected root element %s", root.name.Local)
	}

	body := root.child("Body")
	if body == nil {
		return nil, nil, errors.New("envelope has no body")
	}
	if len(body.children) == 0 {
		return Fields{}, nil, nil
	}

	first := body.children[0]
	if first.name.Local == "Fault" {
		return nil, decodeFault(first), nil
	}

	// Document/literal wrapped responses carry a single <opResult> child
	// inside <opResponse>.
	if len(first.children) == 1 {
		return value(first.children[0]), nil, nil
	}
	return value(first), nil, nil
}

func decodeFault(n *node) *soapFault {
	// SOAP 1.2 nests code and reason.
	if code := n.childText("Code", "Value"); code != "" {
		return &soapFault{Code: code, Message: n.childText("Reason", "Text")}
	}
	return &soapFault{Code: n.childText("faultcode"), Message: n.childText("faultstring")}
}

// value converts an element into a string, nil, or Fields tree. Repeated
// child elements collapse into []any.
func value(n *node) any {
	if n.isNil {
		return nil
	}
	if len(n.children) == 0 {
		return n.text.String()
	}

	fields := make(Fields, len(n.children))
	repeated := make(map[string]bool)
	for _, c := range n.children {
		key := c.name.Local
		v := value(c)
		existing, seen := fields[key]
		switch {
		case !seen:
			fields[key] = v
		case repeated[key]:
			fields[key] = append(existing.([]any), v)
		default:
			fields[key] = []any{existing, v}
			repeated[key] = true
		}
	}
	return fields
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && root != nil && len(stack) == 0 {
				return root, nil
			}
			if errors.Is(err, io.EOF) {
				return nil, errors.New("incomplete XML document")
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name}
			for _, a := range t.Attr {
				if a.Name.Space == xsiNS && a.Name.Local == "nil" && a.Value == "true" {
					n.isNil = true
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
}
