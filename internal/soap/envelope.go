package soap

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// tokenParam is the name of the token input parameter and header element.
const tokenParam = "pToken"

// maxValueDepth bounds nesting of encoded argument values.
const maxValueDepth = 32

type envelope struct {
	body []byte
	// tokenInBody reports whether the token was passed as an input parameter.
	tokenInBody bool
}

// buildEnvelope encodes a document/literal wrapped request for op. The token
// is passed as the pToken parameter when op declares one the caller did not
// supply, and as a header element in the binding namespace otherwise.
func buildEnvelope(c *Contract, op *Operation, req Request, token string) (*envelope, error) {
	values, tokenInBody, err := bindArgs(op, req, token)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	w := &envelopeWriter{enc: xml.NewEncoder(&buf), contract: c}

	envStart := xml.StartElement{
		Name: xml.Name{Local: "soap:Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:soap"}, Value: c.Version.envelopeNS()},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNS},
		},
	}
	if err := w.enc.EncodeToken(envStart); err != nil {
		return nil, err
	}

	if !tokenInBody {
		header := xml.StartElement{Name: xml.Name{Local: "soap:Header"}}
		if err := w.enc.EncodeToken(header); err != nil {
			return nil, err
		}
		tokenName := xml.Name{Space: c.BindingNamespace, Local: tokenParam}
		if err := w.element(tokenName, xml.Name{}, token, "", 0); err != nil {
			return nil, err
		}
		if err := w.enc.EncodeToken(header.End()); err != nil {
			return nil, err
		}
	}

	body := xml.StartElement{Name: xml.Name{Local: "soap:Body"}}
	if err := w.enc.EncodeToken(body); err != nil {
		return nil, err
	}

	wrapper := xml.StartElement{Name: op.Input}
	if err := w.enc.EncodeToken(wrapper); err != nil {
		return nil, err
	}
	for _, p := range op.Params {
		v, ok := values[p.Name.Local]
		if !ok {
			continue
		}
		if err := w.element(p.Name, p.Type, v, op.Input.Space, 0); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", p.Name.Local, err)
		}
	}
	if err := w.enc.EncodeToken(wrapper.End()); err != nil {
		return nil, err
	}

	if err := w.enc.EncodeToken(body.End()); err != nil {
		return nil, err
	}
	if err := w.enc.EncodeToken(envStart.End()); err != nil {
		return nil, err
	}
	if err := w.enc.Flush(); err != nil {
		return nil, err
	}

	return &envelope{body: buf.Bytes(), tokenInBody: tokenInBody}, nil
}

// bindArgs maps positional arguments to declared parameters in order and
// named arguments by name.
func bindArgs(op *Operation, req Request, token string) (map[string]any, bool, error) {
	_, callerToken := req.Named[tokenParam]
	tokenInBody := op.HasParam(tokenParam) && !callerToken

	positional := op.Params
	if tokenInBody {
		positional = slices.DeleteFunc(slices.Clone(op.Params), func(p Param) bool {
			return p.Name.Local == tokenParam
		})
	}
	if len(req.Args) > len(positional) {
		return nil, false, fmt.Errorf("%s takes %d arguments, got %d", op.Name, len(positional), len(req.Args))
	}

	values := make(map[string]any, len(op.Params))
	for i, arg := range req.Args {
		values[positional[i].Name.Local] = arg
	}
	for name, arg := range req.Named {
		if !op.HasParam(name) {
			return nil, false, fmt.Errorf("%s has no parameter %q", op.Name, name)
		}
		if _, dup := values[name]; dup {
			return nil, false, fmt.Errorf("%s: parameter %q given twice", op.Name, name)
		}
		values[name] = arg
	}
	if tokenInBody {
		values[tokenParam] = token
	}
	return values, tokenInBody, nil
}

type envelopeWriter struct {
	enc      *xml.Encoder
	contract *Contract
}

// element writes value as an element called name. Elements without a
// namespace reset the default namespace inherited from parentNS.
func (w *envelopeWriter) element(name, typ xml.Name, value any, parentNS string, depth int) error {
	if depth > maxValueDepth {
		return fmt.Errorf("value nested deeper than %d levels", maxValueDepth)
	}

	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if err := w.element(name, typ, item, parentNS, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for _, item := range v {
			if err := w.element(name, typ, item, parentNS, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	start := xml.StartElement{Name: name}
	if name.Space == "" && parentNS != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns"}, Value: ""})
	}

	var text string
	switch v := value.(type) {
	case nil:
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"})
		if err := w.enc.EncodeToken(start); err != nil {
			return err
		}
		return w.enc.EncodeToken(start.End())
	case map[string]any:
		return w.complex(start, typ, v, depth)
	case Fields:
		return w.complex(start, typ, v, depth)
	case string:
		text = v
	case bool:
		text = strconv.FormatBool(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		text = fmt.Sprint(v)
	case float32:
		text = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		text = v.Format(time.RFC3339)
	case []byte:
		text = base64.StdEncoding.EncodeToString(v)
	case fmt.Stringer:
		text = v.String()
	default:
		return w.enc.EncodeElement(v, start)
	}

	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return w.enc.EncodeToken(start.End())
}

// complex writes a structured value. Fields follow the declared sequence of
// typ; values for unknown types are written in key order in the namespace
// of the enclosing element.
func (w *envelopeWriter) complex(start xml.StartElement, typ xml.Name, fields map[string]any, depth int) error {
	if err := w.enc.EncodeToken(start); err != nil {
		return err
	}

	ns := start.Name.Space
	if ct := w.contract.complexType(typ); ct != nil {
		for key := range fields {
			if !slices.ContainsFunc(ct.Fields, func(p Param) bool { return p.Name.Local == key }) {
				return fmt.Errorf("type %s has no field %q", typ.Local, key)
			}
		}
		for _, p := range ct.Fields {
			v, ok := fields[p.Name.Local]
			if !ok {
				continue
			}
			if err := w.element(p.Name, p.Type, v, ns, depth+1); err != nil {
				return fmt.Errorf("%s: %w", p.Name.Local, err)
			}
		}
	} else {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := w.element(xml.Name{Space: ns, Local: key}, xml.Name{}, fields[key], ns, depth+1); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	return w.enc.EncodeToken(start.End())
}
