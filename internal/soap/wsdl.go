package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
)

const (
	wsdlNS       = "http://schemas.xmlsoap.org/wsdl/"
	wsdlSOAP11NS = "http://schemas.xmlsoap.org/wsdl/soap/"
	wsdlSOAP12NS = "http://schemas.xmlsoap.org/wsdl/soap12/"
	xsdNS        = "http://www.w3.org/2001/XMLSchema"
)

const (
	// maxContractDocuments bounds how many imported documents are fetched.
	maxContractDocuments = 32
	// maxTypeDepth bounds complex type nesting and base type chains.
	maxTypeDepth = 16
	// maxDocumentSize bounds a single WSDL or schema document.
	maxDocumentSize = 8 << 20
)

type wsdlDefinitions struct {
	TargetNamespace string           `xml:"targetNamespace,attr"`
	Attrs           []xml.Attr       `xml:",any,attr"`
	Imports         []wsdlImport     `xml:"http://schemas.xmlsoap.org/wsdl/ import"`
	Types           wsdlTypes        `xml:"http://schemas.xmlsoap.org/wsdl/ types"`
	Messages        []wsdlMessage    `xml:"http://schemas.xmlsoap.org/wsdl/ message"`
	PortTypes       []wsdlPortType   `xml:"http://schemas.xmlsoap.org/wsdl/ portType"`
	Bindings        []wsdlBinding    `xml:"http://schemas.xmlsoap.org/wsdl/ binding"`
}

type wsdlImport struct {
	Namespace string `xml:"namespace,attr"`
	Location  string `xml:"location,attr"`
}

type wsdlTypes struct {
	Schemas []xsdSchema `xml:"http://www.w3.org/2001/XMLSchema schema"`
}

type wsdlMessage struct {
	Name  string     `xml:"name,attr"`
	Parts []wsdlPart `xml:"http://schemas.xmlsoap.org/wsdl/ part"`
}

type wsdlPart struct {
	Name    string `xml:"name,attr"`
	Element string `xml:"element,attr"`
}

type wsdlPortType struct {
	Name       string              `xml:"name,attr"`
	Operations []wsdlPortOperation `xml:"http://schemas.xmlsoap.org/wsdl/ operation"`
}

type wsdlPortOperation struct {
	Name  string `xml:"name,attr"`
	Input struct {
		Message string `xml:"message,attr"`
	} `xml:"http://schemas.xmlsoap.org/wsdl/ input"`
}

type wsdlBinding struct {
	Name       string                 `xml:"name,attr"`
	Type       string                 `xml:"type,attr"`
	SOAP11     *struct{}              `xml:"http://schemas.xmlsoap.org/wsdl/soap/ binding"`
	SOAP12     *struct{}              `xml:"http://schemas.xmlsoap.org/wsdl/soap12/ binding"`
	Operations []wsdlBindingOperation `xml:"http://schemas.xmlsoap.org/wsdl/ operation"`
}

type wsdlBindingOperation struct {
	Name   string         `xml:"name,attr"`
	SOAP11 *soapOperation `xml:"http://schemas.xmlsoap.org/wsdl/soap/ operation"`
	SOAP12 *soapOperation `xml:"http://schemas.xmlsoap.org/wsdl/soap12/ operation"`
}

type soapOperation struct {
	Action string `xml:"soapAction,attr"`
}

type xsdSchema struct {
	TargetNamespace    string           `xml:"targetNamespace,attr"`
	ElementFormDefault string           `xml:"elementFormDefault,attr"`
	Attrs              []xml.Attr       `xml:",any,attr"`
	Imports            []xsdImport      `xml:"http://www.w3.org/2001/XMLSchema import"`
	Includes           []xsdImport      `xml:"http://www.w3.org/2001/XMLSchema include"`
	Elements           []xsdElement     `xml:"http://www.w3.org/2001/XMLSchema element"`
	ComplexTypes       []xsdComplexType `xml:"http://www.w3.org/2001/XMLSchema complexType"`
}

type xsdImport struct {
	Namespace      string `xml:"namespace,attr"`
	SchemaLocation string `xml:"schemaLocation,attr"`
}

type xsdElement struct {
	Name        string          `xml:"name,attr"`
	Type        string          `xml:"type,attr"`
	Ref         string          `xml:"ref,attr"`
	Form        string          `xml:"form,attr"`
	MaxOccurs   string          `xml:"maxOccurs,attr"`
	Attrs       []xml.Attr      `xml:",any,attr"`
	ComplexType *xsdComplexType `xml:"http://www.w3.org/2001/XMLSchema complexType"`
}

type xsdComplexType struct {
	Name           string          `xml:"name,attr"`
	Sequence       *xsdGroup       `xml:"http://www.w3.org/2001/XMLSchema sequence"`
	All            *xsdGroup       `xml:"http://www.w3.org/2001/XMLSchema all"`
	ComplexContent *xsdComplexBody `xml:"http://www.w3.org/2001/XMLSchema complexContent"`
}

type xsdComplexBody struct {
	Extension *struct {
		Base     string    `xml:"base,attr"`
		Sequence *xsdGroup `xml:"http://www.w3.org/2001/XMLSchema sequence"`
	} `xml:"http://www.w3.org/2001/XMLSchema extension"`
}

type xsdGroup struct {
	Elements []xsdElement `xml:"http://www.w3.org/2001/XMLSchema element"`
}

func (ct *xsdComplexType) elements() []xsdElement {
	switch {
	case ct.Sequence != nil:
		return ct.Sequence.Elements
	case ct.All != nil:
		return ct.All.Elements
	}
	return nil
}

// namespaces maps prefixes in scope to namespace URIs; "" is the default namespace.
type namespaces map[string]string

func (ns namespaces) with(attrs []xml.Attr) namespaces {
	out := make(namespaces, len(ns)+len(attrs))
	maps.Copy(out, ns)
	for _, a := range attrs {
		switch {
		case a.Name.Space == "xmlns":
			out[a.Name.Local] = a.Value
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			out[""] = a.Value
		}
	}
	return out
}

// resolve expands a prefixed name such as "tns:ccrTarifa".
func (ns namespaces) resolve(qname string) xml.Name {
	prefix, local, found := strings.Cut(qname, ":")
	if !found {
		return xml.Name{Space: ns[""], Local: qname}
	}
	return xml.Name{Space: ns[prefix], Local: local}
}

// lookup finds name in m, falling back to a match on the local part when the
// namespace could not be resolved exactly.
func lookup[T any](m map[xml.Name]T, name xml.Name) (T, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if k.Local == name.Local {
			return v, true
		}
	}
	var zero T
	return zero, false
}

type definitionsDoc struct {
	*wsdlDefinitions
	ns namespaces
}

type schemaDoc struct {
	*xsdSchema
	ns namespaces
}

// contractLoader fetches a WSDL and everything it imports.
type contractLoader struct {
	client  *http.Client
	visited map[string]bool
	defs    []definitionsDoc
	schemas []schemaDoc
}

// LoadContract fetches the WSDL at wsdlURL, follows its wsdl:import,
// xsd:import and xsd:include references, and describes the first SOAP
// binding it declares.
func LoadContract(ctx context.Context, client *http.Client, wsdlURL string) (*Contract, error) {
	if client == nil {
		client = http.DefaultClient
	}
	l := &contractLoader{client: client, visited: make(map[string]bool)}
	if err := l.load(ctx, wsdlURL); err != nil {
		return nil, err
	}
	return l.build()
}

func (l *contractLoader) load(ctx context.Context, location string) error {
	if l.visited[location] {
		return nil
	}
	if len(l.visited) >= maxContractDocuments {
		return fmt.Errorf("too many contract documents (limit %d)", maxContractDocuments)
	}
	l.visited[location] = true

	data, err := l.fetch(ctx, location)
	if err != nil {
		return err
	}

	root, err := rootElement(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", location, err)
	}

	switch root {
	case xml.Name{Space: wsdlNS, Local: "definitions"}:
		doc := &wsdlDefinitions{}
		if err := xml.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("parsing WSDL %s: %w", location, err)
		}
		d := definitionsDoc{wsdlDefinitions: doc, ns: namespaces(nil).with(doc.Attrs)}
		l.defs = append(l.defs, d)

		for _, imp := range doc.Imports {
			if imp.Location == "" {
				continue
			}
			if err := l.load(ctx, resolveLocation(location, imp.Location)); err != nil {
				return err
			}
		}
		for i := range doc.Types.Schemas {
			if err := l.addSchema(ctx, location, &doc.Types.Schemas[i], d.ns); err != nil {
				return err
			}
		}
	case xml.Name{Space: xsdNS, Local: "schema"}:
		s := &xsdSchema{}
		if err := xml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("parsing schema %s: %w", location, err)
		}
		return l.addSchema(ctx, location, s, nil)
	default:
		return fmt.Errorf("unexpected root element {%s}%s in %s", root.Space, root.Local, location)
	}
	return nil
}

func (l *contractLoader) addSchema(ctx context.Context, base string, s *xsdSchema, scope namespaces) error {
	l.schemas = append(l.schemas, schemaDoc{xsdSchema: s, ns: scope.with(s.Attrs)})

	refs := append(append([]xsdImport(nil), s.Imports...), s.Includes...)
	for _, ref := range refs {
		if ref.SchemaLocation == "" {
			continue
		}
		if err := l.load(ctx, resolveLocation(base, ref.SchemaLocation)); err != nil {
			return err
		}
	}
	return nil
}

func (l *contractLoader) fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating contract request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", location, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

func resolveLocation(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func rootElement(data []byte) (xml.Name, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.Name{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name, nil
		}
	}
}

type elementDecl struct {
	elem   *xsdElement
	schema schemaDoc
}

type typeDecl struct {
	ct     *xsdComplexType
	schema schemaDoc
}

type scoped[T any] struct {
	value T
	ns    namespaces
}

// contractBuilder turns the loaded documents into a Contract.
type contractBuilder struct {
	elements map[xml.Name]elementDecl
	xsdTypes map[xml.Name]typeDecl
	types    map[xml.Name]*ComplexType
}

func (l *contractLoader) build() (*Contract, error) {
	b := &contractBuilder{
		elements: make(map[xml.Name]elementDecl),
		xsdTypes: make(map[xml.Name]typeDecl),
		types:    make(map[xml.Name]*ComplexType),
	}
	for _, s := range l.schemas {
		for i := range s.Elements {
			b.elements[xml.Name{Space: s.TargetNamespace, Local: s.Elements[i].Name}] = elementDecl{&s.Elements[i], s}
		}
		for i := range s.ComplexTypes {
			b.xsdTypes[xml.Name{Space: s.TargetNamespace, Local: s.ComplexTypes[i].Name}] = typeDecl{&s.ComplexTypes[i], s}
		}
	}

	messages := make(map[xml.Name]scoped[*wsdlMessage])
	portTypes := make(map[xml.Name]scoped[*wsdlPortType])
	var binding *wsdlBinding
	var bindingDoc definitionsDoc
	for _, d := range l.defs {
		for i := range d.Messages {
			messages[xml.Name{Space: d.TargetNamespace, Local: d.Messages[i].Name}] = scoped[*wsdlMessage]{&d.Messages[i], d.ns}
		}
		for i := range d.PortTypes {
			portTypes[xml.Name{Space: d.TargetNamespace, Local: d.PortTypes[i].Name}] = scoped[*wsdlPortType]{&d.PortTypes[i], d.ns}
		}
		for i := range d.Bindings {
			if binding == nil && (d.Bindings[i].SOAP11 != nil || d.Bindings[i].SOAP12 != nil) {
				binding, bindingDoc = &d.Bindings[i], d
			}
		}
	}
	if binding == nil {
		return nil, errors.New("contract declares no SOAP binding")
	}

	contract := &Contract{
		BindingNamespace: bindingDoc.TargetNamespace,
		Version:          SOAP11,
		Operations:       make(map[string]*Operation),
		Types:            b.types,
	}
	if binding.SOAP11 == nil {
		contract.Version = SOAP12
	}

	portType, ok := lookup(portTypes, bindingDoc.ns.resolve(binding.Type))
	if !ok {
		return nil, fmt.Errorf("binding %s references unknown port type %s", binding.Name, binding.Type)
	}

	actions := make(map[string]string, len(binding.Operations))
	for _, bop := range binding.Operations {
		switch {
		case bop.SOAP11 != nil:
			actions[bop.Name] = bop.SOAP11.Action
		case bop.SOAP12 != nil:
			actions[bop.Name] = bop.SOAP12.Action
		}
	}

	for _, pop := range portType.value.Operations {
		op := &Operation{
			Name:   pop.Name,
			Action: actions[pop.Name],
			Input:  xml.Name{Space: bindingDoc.TargetNamespace, Local: pop.Name},
		}
		if msg, ok := lookup(messages, portType.ns.resolve(pop.Input.Message)); ok && len(msg.value.Parts) > 0 {
			if part := msg.value.Parts[0]; part.Element != "" {
				if decl, ok := lookup(b.elements, msg.ns.resolve(part.Element)); ok {
					op.Input = xml.Name{Space: decl.schema.TargetNamespace, Local: decl.elem.Name}
					op.Params = b.elementParams(decl)
				}
			}
		}
		contract.Operations[op.Name] = op
	}

	return contract, nil
}

// elementParams returns the children of a top-level wrapper element.
func (b *contractBuilder) elementParams(decl elementDecl) []Param {
	if decl.elem.ComplexType != nil {
		return b.fields(decl.elem.ComplexType, decl.schema, 0)
	}
	if decl.elem.Type == "" {
		return nil
	}
	td, ok := b.xsdTypes[decl.schema.ns.with(decl.elem.Attrs).resolve(decl.elem.Type)]
	if !ok {
		return nil
	}
	return b.fields(td.ct, td.schema, 0)
}

func (b *contractBuilder) fields(ct *xsdComplexType, s schemaDoc, depth int) []Param {
	if ct == nil || depth > maxTypeDepth {
		return nil
	}

	var params []Param
	elems := ct.elements()
	if ct.ComplexContent != nil && ct.ComplexContent.Extension != nil {
		ext := ct.ComplexContent.Extension
		if base, ok := b.xsdTypes[s.ns.resolve(ext.Base)]; ok {
			params = append(params, b.fields(base.ct, base.schema, depth+1)...)
		}
		if ext.Sequence != nil {
			elems = ext.Sequence.Elements
		}
	}

	for i := range elems {
		params = append(params, b.param(&elems[i], s, depth))
	}
	return params
}

func (b *contractBuilder) param(e *xsdElement, s schemaDoc, depth int) Param {
	ns := s.ns.with(e.Attrs)
	repeated := e.MaxOccurs == "unbounded" || (e.MaxOccurs != "" && e.MaxOccurs != "0" && e.MaxOccurs != "1")

	if e.Ref != "" {
		name := ns.resolve(e.Ref)
		if decl, ok := lookup(b.elements, name); ok && depth <= maxTypeDepth {
			p := b.param(decl.elem, decl.schema, depth+1)
			p.Name = xml.Name{Space: decl.schema.TargetNamespace, Local: decl.elem.Name}
			p.Repeated = repeated
			return p
		}
		return Param{Name: name, Repeated: repeated}
	}

	p := Param{Name: xml.Name{Local: e.Name}, Repeated: repeated}
	if e.Form == "qualified" || (e.Form == "" && s.ElementFormDefault == "qualified") {
		p.Name.Space = s.TargetNamespace
	}

	switch {
	case e.ComplexType != nil:
		anon := xml.Name{Space: s.TargetNamespace, Local: fmt.Sprintf("%s#%d", e.Name, len(b.types))}
		b.register(anon, typeDecl{e.ComplexType, s}, depth)
		p.Type = anon
	case e.Type != "":
		typeName := ns.resolve(e.Type)
		if td, ok := b.xsdTypes[typeName]; ok {
			b.register(typeName, td, depth)
			p.Type = typeName
		}
	}
	return p
}

func (b *contractBuilder) register(name xml.Name, td typeDecl, depth int) {
	if _, ok := b.types[name]; ok {
		return
	}
	ct := &ComplexType{Name: name}
	// Registered before its fields so recursive types terminate.
	b.types[name] = ct
	ct.Fields = b.fields(td.ct, td.schema, depth+1)
}
