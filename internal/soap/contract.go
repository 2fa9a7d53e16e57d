package soap

import (
	"encoding/xml"
)

// Version is the SOAP protocol version of a binding.
type Version int

const (
	SOAP11 Version = iota
	SOAP12
)

// Envelope namespaces per SOAP version.
const (
	envelopeNS11 = "http://schemas.xmlsoap.org/soap/envelope/"
	envelopeNS12 = "http://www.w3.org/2003/05/soap-envelope"
	xsiNS        = "http://www.w3.org/2001/XMLSchema-instance"
)

func (v Version) envelopeNS() string {
	if v == SOAP12 {
		return envelopeNS12
	}
	return envelopeNS11
}

func (v Version) String() string {
	if v == SOAP12 {
		return "1.2"
	}
	return "1.1"
}

// Contract describes the operations of one service binding.
type Contract struct {
	// BindingNamespace qualifies the pToken header element.
	BindingNamespace string
	Version          Version
	Operations       map[string]*Operation
	Types            map[xml.Name]*ComplexType
}

// Operation is a single remote operation with document/literal wrapped input.
type Operation struct {
	Name string
	// Action is sent as SOAPAction (1.1) or the action media type parameter (1.2).
	Action string
	// Input is the body wrapper element.
	Input  xml.Name
	Params []Param
}

// Param is an element of a sequence: an operation input or a complex type field.
type Param struct {
	Name xml.Name
	// Type names a complex type in Contract.Types; zero for simple types.
	Type     xml.Name
	Repeated bool
}

// ComplexType lists the fields of a structured type in declaration order.
type ComplexType struct {
	Name   xml.Name
	Fields []Param
}

// Operation looks up an operation by name.
func (c *Contract) Operation(name string) (*Operation, bool) {
	op, ok := c.Operations[name]
	return op, ok
}

// param returns the declared parameter with the given local name.
func (o *Operation) param(local string) (Param, bool) {
	for _, p := range o.Params {
		if p.Name.Local == local {
			return p, true
		}
	}
	return Param{}, false
}

// HasParam reports whether the operation declares an input parameter named local.
func (o *Operation) HasParam(local string) bool {
	_, ok := o.param(local)
	return ok
}

func (c *Contract) complexType(name xml.Name) *ComplexType {
	if name.Local == "" {
		return nil
	}
	return c.Types[name]
}
