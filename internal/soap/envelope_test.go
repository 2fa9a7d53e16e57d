package soap

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"
)

func tarifaContract() (*Contract, *Operation) {
	reqType := xml.Name{Space: dataContracts, Local: "ccrReqTarifa"}
	itemType := xml.Name{Space: dataContracts, Local: "ccrItem"}
	field := func(local string) Param {
		return Param{Name: xml.Name{Space: dataContracts, Local: local}}
	}

	op := &Operation{
		Name:   "ccrTarifa",
		Input:  xml.Name{Space: serviceNS, Local: "ccrTarifa"},
		Params: []Param{{Name: xml.Name{Space: serviceNS, Local: "reqTarifa"}, Type: reqType}},
	}
	contract := &Contract{
		BindingNamespace: bindingNS,
		Operations:       map[string]*Operation{op.Name: op},
		Types: map[xml.Name]*ComplexType{
			reqType: {Name: reqType, Fields: []Param{
				field("ProvinciaOrigen"),
				field("Peso"),
				field("Fecha"),
				field("Observaciones"),
				{Name: xml.Name{Space: dataContracts, Local: "Items"}, Type: itemType, Repeated: true},
			}},
			itemType: {Name: itemType, Fields: []Param{field("Codigo")}},
		},
	}
	return contract, op
}

func TestBuildEnvelopeOrdersFieldsByType(t *testing.T) {
	contract, op := tarifaContract()
	when := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	env, err := buildEnvelope(contract, op, Request{
		Operation: "ccrTarifa",
		Args: []any{map[string]any{
			"Observaciones":   nil,
			"Fecha":           when,
			"Peso":            1.5,
			"ProvinciaOrigen": "1",
			"Items":           []any{map[string]any{"Codigo": "01"}, map[string]any{"Codigo": "02"}},
		}},
	}, "tok-1")
	if err != nil {
		t.Fatalf("buildEnvelope() error = %v", err)
	}
	if env.tokenInBody {
		t.Error("tokenInBody = true for an operation without pToken")
	}

	root, err := parseTree(env.body)
	if err != nil {
		t.Fatalf("envelope is not well-formed: %v\n%s", err, env.body)
	}
	if root.name != (xml.Name{Space: envelopeNS11, Local: "Envelope"}) {
		t.Errorf("root = %v, want SOAP 1.1 envelope", root.name)
	}

	req := root.child("Body").child("ccrTarifa").child("reqTarifa")
	if req == nil {
		t.Fatalf("reqTarifa missing:\n%s", env.body)
	}
	var order []string
	for _, c := range req.children {
		order = append(order, c.name.Local)
		if c.name.Space != dataContracts {
			t.Errorf("%s namespace = %q, want %q", c.name.Local, c.name.Space, dataContracts)
		}
	}
	if got, want := strings.Join(order, ","), "ProvinciaOrigen,Peso,Fecha,Observaciones,Items,Items"; got != want {
		t.Errorf("field order = %s, want %s", got, want)
	}

	if got := req.childText("Peso"); got != "1.5" {
		t.Errorf("Peso = %q, want 1.5", got)
	}
	if got := req.childText("Fecha"); got != "2026-03-01T09:30:00Z" {
		t.Errorf("Fecha = %q, want RFC 3339", got)
	}
	if obs := req.child("Observaciones"); obs == nil || !obs.isNil {
		t.Error("Observaciones is not xsi:nil")
	}
	if got := req.children[5].childText("Codigo"); got != "02" {
		t.Errorf("second item Codigo = %q, want 02", got)
	}
}

func TestBuildEnvelopeHeaderToken(t *testing.T) {
	contract, op := tarifaContract()
	contract.Version = SOAP12

	env, err := buildEnvelope(contract, op, Request{Operation: "ccrTarifa"}, "tok-9")
	if err != nil {
		t.Fatalf("buildEnvelope() error = %v", err)
	}
	root, err := parseTree(env.body)
	if err != nil {
		t.Fatalf("envelope is not well-formed: %v", err)
	}
	if root.name.Space != envelopeNS12 {
		t.Errorf("envelope namespace = %q, want SOAP 1.2", root.name.Space)
	}
	tok := root.child("Header").child("pToken")
	if tok == nil {
		t.Fatal("pToken header missing")
	}
	if tok.name.Space != bindingNS || tok.text.String() != "tok-9" {
		t.Errorf("pToken = {%s}%q, want {%s}tok-9", tok.name.Space, tok.text.String(), bindingNS)
	}
}

func TestBuildEnvelopeCallerTokenFallsBackToHeader(t *testing.T) {
	op := &Operation{
		Name:  "ccrCodCanton",
		Input: xml.Name{Space: serviceNS, Local: "ccrCodCanton"},
		Params: []Param{
			{Name: xml.Name{Space: serviceNS, Local: "pToken"}},
			{Name: xml.Name{Space: serviceNS, Local: "CodProvincia"}},
		},
	}
	contract := &Contract{BindingNamespace: bindingNS, Operations: map[string]*Operation{op.Name: op}}

	env, err := buildEnvelope(contract, op, Request{
		Operation: op.Name,
		Named:     map[string]any{"pToken": "own", "CodProvincia": "1"},
	}, "tok-3")
	if err != nil {
		t.Fatalf("buildEnvelope() error = %v", err)
	}
	if env.tokenInBody {
		t.Error("tokenInBody = true although the caller supplied pToken")
	}
	root, err := parseTree(env.body)
	if err != nil {
		t.Fatalf("envelope is not well-formed: %v", err)
	}
	header := root.child("Header")
	if header == nil || header.child("pToken") == nil {
		t.Fatalf("pToken header missing:\n%s", env.body)
	}
	tok := header.child("pToken")
	if tok.name.Space != bindingNS || tok.text.String() != "tok-3" {
		t.Errorf("header pToken = {%s}%q, want {%s}tok-3", tok.name.Space, tok.text.String(), bindingNS)
	}
	if got := root.child("Body").child("ccrCodCanton").childText("pToken"); got != "own" {
		t.Errorf("body pToken = %q, want caller value", got)
	}
}

func TestBuildEnvelopeUnqualifiedChildren(t *testing.T) {
	op := &Operation{
		Name:  "ccrCodDistrito",
		Input: xml.Name{Space: serviceNS, Local: "ccrCodDistrito"},
		Params: []Param{
			{Name: xml.Name{Local: "CodProvincia"}},
			{Name: xml.Name{Local: "CodCanton"}},
		},
	}
	contract := &Contract{BindingNamespace: bindingNS, Operations: map[string]*Operation{op.Name: op}}

	env, err := buildEnvelope(contract, op, Request{Operation: op.Name, Args: []any{"1", 1}}, "tok")
	if err != nil {
		t.Fatalf("buildEnvelope() error = %v", err)
	}
	root, err := parseTree(env.body)
	if err != nil {
		t.Fatalf("envelope is not well-formed: %v", err)
	}
	wrapper := root.child("Body").child("ccrCodDistrito")
	for _, c := range wrapper.children {
		if c.name.Space != "" {
			t.Errorf("%s namespace = %q, want unqualified", c.name.Local, c.name.Space)
		}
	}
	if got := wrapper.childText("CodCanton"); got != "1" {
		t.Errorf("CodCanton = %q, want 1", got)
	}
}

func TestBindArgs(t *testing.T) {
	op := &Operation{
		Name: "ccrCodCanton",
		Params: []Param{
			{Name: xml.Name{Local: "pToken"}},
			{Name: xml.Name{Local: "CodProvincia"}},
		},
	}

	tests := []struct {
		name        string
		req         Request
		want        map[string]any
		tokenInBody bool
		wantErr     bool
	}{
		{
			name:        "positional skips injected token",
			req:         Request{Args: []any{"2"}},
			want:        map[string]any{"pToken": "tok", "CodProvincia": "2"},
			tokenInBody: true,
		},
		{
			name:        "named",
			req:         Request{Named: map[string]any{"CodProvincia": "3"}},
			want:        map[string]any{"pToken": "tok", "CodProvincia": "3"},
			tokenInBody: true,
		},
		{
			name: "caller supplied token",
			req:  Request{Named: map[string]any{"pToken": "own", "CodProvincia": "3"}},
			want: map[string]any{"pToken": "own", "CodProvincia": "3"},
		},
		{
			name:    "too many arguments",
			req:     Request{Args: []any{"1", "2"}},
			wantErr: true,
		},
		{
			name:    "unknown parameter",
			req:     Request{Named: map[string]any{"Canton": "01"}},
			wantErr: true,
		},
		{
			name:    "duplicate parameter",
			req:     Request{Args: []any{"1"}, Named: map[string]any{"CodProvincia": "1"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, inBody, err := bindArgs(op, tt.req, "tok")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("bindArgs() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("bindArgs() error = %v", err)
			}
			if inBody != tt.tokenInBody {
				t.Errorf("tokenInBody = %v, want %v", inBody, tt.tokenInBody)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("bindArgs() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestBuildEnvelopeRejectsUnknownField(t *testing.T) {
	contract, op := tarifaContract()

	_, err := buildEnvelope(contract, op, Request{
		Operation: "ccrTarifa",
		Args:      []any{map[string]any{"Volumen": "3"}},
	}, "tok")
	if err == nil {
		t.Fatal("buildEnvelope() accepted a field the type does not declare")
	}
}
