package soap

import (
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, res Result)
	}{
		{
			name:  "structured success",
			input: codeResponse("ccrTarifa", "00", "OK", "<a:MontoTarifa>2500</a:MontoTarifa><a:Impuesto>325</a:Impuesto>"),
			check: func(t *testing.T, res Result) {
				s, ok := res.(*Structured)
				if !ok {
					t.Fatalf("result = %T, want *Structured", res)
				}
				if s.Code != "00" || s.Message != "OK" {
					t.Errorf("Code, Message = %q, %q", s.Code, s.Message)
				}
				if s.Fields.String("Impuesto") != "325" {
					t.Errorf("Impuesto = %q, want 325", s.Fields.String("Impuesto"))
				}
			},
		},
		{
			name:  "in-band fault",
			input: codeResponse("ccrRegistroEnvio", "15", "Error interno", ""),
			check: func(t *testing.T, res Result) {
				f, ok := res.(*Fault)
				if !ok {
					t.Fatalf("result = %T, want *Fault", res)
				}
				if f.Code != "15" || f.Message != "Error interno" || f.Operation != "test" {
					t.Errorf("fault = %+v", f)
				}
			},
		},
		{
			name:  "no response code",
			input: soapEnvelope(`<ccrGenerarGuiaResponse xmlns="http://correos.go.cr/ws"><ccrGenerarGuiaResult><NumeroEnvio>WS1CR</NumeroEnvio></ccrGenerarGuiaResult></ccrGenerarGuiaResponse>`),
			check: func(t *testing.T, res Result) {
				s, ok := res.(*Structured)
				if !ok {
					t.Fatalf("result = %T, want *Structured", res)
				}
				if s.Code != "" || s.Fields.String("NumeroEnvio") != "WS1CR" {
					t.Errorf("structured = %+v", s)
				}
			},
		},
		{
			name:  "opaque scalar result",
			input: soapEnvelope(`<ccrPingResponse xmlns="http://correos.go.cr/ws"><ccrPingResult>pong</ccrPingResult></ccrPingResponse>`),
			check: func(t *testing.T, res Result) {
				o, ok := res.(*Opaque)
				if !ok {
					t.Fatalf("result = %T, want *Opaque", res)
				}
				if o.Value != "pong" {
					t.Errorf("Value = %q, want pong", o.Value)
				}
			},
		},
		{
			name: "repeated items",
			input: codeResponse("ccrCodProvincia", "00", "", `<a:Provincias>`+
				`<a:ccrItemGeografico><a:Codigo>1</a:Codigo><a:Descripcion>SAN JOSE</a:Descripcion></a:ccrItemGeografico>`+
				`<a:ccrItemGeografico><a:Codigo>2</a:Codigo><a:Descripcion>ALAJUELA</a:Descripcion></a:ccrItemGeografico>`+
				`<a:ccrItemGeografico><a:Codigo>3</a:Codigo><a:Descripcion>CARTAGO</a:Descripcion></a:ccrItemGeografico>`+
				`</a:Provincias>`),
			check: func(t *testing.T, res Result) {
				s := res.(*Structured)
				items := s.Fields.Fields("Provincias").List("ccrItemGeografico")
				if len(items) != 3 {
					t.Fatalf("got %d items, want 3", len(items))
				}
				if got := items[2].(Fields).String("Descripcion"); got != "CARTAGO" {
					t.Errorf("third item = %q, want CARTAGO", got)
				}
			},
		},
		{
			name: "single item",
			input: codeResponse("ccrCodCanton", "00", "", `<a:Cantones>`+
				`<a:ccrItemGeografico><a:Codigo>01</a:Codigo><a:Descripcion>CENTRAL</a:Descripcion></a:ccrItemGeografico>`+
				`</a:Cantones>`),
			check: func(t *testing.T, res Result) {
				items := res.(*Structured).Fields.Fields("Cantones").List("ccrItemGeografico")
				if len(items) != 1 {
					t.Fatalf("got %d items, want 1", len(items))
				}
			},
		},
		{
			name:  "nil element",
			input: codeResponse("ccrRegistroEnvio", "00", "", `<a:PDF i:nil="true"/>`),
			check: func(t *testing.T, res Result) {
				s := res.(*Structured)
				v, ok := s.Fields["PDF"]
				if !ok || v != nil {
					t.Errorf("PDF = %#v (present %v), want nil", v, ok)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, fault, err := decodeResponse([]byte(tt.input))
			if err != nil {
				t.Fatalf("decodeResponse() error = %v", err)
			}
			if fault != nil {
				t.Fatalf("decodeResponse() fault = %+v", fault)
			}
			tt.check(t, classify("test", payload))
		})
	}
}

func TestDecodeFault(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "soap 1.1",
			input:       faultResponse("Token no valido"),
			wantCode:    "s:Client",
			wantMessage: "Token no valido",
		},
		{
			name: "soap 1.2",
			input: `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body><env:Fault>` +
				`<env:Code><env:Value>env:Sender</env:Value></env:Code>` +
				`<env:Reason><env:Text xml:lang="es">Token expirado</env:Text></env:Reason>` +
				`</env:Fault></env:Body></env:Envelope>`,
			wantCode:    "env:Sender",
			wantMessage: "Token expirado",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fault, err := decodeResponse([]byte(tt.input))
			if err != nil {
				t.Fatalf("decodeResponse() error = %v", err)
			}
			if fault == nil {
				t.Fatal("decodeResponse() found no fault")
			}
			if fault.Code != tt.wantCode || fault.Message != tt.wantMessage {
				t.Errorf("fault = %+v, want code %q message %q", fault, tt.wantCode, tt.wantMessage)
			}
		})
	}
}

func TestDecodeResponseErrors(t *testing.T) {
	tests := map[string]string{
		"not xml":       "Token no valido",
		"not envelope":  "<html><body>error</body></html>",
		"no body":       `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"/>`,
		"truncated":     `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>`,
		"multiple root": `<a/><b/>`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := decodeResponse([]byte(input)); err == nil {
				t.Error("decodeResponse() succeeded")
			}
		})
	}
}

func TestIsAuthFault(t *testing.T) {
	tests := map[string]bool{
		"Token no valido":           true,
		"TOKEN EXPIRADO":            true,
		"Código 20":                 true,
		"El token inválido":         true,
		"Object reference not set":  false,
		"Error interno del sistema": false,
		"":                          false,
	}
	for message, want := range tests {
		if got := isAuthFault(message); got != want {
			t.Errorf("isAuthFault(%q) = %v, want %v", message, got, want)
		}
	}
}
