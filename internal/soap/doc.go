// Package soap invokes operations of the Correos SOAP web service with an
// access token attached, renewing the token and retrying once when the
// service rejects it.
//
// The service contract is read from the WSDL on first use. It decides how the
// token travels: operations that declare a pToken input parameter receive it
// in the body; all others get a pToken SOAP header element in the binding
// namespace plus redundant Authorization and pToken HTTP headers. A header
// element in the wrong namespace is silently ignored by the service, so the
// namespace always comes from the contract.
//
// # Invoking operations
//
//	client := soap.New(endpoint, store)
//	res, err := client.Invoke(ctx, soap.Request{
//		Operation: "ccrTarifa",
//		Args:      []any{map[string]any{"Peso": "500"}},
//	})
//	switch r := res.(type) {
//	case *soap.Structured:
//		// r.Fields
//	case *soap.Fault:
//		// in-band application error: r.Code, r.Message
//	case *soap.Opaque:
//		// r.Value
//	}
//
// A token rejection is detected either from a SOAP fault mentioning the token
// or from the in-band response code "20". Client never retries more than once
// and never retries faults unrelated to the token.
package soap
