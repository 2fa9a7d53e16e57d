// Package correos exposes the Correos de Costa Rica shipping operations:
// guide number generation, shipment registration, tariff quotes and the
// province, canton and district catalog.
//
// Service builds the operation payloads and interprets the in-band
// response codes. Token handling and the retry on token rejection belong
// to the Invoker, normally a *soap.Client.
package correos
