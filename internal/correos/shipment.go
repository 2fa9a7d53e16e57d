package correos

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Party is the sender or recipient of a shipment.
type Party struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
}

// Recipient is the receiving party. PostalCode is sent as the post office box
// (DEST_APARTADO); ZIP, when set, is the delivery postal code.
type Recipient struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
	ZIP        string `json:"zip,omitempty"`
}

// zip returns the delivery postal code, falling back to the first eight
// characters of the post office box.
func (r Recipient) zip() string {
	if r.ZIP != "" {
		return r.ZIP
	}
	if len(r.PostalCode) > 8 {
		return r.PostalCode[:8]
	}
	return r.PostalCode
}

// Shipment is a parcel to register.
type Shipment struct {
	Sender    Party     `json:"sender"`
	Recipient Recipient `json:"recipient"`
	// WeightGrams is the parcel weight in grams.
	WeightGrams float64 `json:"weight_grams"`
	// Freight is the freight amount in colones.
	Freight float64 `json:"freight"`
	Notes   string  `json:"notes,omitempty"`
	// SentAt defaults to the registration time.
	SentAt time.Time `json:"sent_at,omitzero"`
}

// Registration is the outcome of a successful shipment registration.
type Registration struct {
	GuideNumber string `json:"guide_number"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	// PDF is the base64 encoded shipping label, passed through unchanged.
	PDF string `json:"pdf,omitempty"`
}

// ShipmentResult is the outcome of CreateShipment.
type ShipmentResult struct {
	Registration
	// Tariff is nil when the tariff could not be quoted.
	Tariff *Tariff `json:"tariff,omitempty"`
}

// Location identifies a district by province, canton and district codes.
type Location struct {
	Province string `json:"province"`
	Canton   string `json:"canton"`
	District string `json:"district"`
}

// ParsePostalCode splits a Costa Rican postal code into its location: one
// province digit, two canton digits and two district digits, e.g. 10101.
// Non-digit characters are ignored and digits beyond the fifth are dropped.
func ParsePostalCode(code string) (Location, error) {
	var digits strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 5 {
		return Location{}, fmt.Errorf("postal code %q has fewer than 5 digits", code)
	}
	return Location{Province: d[0:1], Canton: d[1:3], District: d[3:5]}, nil
}

// TariffRequest asks for the rate between two locations.
type TariffRequest struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	WeightGrams float64  `json:"weight_grams"`
}

// Tariff is a quoted rate. Total is Amount + Tax - Discount.
type Tariff struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Amount   Amount `json:"amount"`
	Tax      Amount `json:"tax"`
	Discount Amount `json:"discount"`
	Total    Amount `json:"total"`
}

// shipmentData builds the ccrDatosEnvio payload. Optional VARIABLE fields
// are sent as nil, except VARIABLE_5 and VARIABLE_12 which must be 0.
func (s *Service) shipmentData(guide string, shipment Shipment) map[string]any {
	sentAt := shipment.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}

	data := map[string]any{
		"COD_CLIENTE": s.account.ClientCode,
		"SERVICIO":    s.account.ServiceID,
		"USUARIO_ID":  s.account.UserID,
		"FECHA_ENVIO": sentAt,
		"ENVIO_ID":    guide,
		"MONTO_FLETE": shipment.Freight,
		"PESO":        shipment.WeightGrams,

		"DEST_NOMBRE":    shipment.Recipient.Name,
		"DEST_DIRECCION": shipment.Recipient.Address,
		"DEST_TELEFONO":  shipment.Recipient.Phone,
		"DEST_APARTADO":  shipment.Recipient.PostalCode,
		"DEST_ZIP":       shipment.Recipient.zip(),

		"SEND_NOMBRE":    shipment.Sender.Name,
		"SEND_DIRECCION": shipment.Sender.Address,
		"SEND_TELEFONO":  shipment.Sender.Phone,
		"SEND_ZIP":       shipment.Sender.PostalCode,

		"OBSERVACIONES": shipment.Notes,
	}
	for _, n := range []int{1, 3, 4, 6, 7, 8, 9, 10, 11, 13, 14, 15, 16} {
		data["VARIABLE_"+strconv.Itoa(n)] = nil
	}
	data["VARIABLE_5"] = 0
	data["VARIABLE_12"] = 0
	return data
}

// tariffRequestFor derives a tariff request from the shipment postal codes.
func tariffRequestFor(shipment Shipment) (TariffRequest, error) {
	origin, err := ParsePostalCode(shipment.Sender.PostalCode)
	if err != nil {
		return TariffRequest{}, fmt.Errorf("sender: %w", err)
	}
	destinationCode := shipment.Recipient.ZIP
	if destinationCode == "" {
		destinationCode = shipment.Recipient.PostalCode
	}
	destination, err := ParsePostalCode(destinationCode)
	if err != nil {
		return TariffRequest{}, fmt.Errorf("recipient: %w", err)
	}
	return TariffRequest{Origin: origin, Destination: destination, WeightGrams: shipment.WeightGrams}, nil
}
