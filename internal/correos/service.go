package correos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/florianilch/correos-link/internal/soap"
)

// Operation names of the Correos web service.
const (
	OpGenerateGuide    = "ccrGenerarGuia"
	OpRegisterShipment = "ccrRegistroEnvio"
	OpTariff           = "ccrTarifa"
	OpProvinces        = "ccrCodProvincia"
	OpCantons          = "ccrCodCanton"
	OpDistricts        = "ccrCodDistrito"
)

// Catalog pacing defaults.
const (
	DefaultCatalogInterval    = 500 * time.Millisecond
	DefaultCatalogConcurrency = 4
)

// ErrNoGuideNumber is returned when a successful response carries no guide number.
var ErrNoGuideNumber = errors.New("response carries no guide number")

// Invoker invokes remote operations. *soap.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, req soap.Request) (soap.Result, error)
}

// Account identifies the customer account shipments are registered under.
type Account struct {
	// ClientCode is COD_CLIENTE.
	ClientCode string
	// UserID is USUARIO_ID.
	UserID string
	// ServiceID is the shipping service (SERVICIO), e.g. "73".
	ServiceID string
}

// Option configures a Service.
type Option func(*Service)

// WithCatalogPacing sets the minimum interval between catalog requests
// issued by ProvinceTree and how many run concurrently.
func WithCatalogPacing(interval time.Duration, concurrency int) Option {
	return func(s *Service) {
		if interval > 0 {
			s.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

// WithClock overrides the time source used for default shipment dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service implements the shipping use cases on top of an Invoker.
// It is safe for concurrent use.
type Service struct {
	invoker     Invoker
	account     Account
	limiter     *rate.Limiter
	concurrency int
	now         func() time.Time
}

// NewService creates a Service for account.
func NewService(invoker Invoker, account Account, opts ...Option) *Service {
	s := &Service{
		invoker:     invoker,
		account:     account,
		limiter:     rate.NewLimiter(rate.Every(DefaultCatalogInterval), 1),
		concurrency: DefaultCatalogConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Call invokes an arbitrary operation and returns its raw result.
func (s *Service) Call(ctx context.Context, operation string, args []any, named map[string]any) (soap.Result, error) {
	return s.invoker.Invoke(ctx, soap.Request{Operation: operation, Args: args, Named: named})
}

// success invokes req and returns the fields of a successful response.
// Non-success codes become *ResponseError; opaque results yield nil fields
// and the opaque value.
func (s *Service) success(ctx context.Context, req soap.Request) (soap.Fields, string, error) {
	res, err := s.invoker.Invoke(ctx, req)
	if err != nil {
		return nil, "", err
	}

	switch r := res.(type) {
	case *soap.Structured:
		return r.Fields, "", nil
	case *soap.Opaque:
		return nil, r.Value, nil
	case *soap.Fault:
		slog.ErrorContext(ctx, "operation returned error code",
			"operation", req.Operation,
			"code", r.Code,
			"message", r.Message,
		)
		return nil, "", &ResponseError{Operation: req.Operation, Code: r.Code, Message: r.Message}
	default:
		return nil, "", fmt.Errorf("%s: unexpected result %T", req.Operation, res)
	}
}

// GenerateGuideNumber reserves a new guide (tracking) number.
func (s *Service) GenerateGuideNumber(ctx context.Context) (string, error) {
	fields, opaque, err := s.success(ctx, soap.Request{Operation: OpGenerateGuide})
	if err != nil {
		return "", fmt.Errorf("generating guide number: %w", err)
	}

	guide := opaque
	if fields != nil {
		guide = fields.String("NumeroEnvio")
	}
	if guide == "" {
		return "", fmt.Errorf("generating guide number: %w", ErrNoGuideNumber)
	}

	slog.InfoContext(ctx, "guide number generated", "guide_number", guide)
	return guide, nil
}

// RegisterShipment registers shipment under a previously generated guide number.
func (s *Service) RegisterShipment(ctx context.Context, guide string, shipment Shipment) (*Registration, error) {
	slog.InfoContext(ctx, "registering shipment", "guide_number", guide)

	fields, _, err := s.success(ctx, soap.Request{
		Operation: OpRegisterShipment,
		Args: []any{map[string]any{
			"Cliente": s.account.ClientCode,
			"Envio":   s.shipmentData(guide, shipment),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("registering shipment %s: %w", guide, err)
	}

	reg := &Registration{GuideNumber: guide, Code: CodeSuccess}
	if fields != nil {
		if code := fields.String("CodRespuesta"); code != "" {
			reg.Code = code
		}
		reg.Message = fields.String("MensajeRespuesta")
		reg.PDF = fields.String("PDF")
	}
	if reg.PDF == "" {
		slog.WarnContext(ctx, "registration response carries no label", "guide_number", guide)
	}

	slog.InfoContext(ctx, "shipment registered", "guide_number", guide)
	return reg, nil
}

// QuoteTariff asks the service for the rate of a shipment.
func (s *Service) QuoteTariff(ctx context.Context, req TariffRequest) (*Tariff, error) {
	fields, _, err := s.success(ctx, soap.Request{
		Operation: OpTariff,
		Args: []any{map[string]any{
			"ProvinciaOrigen":  req.Origin.Province,
			"CantonOrigen":     req.Origin.Canton,
			"DistritoOrigen":   req.Origin.District,
			"ProvinciaDestino": req.Destination.Province,
			"CantonDestino":    req.Destination.Canton,
			"DistritoDestino":  req.Destination.District,
			"Peso":             strconv.FormatFloat(req.WeightGrams, 'f', -1, 64),
			"Servicio":         s.account.ServiceID,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("quoting tariff: %w", err)
	}
	if fields == nil {
		return nil, errors.New("quoting tariff: response carries no amounts")
	}

	tariff := &Tariff{
		Code:    fields.String("CodRespuesta"),
		Message: fields.String("MensajeRespuesta"),
	}
	for name, dst := range map[string]*Amount{
		"MontoTarifa": &tariff.Amount,
		"Impuesto":    &tariff.Tax,
		"Descuento":   &tariff.Discount,
	} {
		amount, err := ParseAmount(fields.String(name))
		if err != nil {
			return nil, fmt.Errorf("quoting tariff: %s: %w", name, err)
		}
		*dst = amount
	}
	tariff.Total = tariff.Amount.Add(tariff.Tax).Sub(tariff.Discount)

	return tariff, nil
}

// CreateShipment generates a guide number, registers shipment under it and
// quotes its tariff from the postal codes. A failed quote is logged and
// leaves Tariff nil; it never fails the shipment.
func (s *Service) CreateShipment(ctx context.Context, shipment Shipment) (*ShipmentResult, error) {
	guide, err := s.GenerateGuideNumber(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := s.RegisterShipment(ctx, guide, shipment)
	if err != nil {
		return nil, err
	}

	result := &ShipmentResult{Registration: *reg}

	req, err := tariffRequestFor(shipment)
	if err != nil {
		slog.WarnContext(ctx, "tariff not quoted", "guide_number", guide, "error", err)
		return result, nil
	}
	tariff, err := s.QuoteTariff(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "tariff not quoted", "guide_number", guide, "error", err)
		return result, nil
	}
	result.Tariff = tariff

	return result, nil
}
