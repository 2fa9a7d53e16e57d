package correos

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/correos-link/internal/soap"
)

// itemElement is the element name of catalog entries.
const itemElement = "ccrItemGeografico"

// Place is a catalog entry: a province, canton or district.
type Place struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Canton is a canton with its districts.
type Canton struct {
	Place
	Districts []Place `json:"districts"`
}

// Provinces lists all provinces.
func (s *Service) Provinces(ctx context.Context) ([]Place, error) {
	return s.places(ctx, soap.Request{Operation: OpProvinces}, "Provincias")
}

// Cantons lists the cantons of a province.
func (s *Service) Cantons(ctx context.Context, province string) ([]Place, error) {
	return s.places(ctx, soap.Request{Operation: OpCantons, Args: []any{province}}, "Cantones")
}

// Districts lists the districts of a canton.
func (s *Service) Districts(ctx context.Context, province, canton string) ([]Place, error) {
	return s.places(ctx, soap.Request{Operation: OpDistricts, Args: []any{province, canton}}, "Distritos")
}

// ProvinceTree lists the cantons of a province with their districts. District
// lookups run concurrently, bounded and paced by the catalog settings.
func (s *Service) ProvinceTree(ctx context.Context, province string) ([]Canton, error) {
	cantons, err := s.Cantons(ctx, province)
	if err != nil {
		return nil, err
	}

	tree := make([]Canton, len(cantons))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, canton := range cantons {
		tree[i].Place = canton
		g.Go(func() error {
			if err := s.limiter.Wait(gCtx); err != nil {
				return err
			}
			districts, err := s.Districts(gCtx, province, canton.Code)
			if err != nil {
				return fmt.Errorf("canton %s: %w", canton.Code, err)
			}
			tree[i].Districts = districts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *Service) places(ctx context.Context, req soap.Request, container string) ([]Place, error) {
	fields, _, err := s.success(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", container, err)
	}

	list := fields.Fields(container)
	if list == nil {
		list = findItems(fields)
	}

	var places []Place
	for _, item := range list.List(itemElement) {
		entry, ok := item.(soap.Fields)
		if !ok {
			continue
		}
		places = append(places, Place{Code: entry.String("Codigo"), Name: entry.String("Descripcion")})
	}
	return places, nil
}

// findItems returns the first child that holds catalog entries.
func findItems(fields soap.Fields) soap.Fields {
	if _, ok := fields[itemElement]; ok {
		return fields
	}
	for _, v := range fields {
		if child, ok := v.(soap.Fields); ok {
			if _, ok := child[itemElement]; ok {
				return child
			}
		}
	}
	return nil
}
