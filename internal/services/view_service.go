package services

import (
	"context"
	"fmt"

	"pulse/internal/log"
	"pulse/internal/recipes"
)

// ViewService runs a view's recipe over its cached dataset. Failures stay
// local to the requested view.
type ViewService struct {
	datasets *DatasetService
	registry *recipes.Registry
	sl       *log.StructuredLogger
}

func NewViewService(datasets *DatasetService, registry *recipes.Registry, logger *log.Logger) *ViewService {
	if registry == nil {
		registry = recipes.Default()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ViewService{
		datasets: datasets,
		registry: registry,
		sl:       log.NewStructuredLogger(logger.WithComponent(log.ComponentView)),
	}
}

// Views returns the available views in display order.
func (s *ViewService) Views() []recipes.Recipe {
	return s.registry.All()
}

// Lookup resolves a view without computing it.
func (s *ViewService) Lookup(view string) (recipes.Recipe, error) {
	return s.registry.Lookup(view)
}

// Render loads the view's dataset and applies its recipe.
func (s *ViewService) Render(ctx context.Context, view string) (recipes.Result, error) {
	rc, err := s.registry.Lookup(view)
	if err != nil {
		return recipes.Result{}, err
	}
	t, err := s.datasets.Load(ctx, rc.Dataset)
	if err != nil {
		s.sl.LogError(ctx, "View source failed", err, log.ComponentView, log.OpLoad, log.NewFields().WithView(string(rc.ID), 0))
		return recipes.Result{}, fmt.Errorf("view %s: %w", rc.ID, err)
	}
	res, err := rc.Run(t)
	if err != nil {
		s.sl.LogError(ctx, "View aggregation failed", err, log.ComponentView, log.OpAggregate, log.NewFields().WithView(string(rc.ID), 0))
		return recipes.Result{}, err
	}
	s.sl.LogViewRendered(ctx, string(rc.ID), len(res.Rows))
	return res, nil
}
