package service

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"mccall/internal/modules/routine/domain"
	routineout "mccall/internal/modules/routine/port/out"
	apperrors "mccall/internal/platform/errors"
	"mccall/internal/platform/id"
	"mccall/internal/platform/slug"
)

type RoutineService struct {
	idGen id.Generator
	store routineout.RoutineStore
}

func NewRoutineService(idGen id.Generator, store routineout.RoutineStore) *RoutineService {
	return &RoutineService{idGen: idGen, store: store}
}

func (s *RoutineService) List(ctx context.Context) ([]domain.Routine, error) {
	return s.store.Load(ctx)
}

func (s *RoutineService) Get(ctx context.Context, routineID string) (domain.Routine, error) {
	routines, err := s.store.Load(ctx)
	if err != nil {
		return domain.Routine{}, err
	}
	for _, routine := range routines {
		if routine.ID == routineID {
			return routine, nil
		}
	}
	return domain.Routine{}, fmt.Errorf("%w: routine %q", apperrors.ErrNotFound, routineID)
}

// Import decodes a single YAML routine, fills missing ids, validates it and
// upserts it by id.
func (s *RoutineService) Import(ctx context.Context, raw []byte) (domain.Routine, error) {
	routine := domain.Routine{}
	if err := yaml.Unmarshal(raw, &routine); err != nil {
		return domain.Routine{}, fmt.Errorf("%w: decode routine: %v", apperrors.ErrInvalidInput, err)
	}
	if strings.TrimSpace(routine.Name) == "" {
		return domain.Routine{}, fmt.Errorf("%w: routine name is required", apperrors.ErrInvalidInput)
	}
	if routine.ID == "" {
		routine.ID = s.idGen.New()
	}
	seen := map[string]bool{}
	for i := range routine.Steps {
		step := &routine.Steps[i]
		if step.ID == "" {
			step.ID = fmt.Sprintf("%s-%d", slug.Make(step.Label), i+1)
		}
		if seen[step.ID] {
			return domain.Routine{}, fmt.Errorf("%w: duplicate step id %q", apperrors.ErrInvalidInput, step.ID)
		}
		seen[step.ID] = true
	}
	routine = routine.Normalize()
	if err := routine.Validate(); err != nil {
		return domain.Routine{}, err
	}

	routines, err := s.store.Load(ctx)
	if err != nil {
		return domain.Routine{}, err
	}
	replaced := false
	for i := range routines {
		if routines[i].ID == routine.ID {
			routines[i] = routine
			replaced = true
		}
	}
	if !replaced {
		routines = append(routines, routine)
	}
	if err := s.store.Save(ctx, routines); err != nil {
		return domain.Routine{}, err
	}
	return routine, nil
}
