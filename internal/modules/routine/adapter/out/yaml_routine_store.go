package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mccall/internal/modules/routine/domain"
	routineout "mccall/internal/modules/routine/port/out"
)

type YAMLRoutineStore struct {
	path string
}

type routineFile struct {
	Routines []domain.Routine `yaml:"routines"`
}

func NewYAMLRoutineStore(path string) routineout.RoutineStore {
	return &YAMLRoutineStore{path: path}
}

// Load reads every routine. A missing file is seeded with the default routine.
func (s *YAMLRoutineStore) Load(ctx context.Context) ([]domain.Routine, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read routines: %w", err)
		}
		seed := []domain.Routine{domain.DefaultRoutine()}
		if err := s.Save(ctx, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	file := routineFile{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode routines: %w", err)
	}
	routines := make([]domain.Routine, 0, len(file.Routines))
	for _, routine := range file.Routines {
		routines = append(routines, routine.Normalize())
	}
	return routines, nil
}

func (s *YAMLRoutineStore) Save(_ context.Context, routines []domain.Routine) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create routines dir: %w", err)
	}
	payload, err := yaml.Marshal(routineFile{Routines: routines})
	if err != nil {
		return fmt.Errorf("marshal routines: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write routines: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace routines: %w", err)
	}
	return nil
}
