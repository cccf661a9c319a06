package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	routineout "mccall/internal/modules/routine/adapter/out"
	"mccall/internal/modules/routine/domain"
	"mccall/internal/modules/routine/dto"
	"mccall/internal/modules/routine/service"
	apperrors "mccall/internal/platform/errors"
)

type fakeID struct{ value string }

func (f fakeID) New() string { return f.value }

const eveningYAML = `
name: Evening stretch
repeat:
  type: count
  value: 2
sound_scheme: endDifferent
steps:
  - label: Hamstrings
    duration_seconds: 45
    check_in:
      mode: gate
  - label: Rest
    duration_seconds: 15
    count_as_break: true
`

func newInteractor(t *testing.T) (*Interactor, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routines.yaml")
	store := routineout.NewYAMLRoutineStore(path)
	svc := service.NewRoutineService(fakeID{value: "routine_evening"}, store)
	return NewInteractor(svc).(*Interactor), path
}

func TestListSeedsDefaultRoutine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, path := newInteractor(t)

	routines, err := uc.ListRoutines(ctx)
	require.NoError(t, err)
	require.Len(t, routines, 1)
	require.Equal(t, "focus", routines[0].ID)
	require.Equal(t, 30*60, routines[0].CycleSeconds)
	require.FileExists(t, path)
}

func TestImportAssignsIDsAndPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := newInteractor(t)

	out, err := uc.ImportRoutine(ctx, dto.ImportInput{Raw: []byte(eveningYAML)})
	require.NoError(t, err)
	require.Equal(t, "routine_evening", out.ID)
	require.Equal(t, "count(2)", out.Repeat)

	routine, err := uc.Resolve(ctx, "routine_evening")
	require.NoError(t, err)
	require.Equal(t, "hamstrings-1", routine.Steps[0].ID)
	require.Equal(t, domain.CheckInGate, routine.Steps[0].CheckIn.Mode)
	require.Equal(t, domain.OverrideInherit, routine.Steps[1].SoundOverride)

	all, err := uc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	detail, err := uc.GetRoutine(ctx, "routine_evening")
	require.NoError(t, err)
	require.Equal(t, "endDifferent", detail.SoundScheme)
	require.Len(t, detail.Steps, 2)
	require.True(t, detail.Steps[1].CountAsBreak)
}

func TestImportRejectsInvalidRoutine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	uc, _ := newInteractor(t)

	_, err := uc.ImportRoutine(ctx, dto.ImportInput{Raw: []byte("name: Empty\nsteps: []\n")})
	require.ErrorIs(t, err, apperrors.ErrInvalidRoutine)

	_, err = uc.ImportRoutine(ctx, dto.ImportInput{Raw: []byte("steps: [{label: a, duration_seconds: 1}]\n")})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolveUnknownRoutine(t *testing.T) {
	t.Parallel()
	uc, _ := newInteractor(t)
	_, err := uc.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
