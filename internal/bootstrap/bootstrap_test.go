package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sounddomain "mccall/internal/modules/sound/domain"
	"mccall/internal/platform/config"
	"mccall/internal/platform/logging"
)

func TestNewWiresDefaultRoutineAndSilentSound(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	app, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	ctx := context.Background()

	routines, err := app.RoutineCLI.List(ctx)
	require.NoError(t, err)
	require.Len(t, routines, 1)
	assert.Equal(t, "focus", routines[0].ID)

	out := app.SoundCLI.Test(ctx, false)
	assert.False(t, out.Played)
	assert.Equal(t, sounddomain.ReasonPlaybackDisabled, out.Reason)

	update, err := app.SessionCLI.Start(ctx, "focus")
	require.NoError(t, err)
	assert.True(t, update.State.Running)

	update, err = app.SessionCLI.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, update.State.Running)

	recovered, err := app.SessionCLI.Recover(ctx)
	require.NoError(t, err)
	assert.False(t, recovered.Recovered)

	count, err := app.SessionCLI.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
