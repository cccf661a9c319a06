package out_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	soundout "mccall/internal/modules/sound/adapter/out"
	"mccall/internal/modules/sound/domain"
)

func TestGRPCPlayerIntegrationChimePlugin(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the chime plugin")
	}
	binPath := buildChimePlugin(t)
	t.Setenv("MCCALL_CHIME_SILENT", "1")
	player := soundout.NewGRPCPlayer(binPath)
	t.Cleanup(player.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	meta, err := player.Metadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "chime", meta.Name)
	assert.Contains(t, meta.Cues, string(domain.CueEnd))

	require.NoError(t, player.Play(ctx, domain.CueStep))
	require.Error(t, player.Play(ctx, domain.Cue("trumpet")))
}

func buildChimePlugin(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "chime-plugin")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/chime")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build chime plugin: %v\n%s", err, string(out))
	}
	return binPath
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}
