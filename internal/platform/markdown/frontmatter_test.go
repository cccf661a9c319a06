package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteMeta struct {
	ID     string `yaml:"id"`
	Cycles int    `yaml:"cycles"`
}

func TestRenderThenDecodeFrontmatter(t *testing.T) {
	t.Parallel()

	rendered, err := RenderFrontmatter(noteMeta{ID: "session_1", Cycles: 3}, "# Session\n")
	require.NoError(t, err)
	assert.Contains(t, rendered, "id: session_1\n")

	meta := noteMeta{}
	body, err := DecodeFrontmatter(rendered, &meta)
	require.NoError(t, err)
	assert.Equal(t, noteMeta{ID: "session_1", Cycles: 3}, meta)
	assert.Equal(t, "\n# Session\n", body)
}

func TestSplitFrontmatterWithoutHeader(t *testing.T) {
	t.Parallel()

	meta, body, err := SplitFrontmatter("plain body\n")
	require.NoError(t, err)
	assert.Empty(t, meta)
	assert.Equal(t, "plain body\n", body)
}

func TestDecodeFrontmatterMissingClose(t *testing.T) {
	t.Parallel()

	_, err := DecodeFrontmatter("---\nid: x\n", &noteMeta{})
	require.Error(t, err)
}
