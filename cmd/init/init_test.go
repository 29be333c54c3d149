package init

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func runInit(args ...string) (string, error) {
	cmd := NewInitCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := runInit("config", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	for _, section := range []string{"azure", "app", "analyze", "tiers", "pricing"} {
		assert.Contains(t, parsed, section)
	}
	app := parsed["app"].(map[string]interface{})
	assert.Equal(t, 8, app["max_workers"])

	_, err = runInit("config", "--output", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))
	_, err = runInit("config", "--output", path, "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "edited", string(data))
}
