package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disksift/internal/azure"
	"disksift/internal/config"
	"disksift/internal/store"
)

func runClear(t *testing.T, args ...string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults()

	cmd := NewCacheCmd()
	clearCmd, _, err := cmd.Find([]string{"clear"})
	require.NoError(t, err)
	require.NoError(t, clearCmd.Flags().Parse(args))
	require.NoError(t, config.BindFlags(clearCmd))

	buf := new(bytes.Buffer)
	clearCmd.SetOut(buf)
	require.NoError(t, clearCmd.RunE(clearCmd, nil))
	return buf.String()
}

func TestClearPriceCache(t *testing.T) {
	dir := t.TempDir()
	prices := filepath.Join(dir, "prices.json")
	require.NoError(t, os.WriteFile(prices, []byte("{}"), 0644))

	snapshots := store.New(filepath.Join(dir, "data"))
	require.NoError(t, snapshots.SaveDisks([]azure.Disk{{ID: "d1"}}))

	out := runClear(t, "--price-cache-file", prices, "--data-dir", filepath.Join(dir, "data"))
	assert.Contains(t, out, "Removed "+prices)
	assert.NoFileExists(t, prices)
	assert.FileExists(t, snapshots.DisksPath())
}

func TestClearAll(t *testing.T) {
	dir := t.TempDir()
	prices := filepath.Join(dir, "prices.json")
	snapshots := store.New(filepath.Join(dir, "data"))
	require.NoError(t, snapshots.SaveDisks([]azure.Disk{{ID: "d1"}}))
	require.NoError(t, snapshots.SaveUsage(map[string]azure.Usage{"d1": {DiskID: "d1"}}))

	runClear(t, "--all", "--price-cache-file", prices, "--data-dir", filepath.Join(dir, "data"))
	assert.NoFileExists(t, snapshots.DisksPath())
	assert.NoFileExists(t, snapshots.UsagePath())
}
