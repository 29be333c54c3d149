package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disksift/internal/azure"
)

func TestDisksSnapshot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "data"))

	_, found, err := s.LoadDisks()
	require.NoError(t, err)
	assert.False(t, found)

	disks := []azure.Disk{
		{ID: "/subscriptions/s/disks/a", SKU: "Premium_LRS", SizeGiB: 128, Tags: map[string]string{"env": "dev"}},
		{ID: "/subscriptions/s/disks/b", SKU: "Standard_LRS", SizeGiB: 32},
	}
	require.NoError(t, s.SaveDisks(disks))

	got, found, err := s.LoadDisks()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, disks, got)
}

func TestSubscriptionsSnapshot(t *testing.T) {
	s := New(t.TempDir())

	_, found, err := s.LoadSubscriptions()
	require.NoError(t, err)
	assert.False(t, found)

	subs := []azure.Subscription{{ID: "sub-1", Name: "prod", State: "Enabled"}}
	require.NoError(t, s.SaveSubscriptions(subs))

	got, found, err := s.LoadSubscriptions()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, subs, got)
}

func TestUsageSnapshot(t *testing.T) {
	s := New(t.TempDir())

	usage := map[string]azure.Usage{
		"b": {PeakIOPS: 10, AvgIOPS: 2},
		"a": {PeakThroughputMBps: 1.5, Warning: "metrics unavailable"},
	}
	require.NoError(t, s.SaveUsage(usage))

	got, found, err := s.LoadUsage()
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got["a"].DiskID)
	assert.Equal(t, 1.5, got["a"].PeakThroughputMBps)
	assert.Equal(t, "metrics unavailable", got["a"].Warning)
	assert.Equal(t, 10.0, got["b"].PeakIOPS)
}

func TestCorruptSnapshot(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, os.WriteFile(s.UsagePath(), []byte("[1,2"), 0644))

	_, _, err := s.LoadUsage()
	assert.Error(t, err)
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "disks.json"), New("").DisksPath())
}

func TestClear(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Clear())

	require.NoError(t, s.SaveDisks([]azure.Disk{{ID: "d1"}}))
	require.NoError(t, s.SaveUsage(map[string]azure.Usage{"d1": {DiskID: "d1"}}))
	require.NoError(t, s.SaveSubscriptions([]azure.Subscription{{ID: "sub-1"}}))
	require.NoError(t, s.Clear())
	assert.NoFileExists(t, s.SubscriptionsPath())

	_, found, err := s.LoadDisks()
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = s.LoadUsage()
	require.NoError(t, err)
	assert.False(t, found)
}
