package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"disksift/internal/azure"
	"disksift/internal/logging"
)

const (
	disksFile         = "disks.json"
	usageFile         = "usage.json"
	subscriptionsFile = "subscriptions.json"
)

// snapshot is the on-disk envelope of a cached API result
type snapshot[T any] struct {
	GeneratedAt time.Time `json:"generated_at"`
	Items       T         `json:"items"`
}

// Store reads and writes inventory and usage snapshots in one directory
type Store struct {
	dir string
	now func() time.Time
}

// New returns a store rooted at dir
func New(dir string) *Store {
	if dir == "" {
		dir = "data"
	}
	return &Store{dir: dir, now: time.Now}
}

// DisksPath is the inventory snapshot path
func (s *Store) DisksPath() string { return filepath.Join(s.dir, disksFile) }

// UsagePath is the usage snapshot path
func (s *Store) UsagePath() string { return filepath.Join(s.dir, usageFile) }

// SubscriptionsPath is the path of the subscriptions covered by the inventory snapshot
func (s *Store) SubscriptionsPath() string { return filepath.Join(s.dir, subscriptionsFile) }

// Clear removes both snapshots; missing files are ignored
func (s *Store) Clear() error {
	for _, path := range []string{s.DisksPath(), s.SubscriptionsPath(), s.UsagePath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove snapshot %s: %w", path, err)
		}
	}
	return nil
}

// LoadDisks reads the inventory snapshot. found is false when no snapshot exists.
func (s *Store) LoadDisks() (disks []azure.Disk, found bool, err error) {
	var snap snapshot[[]azure.Disk]
	found, err = s.read(s.DisksPath(), &snap)
	if err != nil || !found {
		return nil, found, err
	}
	return snap.Items, true, nil
}

// SaveDisks writes the inventory snapshot
func (s *Store) SaveDisks(disks []azure.Disk) error {
	return s.write(s.DisksPath(), snapshot[[]azure.Disk]{GeneratedAt: s.now().UTC(), Items: disks})
}

// LoadSubscriptions reads the subscriptions the inventory snapshot was listed from
func (s *Store) LoadSubscriptions() (subs []azure.Subscription, found bool, err error) {
	var snap snapshot[[]azure.Subscription]
	found, err = s.read(s.SubscriptionsPath(), &snap)
	if err != nil || !found {
		return nil, found, err
	}
	return snap.Items, true, nil
}

// SaveSubscriptions writes the subscriptions the inventory snapshot was listed from
func (s *Store) SaveSubscriptions(subs []azure.Subscription) error {
	return s.write(s.SubscriptionsPath(), snapshot[[]azure.Subscription]{GeneratedAt: s.now().UTC(), Items: subs})
}

// LoadUsage reads the usage snapshot keyed by disk id. found is false when no snapshot exists.
func (s *Store) LoadUsage() (usage map[string]azure.Usage, found bool, err error) {
	var snap snapshot[[]azure.Usage]
	found, err = s.read(s.UsagePath(), &snap)
	if err != nil || !found {
		return nil, found, err
	}
	usage = make(map[string]azure.Usage, len(snap.Items))
	for _, u := range snap.Items {
		usage[u.DiskID] = u
	}
	return usage, true, nil
}

// SaveUsage writes the usage snapshot, ordered by disk id
func (s *Store) SaveUsage(usage map[string]azure.Usage) error {
	items := make([]azure.Usage, 0, len(usage))
	for id, u := range usage {
		u.DiskID = id
		items = append(items, u)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DiskID < items[j].DiskID })
	return s.write(s.UsagePath(), snapshot[[]azure.Usage]{GeneratedAt: s.now().UTC(), Items: items})
}

func (s *Store) read(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	logging.Debug("Loaded snapshot", map[string]interface{}{"path": path})
	return true, nil
}

func (s *Store) write(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename snapshot %s: %w", path, err)
	}

	logging.Debug("Saved snapshot", map[string]interface{}{"path": path})
	return nil
}
