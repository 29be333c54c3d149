package azure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/ini.v1"
)

const defaultCloud = "AzureCloud"

// ErrNoCLISubscription is returned when the Azure CLI has no active subscription
var ErrNoCLISubscription = errors.New("no active Azure CLI subscription")

// CLIProfile is one cloud configured in the Azure CLI and the subscription selected for it
type CLIProfile struct {
	Cloud          string
	SubscriptionID string
	Active         bool
}

// CLIConfigDir returns the Azure CLI configuration directory
func CLIConfigDir() string {
	if dir := os.Getenv("AZURE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".azure"
	}
	return filepath.Join(home, ".azure")
}

// activeCloud reads the cloud selected by `az cloud set` from <dir>/config
func activeCloud(dir string) (string, error) {
	path := filepath.Join(dir, "config")
	if _, err := os.Stat(path); err != nil {
		return defaultCloud, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to load Azure CLI config: %w", err)
	}
	return cfg.Section("cloud").Key("name").MustString(defaultCloud), nil
}

// ListCLIProfiles returns the clouds of <dir>/clouds.config with their selected subscription
func ListCLIProfiles(dir string) ([]CLIProfile, error) {
	active, err := activeCloud(dir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "clouds.config")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load Azure CLI clouds config: %w", err)
	}

	var profiles []CLIProfile
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		profiles = append(profiles, CLIProfile{
			Cloud:          section.Name(),
			SubscriptionID: section.Key("subscription").String(),
			Active:         section.Name() == active,
		})
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Cloud < profiles[j].Cloud })
	return profiles, nil
}

// ActiveCLISubscription returns the subscription id the Azure CLI currently uses
func ActiveCLISubscription(dir string) (string, error) {
	profiles, err := ListCLIProfiles(dir)
	if err != nil {
		return "", err
	}
	for _, p := range profiles {
		if p.Active && p.SubscriptionID != "" {
			return p.SubscriptionID, nil
		}
	}
	return "", ErrNoCLISubscription
}
