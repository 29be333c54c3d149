package tiers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	// ErrUnknownTier is returned when a tier name is not present in the catalog
	ErrUnknownTier = errors.New("unknown tier")

	// ErrInvalidCatalog is returned when a catalog file fails validation
	ErrInvalidCatalog = errors.New("invalid tier catalog")
)

// Family identifies a managed disk performance family
type Family string

const (
	StandardHDD Family = "STANDARD_HDD"
	StandardSSD Family = "STANDARD_SSD"
	PremiumSSD  Family = "PREMIUM_SSD"
)

// rank orders families by cost, cheapest first
func (f Family) rank() int {
	switch f {
	case StandardHDD:
		return 0
	case StandardSSD:
		return 1
	case PremiumSSD:
		return 2
	default:
		return -1
	}
}

// prefix is the letter every tier name of the family starts with
func (f Family) prefix() string {
	switch f {
	case StandardHDD:
		return "S"
	case StandardSSD:
		return "E"
	case PremiumSSD:
		return "P"
	default:
		return ""
	}
}

// ParseFamily converts a user supplied family name (case-insensitive) into a Family
func ParseFamily(name string) (Family, error) {
	f := Family(strings.ToUpper(strings.TrimSpace(name)))
	if f.rank() < 0 {
		return "", fmt.Errorf("unsupported disk family %q (allowed: %s, %s)", name, StandardHDD, StandardSSD)
	}
	return f, nil
}

// Tier describes the rated limits of a single performance tier
type Tier struct {
	Name           string `yaml:"name" json:"name"`
	Family         Family `yaml:"-" json:"family"`
	SizeGiB        int    `yaml:"size_gib" json:"size_gib"`
	IOPS           int    `yaml:"iops" json:"iops"`
	ThroughputMBps int    `yaml:"throughput_mbps" json:"throughput_mbps"`
}

// number returns the numeric part of the tier name (P30 -> 30)
func (t Tier) number() (int, error) {
	if len(t.Name) < 2 || t.Name[1] < '0' || t.Name[1] > '9' {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, t.Name)
	}
	n, err := strconv.Atoi(t.Name[1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, t.Name)
	}
	return n, nil
}

// FamilySpec holds the ordered tiers of one family plus its billing traits
type FamilySpec struct {
	Name              Family `yaml:"name"`
	Prefix            string `yaml:"prefix"`
	Product           string `yaml:"product"`
	TransactionBilled bool   `yaml:"transaction_billed"`
	Tiers             []Tier `yaml:"tiers"`
}

type catalogFile struct {
	Families []FamilySpec `yaml:"families"`
}

// Catalog is an immutable lookup of families and tiers
type Catalog struct {
	families []FamilySpec
	byFamily map[Family]int
	byName   map[string]Tier
}

// LoadDefault returns the embedded catalog
func LoadDefault() (*Catalog, error) {
	return Load(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file. An empty path returns the embedded catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier catalog: %w", err)
	}
	return Load(data)
}

// Load parses and validates a YAML catalog
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		byFamily: make(map[Family]int),
		byName:   make(map[string]Tier),
	}

	for _, fam := range file.Families {
		if fam.Name.rank() < 0 {
			return nil, fmt.Errorf("%w: unknown family %q", ErrInvalidCatalog, fam.Name)
		}
		if _, dup := c.byFamily[fam.Name]; dup {
			return nil, fmt.Errorf("%w: family %s listed twice", ErrInvalidCatalog, fam.Name)
		}
		if want := fam.Name.prefix(); fam.Prefix != want {
			return nil, fmt.Errorf("%w: family %s must use prefix %q, got %q", ErrInvalidCatalog, fam.Name, want, fam.Prefix)
		}
		if len(fam.Tiers) == 0 {
			return nil, fmt.Errorf("%w: family %s has no tiers", ErrInvalidCatalog, fam.Name)
		}

		prev := 0
		for i := range fam.Tiers {
			t := &fam.Tiers[i]
			t.Family = fam.Name
			if !strings.HasPrefix(t.Name, fam.Prefix) {
				return nil, fmt.Errorf("%w: tier %s does not start with %q", ErrInvalidCatalog, t.Name, fam.Prefix)
			}
			if _, err := t.number(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
			}
			if t.SizeGiB <= prev {
				return nil, fmt.Errorf("%w: tier %s size %d is not ascending", ErrInvalidCatalog, t.Name, t.SizeGiB)
			}
			if t.IOPS <= 0 || t.ThroughputMBps <= 0 {
				return nil, fmt.Errorf("%w: tier %s has non-positive limits", ErrInvalidCatalog, t.Name)
			}
			prev = t.SizeGiB
			c.byName[t.Name] = *t
		}

		c.byFamily[fam.Name] = len(c.families)
		c.families = append(c.families, fam)
	}

	for _, f := range []Family{StandardHDD, StandardSSD, PremiumSSD} {
		if _, ok := c.byFamily[f]; !ok {
			return nil, fmt.Errorf("%w: family %s missing", ErrInvalidCatalog, f)
		}
	}

	return c, nil
}

// Tier looks up a tier by name
func (c *Catalog) Tier(name string) (Tier, error) {
	t, ok := c.byName[strings.ToUpper(name)]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
	return t, nil
}

// Family returns the tiers and billing traits of a family
func (c *Catalog) Family(f Family) (FamilySpec, bool) {
	i, ok := c.byFamily[f]
	if !ok {
		return FamilySpec{}, false
	}
	return c.families[i], true
}

// Families returns all families ordered cheapest first
func (c *Catalog) Families() []FamilySpec {
	out := make([]FamilySpec, 0, len(c.families))
	for _, f := range []Family{StandardHDD, StandardSSD, PremiumSSD} {
		if fam, ok := c.Family(f); ok {
			out = append(out, fam)
		}
	}
	return out
}
