package tiers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedSKU is returned for disk SKUs that have no size-based tier table
var ErrUnsupportedSKU = errors.New("unsupported disk SKU")

// Redundancy values as they appear in SKU and price names
const (
	LRS = "LRS"
	ZRS = "ZRS"
)

// SKU is a parsed managed disk SKU name such as Premium_LRS
type SKU struct {
	Name       string `json:"name"`
	Family     Family `json:"family"`
	Redundancy string `json:"redundancy"`
}

var skuFamilies = map[string]Family{
	"standard":    StandardHDD,
	"standardssd": StandardSSD,
	"premium":     PremiumSSD,
}

var skuBases = map[Family]string{
	StandardHDD: "Standard",
	StandardSSD: "StandardSSD",
	PremiumSSD:  "Premium",
}

// SKUName returns the SKU name of a family with the given redundancy, such as StandardSSD_ZRS
func SKUName(family Family, redundancy string) string {
	return skuBases[family] + "_" + redundancy
}

// ParseSKU maps an Azure disk SKU name to its family and redundancy
func ParseSKU(name string) (SKU, error) {
	base, redundancy, ok := strings.Cut(name, "_")
	if !ok {
		return SKU{}, fmt.Errorf("%w: %s", ErrUnsupportedSKU, name)
	}
	family, known := skuFamilies[strings.ToLower(base)]
	redundancy = strings.ToUpper(redundancy)
	if !known || (redundancy != LRS && redundancy != ZRS) {
		return SKU{}, fmt.Errorf("%w: %s", ErrUnsupportedSKU, name)
	}
	// Standard HDD is only sold as LRS.
	if family == StandardHDD && redundancy != LRS {
		return SKU{}, fmt.Errorf("%w: %s", ErrUnsupportedSKU, name)
	}
	return SKU{Name: name, Family: family, Redundancy: redundancy}, nil
}

// Classify returns the tier billed for a disk of the given size and SKU.
// The size is rounded up to the next tier and clamped to the family table bounds.
func (c *Catalog) Classify(sizeGiB int, skuName string) (Tier, error) {
	sku, err := ParseSKU(skuName)
	if err != nil {
		return Tier{}, err
	}
	fam, ok := c.Family(sku.Family)
	if !ok {
		return Tier{}, fmt.Errorf("%w: %s", ErrUnsupportedSKU, skuName)
	}
	return ClassifySize(fam.Tiers, sizeGiB), nil
}

// ClassifySize picks the smallest tier whose size covers sizeGiB from an ascending table.
// Requests outside the table are clamped to its first or last entry.
func ClassifySize(table []Tier, sizeGiB int) Tier {
	for _, t := range table {
		if sizeGiB <= t.SizeGiB {
			return t
		}
	}
	return table[len(table)-1]
}
