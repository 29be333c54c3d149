package analysis

import (
	"errors"

	"disksift/internal/azure"
	"disksift/internal/azure/pricing"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/logging"
	"disksift/internal/tiers"
)

// Skip records a disk that was left out of the report
type Skip struct {
	DiskID string `json:"disk_id"`
	SKU    string `json:"sku"`
	Reason string `json:"reason"`
}

// Candidate is a classified disk with its recommendation, before pricing
type Candidate struct {
	Disk        azure.Disk
	Usage       azure.Usage
	SKU         tiers.SKU
	Current     tiers.Tier
	Recommended tiers.Tier
}

// Changed reports whether the recommendation differs from the current tier
func (c Candidate) Changed() bool {
	return c.Current.Name != c.Recommended.Name
}

// Plan joins disks with their usage, classifies each disk and picks the cheapest tier that
// still covers its peaks without going below floor. Disks with an unsupported SKU or without
// usage are skipped.
func Plan(catalog *tiers.Catalog, disks []azure.Disk, usage map[string]azure.Usage, floor tiers.Family) ([]Candidate, []Skip) {
	var (
		candidates []Candidate
		skipped    []Skip
	)
	for _, d := range disks {
		sku, err := tiers.ParseSKU(d.SKU)
		if err != nil {
			reason := err.Error()
			if errors.Is(err, tiers.ErrUnsupportedSKU) {
				reason = "unsupported SKU " + d.SKU
			}
			logging.DiskSkipped(d.ID, reason)
			skipped = append(skipped, Skip{DiskID: d.ID, SKU: d.SKU, Reason: reason})
			continue
		}

		current, err := catalog.Classify(d.SizeGiB, d.SKU)
		if err != nil {
			logging.DiskSkipped(d.ID, err.Error())
			skipped = append(skipped, Skip{DiskID: d.ID, SKU: d.SKU, Reason: err.Error()})
			continue
		}

		u, ok := usage[d.ID]
		if !ok {
			logging.DiskSkipped(d.ID, "no usage data")
			skipped = append(skipped, Skip{DiskID: d.ID, SKU: d.SKU, Reason: "no usage data"})
			continue
		}
		u.DiskID = d.ID
		recommended := catalog.RecommendLower(current, u.PeakThroughputMBps, u.PeakIOPS, tiers.Floor(sku, floor))

		candidates = append(candidates, Candidate{
			Disk:        d,
			Usage:       u,
			SKU:         sku,
			Current:     current,
			Recommended: recommended,
		})
	}
	return candidates, skipped
}

// priceKey builds the retail price key of a tier for a disk location and redundancy
func priceKey(catalog *tiers.Catalog, t tiers.Tier, location, redundancy string) models.PriceKey {
	billed := false
	if fam, ok := catalog.Family(t.Family); ok {
		billed = fam.TransactionBilled
	}
	return models.PriceKey{
		Tier:              t.Name,
		Location:          location,
		Redundancy:        redundancy,
		TransactionBilled: billed,
	}
}

// PriceKeys lists the distinct price keys of the current and recommended tiers
func PriceKeys(catalog *tiers.Catalog, candidates []Candidate) []models.PriceKey {
	keys := make([]models.PriceKey, 0, len(candidates)*2)
	for _, c := range candidates {
		keys = append(keys,
			priceKey(catalog, c.Current, c.Disk.Location, c.SKU.Redundancy),
			priceKey(catalog, c.Recommended, c.Disk.Location, c.SKU.Redundancy),
		)
	}
	return pricing.Unique(keys)
}
