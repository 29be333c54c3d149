package tiers

import "fmt"

// minHDDTier is the smallest tier number sold in the standard HDD family
const minHDDTier = 4

// Satisfies reports whether the tier's rated limits cover the observed peaks
func (t Tier) Satisfies(throughputMBps, iops float64) bool {
	return throughputMBps <= float64(t.ThroughputMBps) && iops <= float64(t.IOPS)
}

// Floor returns the cheapest family a disk of this SKU may move to.
// ZRS disks cannot go to standard HDD, which is LRS only.
func Floor(sku SKU, requested Family) Family {
	if sku.Redundancy == ZRS && requested.rank() < StandardSSD.rank() {
		return StandardSSD
	}
	return requested
}

// Equivalent returns the tier with the same number in a lower family (P30 -> E30, S30).
// HDD has nothing below S4, so smaller numbers are raised to 4.
func (c *Catalog) Equivalent(current Tier, family Family) (Tier, error) {
	n, err := current.number()
	if err != nil {
		return Tier{}, err
	}
	fam, ok := c.Family(family)
	if !ok {
		return Tier{}, fmt.Errorf("%w: family %s", ErrUnknownTier, family)
	}
	if family == StandardHDD && n < minHDDTier {
		n = minHDDTier
	}
	return c.Tier(fmt.Sprintf("%s%d", fam.Prefix, n))
}

// RecommendLower searches the families cheaper than the current tier's, cheapest first,
// and returns the first equivalent tier that still covers the observed peaks.
// Families cheaper than floor are skipped. The current tier is returned when nothing qualifies.
func (c *Catalog) RecommendLower(current Tier, peakThroughputMBps, peakIOPS float64, floor Family) Tier {
	if floor.rank() < 0 {
		floor = StandardHDD
	}
	for _, fam := range c.Families() {
		if fam.Name.rank() >= current.Family.rank() {
			break
		}
		if fam.Name.rank() < floor.rank() {
			continue
		}
		candidate, err := c.Equivalent(current, fam.Name)
		if err != nil {
			continue
		}
		if candidate.Satisfies(peakThroughputMBps, peakIOPS) {
			return candidate
		}
	}
	return current
}
