package analysis

import (
	"errors"
	"fmt"
	"math"

	"disksift/internal/azure/pricing"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/tiers"
)

// ErrInvalidDiscount is returned for a pay-as-you-go discount outside [0, 1]
var ErrInvalidDiscount = errors.New("invalid pay-as-you-go discount")

// Row is one disk of the recommendation report
type Row struct {
	DiskID         string `json:"disk_id"`
	DiskName       string `json:"disk_name"`
	SubscriptionID string `json:"subscription_id"`
	ResourceGroup  string `json:"resource_group"`
	Location       string `json:"location"`
	DiskState      string `json:"disk_state"`
	ManagedBy      string `json:"managed_by,omitempty"`
	SizeGiB        int    `json:"size_gib"`
	Redundancy     string `json:"redundancy"`

	CurrentSKU                string `json:"current_sku"`
	CurrentTier               string `json:"current_tier"`
	CurrentIOPS               int    `json:"current_iops"`
	CurrentThroughputMBps     int    `json:"current_throughput_mbps"`
	RecommendedSKU            string `json:"recommended_sku"`
	RecommendedTier           string `json:"recommended_tier"`
	RecommendedIOPS           int    `json:"recommended_iops"`
	RecommendedThroughputMBps int    `json:"recommended_throughput_mbps"`
	Changed                   bool   `json:"changed"`

	PeakIOPS           float64 `json:"peak_iops"`
	PeakThroughputMBps float64 `json:"peak_throughput_mbps"`
	AvgIOPS            float64 `json:"avg_iops"`
	AvgThroughputMBps  float64 `json:"avg_throughput_mbps"`

	CurrentFixed        float64 `json:"current_fixed_pricing"`
	CurrentVariable     float64 `json:"estimated_current_variable_pricing"`
	RecommendedFixed    float64 `json:"recommended_fixed_pricing"`
	RecommendedVariable float64 `json:"estimated_recommended_variable_pricing"`
	PriceMissing        bool    `json:"price_missing"`
	Warning             string  `json:"warning,omitempty"`
}

// costIOPS is the load used for the operations charge: the average when known, else the peak
func costIOPS(c Candidate) float64 {
	if c.Usage.AvgIOPS > 0 {
		return c.Usage.AvgIOPS
	}
	return c.Usage.PeakIOPS
}

// BuildRows prices every candidate with prices keyed by models.PriceKey.String()
func BuildRows(catalog *tiers.Catalog, candidates []Candidate, prices map[string]models.TierPrice) []Row {
	rows := make([]Row, 0, len(candidates))
	for _, c := range candidates {
		cur := prices[priceKey(catalog, c.Current, c.Disk.Location, c.SKU.Redundancy).String()]
		rec := prices[priceKey(catalog, c.Recommended, c.Disk.Location, c.SKU.Redundancy).String()]
		iops := costIOPS(c)

		rows = append(rows, Row{
			DiskID:         c.Disk.ID,
			DiskName:       c.Disk.Name,
			SubscriptionID: c.Disk.SubscriptionID,
			ResourceGroup:  c.Disk.ResourceGroup,
			Location:       c.Disk.Location,
			DiskState:      c.Disk.DiskState,
			ManagedBy:      c.Disk.ManagedBy,
			SizeGiB:        c.Disk.SizeGiB,
			Redundancy:     c.SKU.Redundancy,

			CurrentSKU:                c.SKU.Name,
			CurrentTier:               c.Current.Name,
			CurrentIOPS:               c.Current.IOPS,
			CurrentThroughputMBps:     c.Current.ThroughputMBps,
			RecommendedSKU:            tiers.SKUName(c.Recommended.Family, c.SKU.Redundancy),
			RecommendedTier:           c.Recommended.Name,
			RecommendedIOPS:           c.Recommended.IOPS,
			RecommendedThroughputMBps: c.Recommended.ThroughputMBps,
			Changed:                   c.Changed(),

			PeakIOPS:           c.Usage.PeakIOPS,
			PeakThroughputMBps: c.Usage.PeakThroughputMBps,
			AvgIOPS:            c.Usage.AvgIOPS,
			AvgThroughputMBps:  c.Usage.AvgThroughputMBps,

			CurrentFixed:        cur.FixedMonthly,
			CurrentVariable:     pricing.MonthlyTransactionCost(iops, cur.VariablePer10K),
			RecommendedFixed:    rec.FixedMonthly,
			RecommendedVariable: pricing.MonthlyTransactionCost(iops, rec.VariablePer10K),
			PriceMissing:        cur.Missing || rec.Missing,
			Warning:             c.Usage.Warning,
		})
	}
	return rows
}

// CostLine compares the current and recommended monthly cost of one cost component
type CostLine struct {
	Current     float64 `json:"current"`
	Recommended float64 `json:"recommended"`
	Delta       float64 `json:"delta"`
	// Percent is nil when the current cost is zero
	Percent *float64 `json:"percent"`
}

func newCostLine(current, recommended float64) CostLine {
	line := CostLine{
		Current:     current,
		Recommended: recommended,
		Delta:       round2(recommended - current),
	}
	if current != 0 {
		pct := math.Round(100 * (recommended - current) / current)
		line.Percent = &pct
	}
	return line
}

// PercentString renders the percentage delta, "n/a" when it is undefined
func (l CostLine) PercentString() string {
	if l.Percent == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *l.Percent)
}

// Summary aggregates the monthly costs of a report after the discount
type Summary struct {
	Discount     float64  `json:"payg_discount"`
	Disks        int      `json:"disks"`
	Changed      int      `json:"changed"`
	PriceMissing int      `json:"price_missing"`
	Fixed        CostLine `json:"fixed"`
	Variable     CostLine `json:"variable"`
	Total        CostLine `json:"total"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summarize sums the four cost columns, applies (1 - discount) and rounds each to cents
func Summarize(rows []Row, discount float64) (Summary, error) {
	if discount < 0 || discount > 1 || math.IsNaN(discount) {
		return Summary{}, fmt.Errorf("%w: %v (must be between 0 and 1)", ErrInvalidDiscount, discount)
	}

	var curFixed, curVar, recFixed, recVar float64
	s := Summary{Discount: discount, Disks: len(rows)}
	for _, r := range rows {
		curFixed += r.CurrentFixed
		curVar += r.CurrentVariable
		recFixed += r.RecommendedFixed
		recVar += r.RecommendedVariable
		if r.Changed {
			s.Changed++
		}
		if r.PriceMissing {
			s.PriceMissing++
		}
	}

	factor := 1 - discount
	curFixed, curVar = round2(curFixed*factor), round2(curVar*factor)
	recFixed, recVar = round2(recFixed*factor), round2(recVar*factor)

	s.Fixed = newCostLine(curFixed, recFixed)
	s.Variable = newCostLine(curVar, recVar)
	s.Total = newCostLine(round2(curFixed+curVar), round2(recFixed+recVar))
	return s, nil
}
