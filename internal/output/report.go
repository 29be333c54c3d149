package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"disksift/internal/analysis"
)

const bannerWidth = 150

var disclaimers = []string{
	"DISCLAIMER: The cost estimates are based on the current pricing of the Azure services and are subject to change.",
	"DISCLAIMER: The recommendations do not take availability SLAs into account and may not match reliability requirements.",
	"DISCLAIMER: Implementing these recommendations may not be possible due to other constraints such as VM size, OS, etc.",
}

func bannerLine(text string) string {
	line := "# " + text
	if pad := bannerWidth - 2 - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line + " #"
}

func costLine(label string, l analysis.CostLine) string {
	return fmt.Sprintf("ESTIMATED %s: Current cost: $%.2f / month || After recommendations: $%.2f / month -> $%.2f (%s) / month",
		label, l.Current, l.Recommended, l.Delta, l.PercentString())
}

// PrintSummary writes the bordered cost summary with its disclaimers
func PrintSummary(w io.Writer, s analysis.Summary) {
	border := strings.Repeat("#", bannerWidth)
	warn := color.New(color.FgYellow)
	bold := color.New(color.Bold)

	fmt.Fprintln(w, border)
	for _, d := range disclaimers {
		fmt.Fprintln(w, warn.Sprint(bannerLine(d)))
	}
	fmt.Fprintln(w, bannerLine(fmt.Sprintf("USING %s%% PAY-AS-YOU-GO DISCOUNT", strconv.FormatFloat(s.Discount*100, 'f', -1, 64))))
	fmt.Fprintln(w, bannerLine(fmt.Sprintf("DISKS ANALYZED: %d || RECOMMENDED CHANGES: %d || MISSING PRICES: %d", s.Disks, s.Changed, s.PriceMissing)))
	fmt.Fprintln(w, bold.Sprint(bannerLine(costLine("TOTAL", s.Total))))
	fmt.Fprintln(w, bannerLine(costLine("FIXED", s.Fixed)))
	fmt.Fprintln(w, bannerLine(costLine("VARIABLE", s.Variable)))
	fmt.Fprintln(w, border)
}

// ChangesTable renders the disks whose recommendation differs from their current tier.
// It returns an empty string when nothing changes.
func ChangesTable(rows []analysis.Row) (string, error) {
	data := pterm.TableData{
		{"Disk", "Resource group", "Location", "SKU", "Current", "Recommended", "Peak IOPS", "Peak MB/s", "Monthly delta"},
	}
	for _, r := range rows {
		if !r.Changed {
			continue
		}
		delta := (r.RecommendedFixed + r.RecommendedVariable) - (r.CurrentFixed + r.CurrentVariable)
		data = append(data, []string{
			r.DiskName,
			r.ResourceGroup,
			r.Location,
			r.CurrentSKU + " -> " + r.RecommendedSKU,
			r.CurrentTier,
			r.RecommendedTier,
			fmt.Sprintf("%.0f", r.PeakIOPS),
			fmt.Sprintf("%.1f", r.PeakThroughputMBps),
			fmt.Sprintf("$%.2f", delta),
		})
	}
	if len(data) == 1 {
		return "", nil
	}

	return pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(true).
		WithData(data).
		Srender()
}
