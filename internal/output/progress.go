package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"disksift/internal/analysis"
	"disksift/internal/logging"
)

// ProgressBar tracks a stage of an analysis run on the terminal
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar for total items writing to w
func NewProgressBar(w io.Writer, description string, total int) *ProgressBar {
	return &ProgressBar{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(w)
			}),
		),
	}
}

// Increment advances the bar by one item
func (p *ProgressBar) Increment() {
	if err := p.bar.Add(1); err != nil {
		logging.Debug("Error updating progress bar", map[string]interface{}{"error": err.Error()})
	}
}

// Finish completes the bar
func (p *ProgressBar) Finish() {
	if err := p.bar.Finish(); err != nil {
		logging.Debug("Error finishing progress bar", map[string]interface{}{"error": err.Error()})
	}
}

// Trackers returns a factory of progress bars on stderr. JSON logging gets silent bars
// so that stderr stays machine readable.
func Trackers(jsonLogs bool) analysis.TrackerFactory {
	var w io.Writer = os.Stderr
	if jsonLogs {
		w = io.Discard
	}
	return func(description string, total int) analysis.Tracker {
		return NewProgressBar(w, description, total)
	}
}
