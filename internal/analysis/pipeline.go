package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"disksift/internal/azure"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/logging"
	"disksift/internal/store"
	"disksift/internal/tiers"
)

// Tracker reports progress of a stage
type Tracker interface {
	Increment()
	Finish()
}

// TrackerFactory creates a tracker for a stage of total items
type TrackerFactory func(description string, total int) Tracker

type nopTracker struct{}

func (nopTracker) Increment() {}
func (nopTracker) Finish()    {}

// Pricer prices a set of tier keys
type Pricer interface {
	PriceAll(ctx context.Context, keys []models.PriceKey, maxWorkers int, onDone func()) map[string]models.TierPrice
}

// Sources are the data providers of an analysis run
type Sources struct {
	Subscriptions azure.SubscriptionLister
	Disks         azure.DiskLister
	Metrics       azure.MetricsFetcher
	Prices        Pricer
	// Snapshots is optional; without it nothing is cached between runs
	Snapshots *store.Store
}

// Options control an analysis run
type Options struct {
	// Subscriptions filters the audited subscriptions by id or name; empty means all
	Subscriptions []string
	UseCache      bool
	Floor         tiers.Family
	PAYGDiscount  float64
	MaxWorkers    int
	Progress      TrackerFactory
}

// Result is the outcome of an analysis run
type Result struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Rows        []Row     `json:"rows"`
	Skipped     []Skip    `json:"skipped,omitempty"`
}

// Run executes inventory, metrics, pricing and recommendation and returns the report
func Run(ctx context.Context, catalog *tiers.Catalog, src Sources, opts Options) (*Result, error) {
	if opts.PAYGDiscount < 0 || opts.PAYGDiscount > 1 {
		return nil, fmt.Errorf("%w: %v (must be between 0 and 1)", ErrInvalidDiscount, opts.PAYGDiscount)
	}
	if opts.Progress == nil {
		opts.Progress = func(string, int) Tracker { return nopTracker{} }
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}

	runID := uuid.NewString()
	logging.AnalysisStart(runID, opts.Subscriptions, opts.UseCache)

	disks, inventoryCached, err := loadInventory(ctx, src, opts)
	if err != nil {
		return nil, err
	}

	usage, err := loadUsage(ctx, src, opts, disks, inventoryCached)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logging.StageStart("recommend", len(disks))
	candidates, skipped := Plan(catalog, disks, usage, opts.Floor)
	logging.StageComplete("recommend", len(candidates), time.Since(start))

	keys := PriceKeys(catalog, candidates)
	start = time.Now()
	logging.StageStart("pricing", len(keys))
	tracker := opts.Progress("Fetching prices", len(keys))
	prices := src.Prices.PriceAll(ctx, keys, opts.MaxWorkers, tracker.Increment)
	tracker.Finish()
	logging.StageComplete("pricing", len(prices), time.Since(start))

	rows := BuildRows(catalog, candidates, prices)
	summary, err := Summarize(rows, opts.PAYGDiscount)
	if err != nil {
		return nil, err
	}

	logging.AnalysisComplete(runID, len(rows), summary.Changed)
	return &Result{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
		Rows:        rows,
		Skipped:     skipped,
	}, nil
}

// loadInventory returns the disks to audit. cached reports whether they came from the snapshot.
func loadInventory(ctx context.Context, src Sources, opts Options) (disks []azure.Disk, cached bool, err error) {
	if opts.UseCache && src.Snapshots != nil {
		disks, ok, err := cachedInventory(src.Snapshots, opts.Subscriptions)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return disks, true, nil
		}
	}

	start := time.Now()
	logging.StageStart("inventory", 0)

	subs, err := src.Subscriptions.ListSubscriptions(ctx)
	if err != nil {
		return nil, false, err
	}
	subs, err = azure.FilterSubscriptions(subs, opts.Subscriptions)
	if err != nil {
		return nil, false, err
	}
	if len(subs) == 0 {
		return nil, false, fmt.Errorf("no accessible subscriptions to audit")
	}

	disks, err = azure.ListAllDisks(ctx, src.Disks, subs, opts.MaxWorkers)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list disks: %w", err)
	}
	logging.StageComplete("inventory", len(disks), time.Since(start))

	if src.Snapshots != nil {
		if err := src.Snapshots.SaveDisks(disks); err != nil {
			return nil, false, err
		}
		if err := src.Snapshots.SaveSubscriptions(subs); err != nil {
			return nil, false, err
		}
	}
	return disks, false, nil
}

// cachedInventory returns the snapshot disks of the wanted subscriptions.
// ok is false when there is no snapshot or it does not cover every wanted subscription.
func cachedInventory(snapshots *store.Store, wanted []string) (disks []azure.Disk, ok bool, err error) {
	disks, found, err := snapshots.LoadDisks()
	if err != nil || !found {
		return nil, false, err
	}
	subs, found, err := snapshots.LoadSubscriptions()
	if err != nil {
		return nil, false, err
	}

	switch {
	case found:
		selected, err := azure.FilterSubscriptions(subs, wanted)
		if err != nil {
			logging.Info("Cached inventory does not cover the requested subscriptions, listing again", map[string]interface{}{
				"reason": err.Error(),
			})
			return nil, false, nil
		}
		disks = disksIn(disks, selected)
	case len(wanted) > 0:
		logging.Info("Cached inventory has no subscription list, listing again", map[string]interface{}{
			"path": snapshots.SubscriptionsPath(),
		})
		return nil, false, nil
	}

	logging.Info("Using cached disk inventory", map[string]interface{}{
		"path":  snapshots.DisksPath(),
		"disks": len(disks),
	})
	return disks, true, nil
}

// disksIn keeps the disks that belong to one of subs
func disksIn(disks []azure.Disk, subs []azure.Subscription) []azure.Disk {
	ids := make(map[string]bool, len(subs))
	for _, s := range subs {
		ids[strings.ToLower(s.ID)] = true
	}
	out := make([]azure.Disk, 0, len(disks))
	for _, d := range disks {
		if ids[strings.ToLower(d.SubscriptionID)] {
			out = append(out, d)
		}
	}
	return out
}

// loadUsage measures the disks. Cached usage is only reused on top of a cached inventory,
// and disks missing from it are measured and merged in.
func loadUsage(ctx context.Context, src Sources, opts Options, disks []azure.Disk, inventoryCached bool) (map[string]azure.Usage, error) {
	usage := make(map[string]azure.Usage, len(disks))
	pending := disks

	if opts.UseCache && src.Snapshots != nil {
		if !inventoryCached {
			logging.Info("Inventory was listed again, ignoring cached disk usage", map[string]interface{}{
				"path": src.Snapshots.UsagePath(),
			})
		} else {
			cached, found, err := src.Snapshots.LoadUsage()
			if err != nil {
				return nil, err
			}
			if found {
				usage = cached
				pending = nil
				for _, d := range disks {
					if _, ok := usage[d.ID]; !ok {
						pending = append(pending, d)
					}
				}
				logging.Info("Using cached disk usage", map[string]interface{}{
					"path":     src.Snapshots.UsagePath(),
					"disks":     len(disks) - len(pending),
					"measuring": len(pending),
				})
				if len(pending) == 0 {
					return usage, nil
				}
			}
		}
	}

	start := time.Now()
	logging.StageStart("metrics", len(pending))
	tracker := opts.Progress("Fetching disk metrics", len(pending))
	measured := azure.CollectUsage(ctx, src.Metrics, pending, opts.MaxWorkers, tracker.Increment)
	tracker.Finish()
	logging.StageComplete("metrics", len(measured), time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("metrics collection interrupted: %w", err)
	}

	for id, u := range measured {
		usage[id] = u
	}
	if src.Snapshots != nil {
		if err := src.Snapshots.SaveUsage(usage); err != nil {
			return nil, err
		}
	}
	return usage, nil
}
