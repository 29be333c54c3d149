package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disksift/internal/azure"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/store"
	"disksift/internal/tiers"
)

func testCatalog(t *testing.T) *tiers.Catalog {
	t.Helper()
	c, err := tiers.LoadDefault()
	require.NoError(t, err)
	return c
}

func testDisks() []azure.Disk {
	return []azure.Disk{
		{ID: "disk-a", Name: "a", Location: "westeurope", SKU: "Premium_LRS", SizeGiB: 128, SubscriptionID: "sub-1"},
		{ID: "disk-b", Name: "b", Location: "westeurope", SKU: "Premium_ZRS", SizeGiB: 512, SubscriptionID: "sub-1"},
		{ID: "disk-c", Name: "c", Location: "westeurope", SKU: "UltraSSD_LRS", SizeGiB: 1024, SubscriptionID: "sub-1"},
		{ID: "disk-d", Name: "d", Location: "westeurope", SKU: "StandardSSD_LRS", SizeGiB: 1024, SubscriptionID: "sub-2"},
		{ID: "disk-e", Name: "e", Location: "westeurope", SKU: "Premium_LRS", SizeGiB: 64, SubscriptionID: "sub-2"},
	}
}

func testUsage() map[string]azure.Usage {
	return map[string]azure.Usage{
		"disk-a": {PeakThroughputMBps: 1, PeakIOPS: 10, AvgIOPS: 2},
		"disk-b": {PeakThroughputMBps: 1, PeakIOPS: 10},
		"disk-d": {PeakThroughputMBps: 200, PeakIOPS: 300, AvgIOPS: 100},
	}
}

var testPrices = map[string]models.TierPrice{
	"P10:westeurope:LRS": {FixedMonthly: 20},
	"S10:westeurope:LRS": {FixedMonthly: 5, VariablePer10K: 0.0005},
	"P20:westeurope:ZRS": {FixedMonthly: 80},
	"E20:westeurope:ZRS": {FixedMonthly: 15, VariablePer10K: 0.002},
	"E30:westeurope:LRS": {FixedMonthly: 30, VariablePer10K: 0.002},
	"P6:westeurope:LRS":  {FixedMonthly: 10},
	"S6:westeurope:LRS":  {FixedMonthly: 3, VariablePer10K: 0.0005},
}

func TestPlan(t *testing.T) {
	c := testCatalog(t)
	candidates, skipped := Plan(c, testDisks(), testUsage(), tiers.StandardHDD)

	require.Len(t, skipped, 2)
	assert.Equal(t, "disk-c", skipped[0].DiskID)
	assert.Contains(t, skipped[0].Reason, "unsupported SKU")
	assert.Equal(t, "disk-e", skipped[1].DiskID)
	assert.Equal(t, "no usage data", skipped[1].Reason)

	require.Len(t, candidates, 3)
	got := map[string][2]string{}
	for _, cand := range candidates {
		got[cand.Disk.ID] = [2]string{cand.Current.Name, cand.Recommended.Name}
	}
	assert.Equal(t, [2]string{"P10", "S10"}, got["disk-a"])
	assert.Equal(t, [2]string{"P20", "E20"}, got["disk-b"], "ZRS disks never go to HDD")
	assert.Equal(t, [2]string{"E30", "E30"}, got["disk-d"], "throughput above every cheaper tier")
	assert.NotContains(t, got, "disk-e", "unmeasured disks get no recommendation")
}

func TestPlanWithSSDFloor(t *testing.T) {
	c := testCatalog(t)
	candidates, _ := Plan(c, testDisks()[:1], testUsage(), tiers.StandardSSD)
	require.Len(t, candidates, 1)
	assert.Equal(t, "E10", candidates[0].Recommended.Name)
}

func TestPriceKeys(t *testing.T) {
	c := testCatalog(t)
	candidates, _ := Plan(c, testDisks(), testUsage(), tiers.StandardHDD)
	keys := PriceKeys(c, candidates)

	names := make([]string, len(keys))
	billed := map[string]bool{}
	for i, k := range keys {
		names[i] = k.String()
		billed[k.Tier] = k.TransactionBilled
	}
	assert.ElementsMatch(t, []string{
		"P10:westeurope:LRS", "S10:westeurope:LRS",
		"P20:westeurope:ZRS", "E20:westeurope:ZRS",
		"E30:westeurope:LRS",
	}, names)
	assert.True(t, billed["S10"])
	assert.True(t, billed["E30"])
	assert.False(t, billed["P10"])
}

func TestBuildRows(t *testing.T) {
	c := testCatalog(t)
	candidates, _ := Plan(c, testDisks(), testUsage(), tiers.StandardHDD)
	rows := BuildRows(c, candidates, testPrices)
	require.Len(t, rows, 3)

	a := rows[0]
	assert.Equal(t, "disk-a", a.DiskID)
	assert.Equal(t, "Premium_LRS", a.CurrentSKU)
	assert.Equal(t, "Standard_LRS", a.RecommendedSKU)
	assert.True(t, a.Changed)
	assert.Equal(t, 20.0, a.CurrentFixed)
	assert.Zero(t, a.CurrentVariable)
	assert.Equal(t, 5.0, a.RecommendedFixed)
	// average IOPS (2) drives the operations charge
	assert.InDelta(t, 2.0/10000*720*3600*0.0005, a.RecommendedVariable, 1e-9)

	b := rows[1]
	assert.Equal(t, "StandardSSD_ZRS", b.RecommendedSKU)
	// no average, so the peak (10) is used
	assert.InDelta(t, 10.0/10000*720*3600*0.002, b.RecommendedVariable, 1e-9)

	d := rows[2]
	assert.False(t, d.Changed)
	assert.Equal(t, d.CurrentVariable, d.RecommendedVariable)

	missing := BuildRows(c, candidates[:1], map[string]models.TierPrice{
		"P10:westeurope:LRS": {FixedMonthly: 20},
		"S10:westeurope:LRS": {Missing: true},
	})
	assert.True(t, missing[0].PriceMissing)
	assert.Zero(t, missing[0].RecommendedFixed)
}

func TestSummarize(t *testing.T) {
	rows := []Row{
		{CurrentFixed: 10, RecommendedFixed: 4, RecommendedVariable: 1.2345, Changed: true},
		{CurrentFixed: 20, RecommendedFixed: 20, PriceMissing: true},
	}

	s, err := Summarize(rows, 0.1)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Disks)
	assert.Equal(t, 1, s.Changed)
	assert.Equal(t, 1, s.PriceMissing)

	assert.InDelta(t, 27.0, s.Fixed.Current, 1e-9)
	assert.InDelta(t, 21.6, s.Fixed.Recommended, 1e-9)
	assert.InDelta(t, -5.4, s.Fixed.Delta, 1e-9)
	assert.Equal(t, "-20%", s.Fixed.PercentString())

	assert.Zero(t, s.Variable.Current)
	assert.InDelta(t, 1.11, s.Variable.Recommended, 1e-9)
	assert.Nil(t, s.Variable.Percent)
	assert.Equal(t, "n/a", s.Variable.PercentString())

	assert.InDelta(t, 27.0, s.Total.Current, 1e-9)
	assert.InDelta(t, 22.71, s.Total.Recommended, 1e-9)
	assert.InDelta(t, -4.29, s.Total.Delta, 1e-9)
	assert.Equal(t, "-16%", s.Total.PercentString())
}

func TestSummarizeDiscountBounds(t *testing.T) {
	for _, d := range []float64{-0.01, 1.01} {
		_, err := Summarize(nil, d)
		assert.ErrorIs(t, err, ErrInvalidDiscount)
	}

	s, err := Summarize([]Row{{CurrentFixed: 10, RecommendedFixed: 5}}, 1)
	require.NoError(t, err)
	assert.Zero(t, s.Total.Current)
	assert.Equal(t, "n/a", s.Total.PercentString())

	s, err = Summarize(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Disks)
}

type fakeSubscriptions struct {
	subs []azure.Subscription
	err  error
}

func (f fakeSubscriptions) ListSubscriptions(ctx context.Context) ([]azure.Subscription, error) {
	return f.subs, f.err
}

type fakeDisks struct {
	bySub map[string][]azure.Disk
	err   error
}

func (f fakeDisks) ListDisks(ctx context.Context, subscriptionID string) ([]azure.Disk, error) {
	return f.bySub[subscriptionID], f.err
}

type fakeMetrics struct {
	usage map[string]azure.Usage
	err   error
}

func (f fakeMetrics) FetchUsage(ctx context.Context, diskID string) (azure.Usage, error) {
	if f.err != nil {
		return azure.Usage{}, f.err
	}
	u := f.usage[diskID]
	u.DiskID = diskID
	return u, nil
}

type fakePricer struct{}

func (fakePricer) PriceAll(ctx context.Context, keys []models.PriceKey, maxWorkers int, onDone func()) map[string]models.TierPrice {
	out := make(map[string]models.TierPrice, len(keys))
	for _, k := range keys {
		p, ok := testPrices[k.String()]
		if !ok {
			p = models.TierPrice{Missing: true}
		}
		p.Key = k
		out[k.String()] = p
		if onDone != nil {
			onDone()
		}
	}
	return out
}

type countingTracker struct {
	mu         sync.Mutex
	increments int
	finished   bool
}

func (c *countingTracker) Increment() {
	c.mu.Lock()
	c.increments++
	c.mu.Unlock()
}

func (c *countingTracker) Finish() { c.finished = true }

func liveSources(dir string) Sources {
	disks := testDisks()
	return Sources{
		Subscriptions: fakeSubscriptions{subs: []azure.Subscription{{ID: "sub-1", Name: "one"}, {ID: "sub-2", Name: "two"}}},
		Disks: fakeDisks{bySub: map[string][]azure.Disk{
			"sub-1": disks[:3],
			"sub-2": disks[3:],
		}},
		Metrics:   fakeMetrics{usage: testUsage()},
		Prices:    fakePricer{},
		Snapshots: store.New(dir),
	}
}

func TestRun(t *testing.T) {
	c := testCatalog(t)
	dir := filepath.Join(t.TempDir(), "data")

	trackers := map[string]*countingTracker{}
	opts := Options{
		Floor:        tiers.StandardHDD,
		PAYGDiscount: 0,
		MaxWorkers:   2,
		Progress: func(desc string, total int) Tracker {
			tr := &countingTracker{}
			trackers[desc] = tr
			return tr
		},
	}

	res, err := Run(context.Background(), c, liveSources(dir), opts)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Rows, 4)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, 3, res.Summary.Changed)
	assert.InDelta(t, 20+80+30+10, res.Summary.Fixed.Current, 1e-9)
	assert.InDelta(t, 5+15+30+3, res.Summary.Fixed.Recommended, 1e-9)

	require.Contains(t, trackers, "Fetching disk metrics")
	assert.Equal(t, 5, trackers["Fetching disk metrics"].increments)
	assert.True(t, trackers["Fetching prices"].finished)
	assert.FileExists(t, filepath.Join(dir, "disks.json"))
	assert.FileExists(t, filepath.Join(dir, "usage.json"))

	// A cached run must not touch the APIs
	broken := Sources{
		Subscriptions: fakeSubscriptions{err: errors.New("offline")},
		Disks:         fakeDisks{err: errors.New("offline")},
		Metrics:       fakeMetrics{err: errors.New("offline")},
		Prices:        fakePricer{},
		Snapshots:     store.New(dir),
	}
	opts.UseCache = true
	cached, err := Run(context.Background(), c, broken, opts)
	require.NoError(t, err)
	assert.NotEqual(t, res.RunID, cached.RunID)
	assert.Equal(t, res.Summary, cached.Summary)
}

func rowsByDisk(rows []Row) map[string]Row {
	out := make(map[string]Row, len(rows))
	for _, r := range rows {
		out[r.DiskID] = r
	}
	return out
}

func TestRunCachedInventoryAppliesSubscriptionFilter(t *testing.T) {
	c := testCatalog(t)
	dir := t.TempDir()

	_, err := Run(context.Background(), c, liveSources(dir), Options{MaxWorkers: 2})
	require.NoError(t, err)

	broken := Sources{
		Subscriptions: fakeSubscriptions{err: errors.New("offline")},
		Disks:         fakeDisks{err: errors.New("offline")},
		Metrics:       fakeMetrics{err: errors.New("offline")},
		Prices:        fakePricer{},
		Snapshots:     store.New(dir),
	}

	tests := []struct {
		name  string
		subs  []string
		disks []string
	}{
		{"by id", []string{"sub-1"}, []string{"disk-a", "disk-b"}},
		{"by name", []string{"two"}, []string{"disk-d", "disk-e"}},
		{"no filter", nil, []string{"disk-a", "disk-b", "disk-d", "disk-e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), c, broken, Options{UseCache: true, Subscriptions: tt.subs})
			require.NoError(t, err)
			var ids []string
			for _, r := range res.Rows {
				ids = append(ids, r.DiskID)
			}
			assert.ElementsMatch(t, tt.disks, ids)
		})
	}

	// a subscription outside the snapshot is listed live again
	_, err = Run(context.Background(), c, broken, Options{UseCache: true, Subscriptions: []string{"sub-3"}})
	assert.ErrorContains(t, err, "offline")
}

func TestRunCachedUsageIsNotReusedForFreshInventory(t *testing.T) {
	c := testCatalog(t)
	dir := t.TempDir()

	_, err := Run(context.Background(), c, liveSources(dir), Options{Subscriptions: []string{"sub-1"}})
	require.NoError(t, err)

	snapshots := store.New(dir)
	require.NoError(t, os.Remove(snapshots.DisksPath()))

	trackers := map[string]*countingTracker{}
	res, err := Run(context.Background(), c, liveSources(dir), Options{
		UseCache: true,
		Progress: func(desc string, total int) Tracker {
			tr := &countingTracker{}
			trackers[desc] = tr
			return tr
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, trackers["Fetching disk metrics"].increments)

	d := rowsByDisk(res.Rows)["disk-d"]
	assert.Equal(t, 200.0, d.PeakThroughputMBps)
	assert.Equal(t, "E30", d.RecommendedTier)
}

func TestRunMeasuresDisksMissingFromCachedUsage(t *testing.T) {
	c := testCatalog(t)
	dir := t.TempDir()
	snapshots := store.New(dir)

	require.NoError(t, snapshots.SaveDisks(testDisks()))
	require.NoError(t, snapshots.SaveSubscriptions([]azure.Subscription{{ID: "sub-1"}, {ID: "sub-2"}}))
	require.NoError(t, snapshots.SaveUsage(map[string]azure.Usage{
		"disk-a": {PeakThroughputMBps: 1, PeakIOPS: 10, AvgIOPS: 2},
	}))

	src := liveSources(dir)
	src.Subscriptions = fakeSubscriptions{err: errors.New("offline")}
	src.Disks = fakeDisks{err: errors.New("offline")}

	trackers := map[string]*countingTracker{}
	res, err := Run(context.Background(), c, src, Options{
		UseCache: true,
		Progress: func(desc string, total int) Tracker {
			tr := &countingTracker{}
			trackers[desc] = tr
			return tr
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, trackers["Fetching disk metrics"].increments, "only disks missing from the snapshot are measured")

	rows := rowsByDisk(res.Rows)
	require.Contains(t, rows, "disk-d")
	assert.Equal(t, 200.0, rows["disk-d"].PeakThroughputMBps)
	assert.Equal(t, "E30", rows["disk-d"].RecommendedTier)

	saved, found, err := snapshots.LoadUsage()
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, saved, 5)
}

func TestRunErrors(t *testing.T) {
	c := testCatalog(t)

	_, err := Run(context.Background(), c, liveSources(t.TempDir()), Options{PAYGDiscount: 2})
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	src := liveSources(t.TempDir())
	src.Subscriptions = fakeSubscriptions{err: errors.New("unauthorized")}
	_, err = Run(context.Background(), c, src, Options{})
	assert.ErrorContains(t, err, "unauthorized")

	src = liveSources(t.TempDir())
	_, err = Run(context.Background(), c, src, Options{Subscriptions: []string{"nope"}})
	assert.ErrorContains(t, err, "nope")

	src = liveSources(t.TempDir())
	src.Subscriptions = fakeSubscriptions{}
	_, err = Run(context.Background(), c, src, Options{})
	assert.ErrorContains(t, err, "no accessible subscriptions")
}

func TestRunDegradesOnMetricFailures(t *testing.T) {
	c := testCatalog(t)
	src := liveSources(t.TempDir())
	src.Metrics = fakeMetrics{err: errors.New("throttled forever")}

	res, err := Run(context.Background(), c, src, Options{MaxWorkers: 3})
	require.NoError(t, err)
	for _, r := range res.Rows {
		assert.Zero(t, r.PeakIOPS)
		assert.Contains(t, r.Warning, "throttled forever")
	}
}
