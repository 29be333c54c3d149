package azure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"golang.org/x/sync/errgroup"

	"disksift/internal/azure/ratelimit"
	"disksift/internal/config"
	"disksift/internal/logging"
)

// DiskLister lists the managed disks of one subscription
type DiskLister interface {
	ListDisks(ctx context.Context, subscriptionID string) ([]Disk, error)
}

// ARMDiskLister lists managed disks through the compute API
type ARMDiskLister struct {
	cred    azcore.TokenCredential
	limiter *ratelimit.Limiter
}

// NewDiskLister creates a disk lister using cred for every subscription
func NewDiskLister(cred azcore.TokenCredential) *ARMDiskLister {
	return &ARMDiskLister{
		cred:    cred,
		limiter: ratelimit.Get("management", config.ManagementRateLimitConfig),
	}
}

// ListDisks returns every managed disk in the subscription
func (l *ARMDiskLister) ListDisks(ctx context.Context, subscriptionID string) ([]Disk, error) {
	client, err := armcompute.NewDisksClient(subscriptionID, l.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create disks client: %w", err)
	}

	var disks []Disk
	pager := client.NewListPager(nil)
	for pager.More() {
		var page armcompute.DisksClientListResponse
		err := l.limiter.Execute(ctx, "ListDisks", func(ctx context.Context) error {
			var err error
			page, err = pager.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list disks in subscription %s: %w", subscriptionID, err)
		}
		for _, d := range page.Value {
			disk, err := diskFromARM(d)
			if err != nil {
				logging.Warn("Ignoring disk with unparsable id", map[string]interface{}{
					"subscription_id": subscriptionID,
					"error":           err.Error(),
				})
				continue
			}
			disks = append(disks, disk)
		}
	}
	return disks, nil
}

func diskFromARM(d *armcompute.Disk) (Disk, error) {
	if d == nil {
		return Disk{}, fmt.Errorf("nil disk")
	}
	id := deref(d.ID)
	rid, err := ParseResourceID(id)
	if err != nil {
		return Disk{}, err
	}

	disk := Disk{
		ID:             id,
		Name:           deref(d.Name),
		SubscriptionID: rid.SubscriptionID,
		ResourceGroup:  rid.ResourceGroup,
		Location:       deref(d.Location),
		ManagedBy:      deref(d.ManagedBy),
	}
	for _, m := range d.ManagedByExtended {
		if m != nil {
			disk.ManagedByExtended = append(disk.ManagedByExtended, *m)
		}
	}
	if d.SKU != nil && d.SKU.Name != nil {
		disk.SKU = string(*d.SKU.Name)
	}
	if len(d.Tags) > 0 {
		disk.Tags = make(map[string]string, len(d.Tags))
		for k, v := range d.Tags {
			disk.Tags[k] = deref(v)
		}
	}
	if p := d.Properties; p != nil {
		disk.SizeGiB = int(deref(p.DiskSizeGB))
		disk.ProvisionedIOPS = deref(p.DiskIOPSReadWrite)
		disk.ProvisionedMBps = deref(p.DiskMBpsReadWrite)
		disk.Tier = deref(p.Tier)
		if p.DiskState != nil {
			disk.DiskState = string(*p.DiskState)
		}
	}
	return disk, nil
}

// ListAllDisks lists the disks of every subscription with at most maxConcurrency subscriptions
// in flight. The result is sorted by disk id. The first failing subscription aborts the listing.
func ListAllDisks(ctx context.Context, lister DiskLister, subs []Subscription, maxConcurrency int) ([]Disk, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	var (
		mu  sync.Mutex
		all []Disk
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			disks, err := lister.ListDisks(gctx, sub.ID)
			if err != nil {
				return err
			}
			logging.Debug("Listed disks", map[string]interface{}{
				"subscription_id":   sub.ID,
				"subscription_name": sub.Name,
				"disks":             len(disks),
			})
			mu.Lock()
			all = append(all, disks...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}
