package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"disksift/internal/azure/ratelimit"
	"disksift/internal/config"
	"disksift/internal/logging"
)

// SubscriptionLister lists the subscriptions visible to the credential
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
}

// ARMSubscriptionLister lists subscriptions through Azure Resource Manager
type ARMSubscriptionLister struct {
	client  *armsubscriptions.Client
	limiter *ratelimit.Limiter
}

// NewSubscriptionLister creates a lister backed by the subscriptions API
func NewSubscriptionLister(cred azcore.TokenCredential) (*ARMSubscriptionLister, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}
	return &ARMSubscriptionLister{
		client:  client,
		limiter: ratelimit.Get("management", config.ManagementRateLimitConfig),
	}, nil
}

// ListSubscriptions returns every enabled subscription, sorted by name
func (l *ARMSubscriptionLister) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	logging.Debug("Listing Azure subscriptions", nil)

	var subs []Subscription
	pager := l.client.NewListPager(nil)
	for pager.More() {
		var page armsubscriptions.ClientListResponse
		err := l.limiter.Execute(ctx, "ListSubscriptions", func(ctx context.Context) error {
			var err error
			page, err = pager.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}
		for _, s := range page.Value {
			sub := subscriptionFromARM(s)
			if sub.ID == "" {
				continue
			}
			if sub.State != "" && !strings.EqualFold(sub.State, string(armsubscriptions.SubscriptionStateEnabled)) {
				logging.Debug("Skipping subscription that is not enabled", map[string]interface{}{
					"subscription_id": sub.ID,
					"state":           sub.State,
				})
				continue
			}
			subs = append(subs, sub)
		}
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	return subs, nil
}

func subscriptionFromARM(s *armsubscriptions.Subscription) Subscription {
	if s == nil {
		return Subscription{}
	}
	sub := Subscription{
		ID:   deref(s.SubscriptionID),
		Name: deref(s.DisplayName),
	}
	if s.State != nil {
		sub.State = string(*s.State)
	}
	return sub
}

// FilterSubscriptions keeps the subscriptions whose id or name is in wanted.
// An empty wanted list keeps everything. Unknown entries are reported as an error.
func FilterSubscriptions(all []Subscription, wanted []string) ([]Subscription, error) {
	if len(wanted) == 0 {
		return all, nil
	}

	byKey := make(map[string]Subscription, len(all)*2)
	for _, s := range all {
		byKey[strings.ToLower(s.ID)] = s
		byKey[strings.ToLower(s.Name)] = s
	}

	seen := make(map[string]bool)
	var (
		out     []Subscription
		missing []string
	)
	for _, w := range wanted {
		s, ok := byKey[strings.ToLower(strings.TrimSpace(w))]
		if !ok {
			missing = append(missing, w)
			continue
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("subscriptions not found or not accessible: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
