package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"disksift/internal/azure"
	"disksift/internal/azure/pricing/models"
	"disksift/internal/azure/ratelimit"
	"disksift/internal/config"
	"disksift/internal/logging"
)

// RetailPricesEndpoint is the public, unauthenticated Azure retail prices API
const RetailPricesEndpoint = "https://prices.azure.com/api/retail/prices"

// maxPages bounds NextPageLink chasing for one query
const maxPages = 50

var diskProducts = []string{
	"Standard HDD Managed Disks",
	"Standard SSD Managed Disks",
	"Premium SSD Managed Disks",
}

// PriceFetcher returns the retail price of one disk tier
type PriceFetcher interface {
	FetchTierPrice(ctx context.Context, key models.PriceKey) (models.TierPrice, error)
}

// RetailClient queries the Azure retail prices API
type RetailClient struct {
	endpoint string
	http     *retryablehttp.Client
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

// NewRetailClient creates a client for endpoint; an empty endpoint uses RetailPricesEndpoint
func NewRetailClient(endpoint string, httpClient *retryablehttp.Client) *RetailClient {
	if endpoint == "" {
		endpoint = RetailPricesEndpoint
	}
	if httpClient == nil {
		httpClient = azure.NewHTTPClient(config.PricingRateLimitConfig.MaxRetries)
	}
	return &RetailClient{
		endpoint: endpoint,
		http:     httpClient,
		limiter:  ratelimit.Get("pricing", config.PricingRateLimitConfig),
		now:      time.Now,
	}
}

// Filter builds the OData filter selecting the managed disk meters of one tier
func Filter(key models.PriceKey) string {
	products := make([]string, len(diskProducts))
	for i, p := range diskProducts {
		products[i] = fmt.Sprintf("productName eq '%s'", p)
	}
	return fmt.Sprintf("armRegionName eq '%s' and (%s) and skuName eq '%s'",
		key.Location, strings.Join(products, " or "), key.SKUName())
}

func (c *RetailClient) firstPageURL(key models.PriceKey) string {
	q := url.Values{}
	q.Set("$filter", Filter(key))
	return c.endpoint + "?" + q.Encode()
}

func (c *RetailClient) getPage(ctx context.Context, pageURL string) (models.RetailPage, error) {
	var page models.RetailPage
	err := c.limiter.Execute(ctx, "RetailPrices", func(ctx context.Context) error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read prices response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &ratelimit.StatusError{API: "retail prices API", StatusCode: resp.StatusCode, Status: resp.Status}
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to parse prices response: %w", err)
		}
		return nil
	})
	return page, err
}

// FetchItems returns every retail item matching the tier's filter, following NextPageLink
func (c *RetailClient) FetchItems(ctx context.Context, key models.PriceKey) ([]models.RetailItem, error) {
	var items []models.RetailItem
	next := c.firstPageURL(key)
	for pages := 0; next != "" && pages < maxPages; pages++ {
		page, err := c.getPage(ctx, next)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		next = page.NextPageLink
	}
	return items, nil
}

// FetchTierPrice returns the fixed monthly price and, for transaction billed families,
// the price per 10,000 operations of one tier. A tier without a matching meter is
// returned with Missing set rather than as an error.
func (c *RetailClient) FetchTierPrice(ctx context.Context, key models.PriceKey) (models.TierPrice, error) {
	items, err := c.FetchItems(ctx, key)
	if err != nil {
		return models.TierPrice{}, fmt.Errorf("failed to fetch prices for %s: %w", key, err)
	}

	price := SelectPrice(key, items)
	price.FetchedAt = c.now().UTC()
	if price.Missing {
		logging.Warn("No retail price found for disk tier", map[string]interface{}{
			"tier":       key.Tier,
			"location":   key.Location,
			"redundancy": key.Redundancy,
			"items":      len(items),
		})
	}
	return price, nil
}

// SelectPrice picks the disk and operations meters of a tier from retail items.
// Only Consumption items count. The disk meter is "<tier> <redundancy> Disk", falling back
// to "<tier> Disks" and then to any monthly meter of the tier.
func SelectPrice(key models.PriceKey, items []models.RetailItem) models.TierPrice {
	price := models.TierPrice{Key: key, Currency: "USD"}

	exact := fmt.Sprintf("%s %s Disk", key.Tier, key.Redundancy)
	legacy := fmt.Sprintf("%s Disks", key.Tier)

	var (
		fixed      *models.RetailItem
		fixedScore int
		variable   *models.RetailItem
	)
	for i := range items {
		item := &items[i]
		if !strings.EqualFold(item.Type, "Consumption") {
			continue
		}
		name := item.MeterName
		switch {
		case strings.HasSuffix(name, "Disk Operations"):
			if variable == nil {
				variable = item
			}
		case strings.EqualFold(name, exact):
			fixed, fixedScore = item, 3
		case strings.EqualFold(name, legacy) && fixedScore < 2:
			fixed, fixedScore = item, 2
		case fixedScore < 1 && item.UnitOfMeasure == "1/Month" && strings.HasPrefix(name, key.Tier+" "):
			fixed, fixedScore = item, 1
		}
	}

	if fixed == nil {
		price.Missing = true
	} else {
		price.FixedMonthly = fixed.RetailPrice
		if fixed.CurrencyCode != "" {
			price.Currency = fixed.CurrencyCode
		}
	}
	if key.TransactionBilled {
		if variable == nil {
			price.Missing = true
		} else {
			price.VariablePer10K = variable.RetailPrice
		}
	}
	return price
}
