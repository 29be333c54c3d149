package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"

	"disksift/internal/azure/ratelimit"
	"disksift/internal/config"
	"disksift/internal/logging"
	"disksift/internal/worker"
)

const (
	metricsAPIVersion = "2018-01-01"
	bytesPerMiB       = 1024 * 1024

	metricReadBytes  = "Composite Disk Read Bytes/sec"
	metricReadOps    = "Composite Disk Read Operations/sec"
	metricWriteBytes = "Composite Disk Write Bytes/sec"
	metricWriteOps   = "Composite Disk Write Operations/sec"
)

var diskMetricNames = []string{metricReadBytes, metricReadOps, metricWriteBytes, metricWriteOps}

// MetricsFetcher returns the observed usage of one disk
type MetricsFetcher interface {
	FetchUsage(ctx context.Context, diskID string) (Usage, error)
}

// MetricsOptions configures a MetricsClient
type MetricsOptions struct {
	// Endpoint defaults to ManagementEndpoint
	Endpoint string
	// TimerangeDays is the length of the analysis window ending now
	TimerangeDays int
	// Interval is the ISO-8601 metric granularity, PT1M by default
	Interval string
	// HTTPClient defaults to NewHTTPClient(config.ManagementRateLimitConfig.MaxRetries)
	HTTPClient *retryablehttp.Client
}

// MetricsClient queries the Azure Monitor metrics REST API for disk load
type MetricsClient struct {
	endpoint string
	days     int
	interval string
	cred     azcore.TokenCredential
	http     *retryablehttp.Client
	limiter  *ratelimit.Limiter
	now      func() time.Time
}

// NewMetricsClient creates a metrics client authenticating with cred
func NewMetricsClient(cred azcore.TokenCredential, opts MetricsOptions) *MetricsClient {
	if opts.Endpoint == "" {
		opts.Endpoint = ManagementEndpoint
	}
	if opts.TimerangeDays <= 0 {
		opts.TimerangeDays = 3
	}
	if opts.Interval == "" {
		opts.Interval = "PT1M"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(config.ManagementRateLimitConfig.MaxRetries)
	}
	return &MetricsClient{
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		days:     opts.TimerangeDays,
		interval: opts.Interval,
		cred:     cred,
		http:     opts.HTTPClient,
		limiter:  ratelimit.Get("management", config.ManagementRateLimitConfig),
		now:      time.Now,
	}
}

type metricsResponse struct {
	Value []struct {
		Name struct {
			Value string `json:"value"`
		} `json:"name"`
		Timeseries []struct {
			Data []struct {
				Average *float64 `json:"average"`
				Maximum *float64 `json:"maximum"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"value"`
}

// aggregate is the mean of the averages and the max of the maxima of one metric
type aggregate struct {
	Average float64
	Maximum float64
}

func (c *MetricsClient) requestURL(diskID string) string {
	end := c.now().UTC().Truncate(time.Minute)
	start := end.Add(-time.Duration(c.days) * 24 * time.Hour)

	q := url.Values{}
	q.Set("api-version", metricsAPIVersion)
	q.Set("timespan", start.Format(time.RFC3339)+"/"+end.Format(time.RFC3339))
	q.Set("aggregation", "Average,Maximum")
	q.Set("interval", c.interval)
	q.Set("metricnames", strings.Join(diskMetricNames, ","))

	return c.endpoint + diskID + "/providers/Microsoft.Insights/metrics?" + q.Encode()
}

// FetchUsage returns the peak and average throughput and IOPS of a disk over the window
func (c *MetricsClient) FetchUsage(ctx context.Context, diskID string) (Usage, error) {
	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{managementScope}})
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get management token: %w", err)
	}

	var body []byte
	err = c.limiter.Execute(ctx, "GetDiskMetrics", func(ctx context.Context) error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(diskID), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read metrics response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return &ratelimit.StatusError{API: "metrics API", StatusCode: resp.StatusCode, Status: resp.Status, Body: truncate(string(body), 200)}
		}
		return nil
	})
	if err != nil {
		return Usage{}, err
	}

	var parsed metricsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Usage{}, fmt.Errorf("failed to parse metrics response: %w", err)
	}

	usage := usageFromAggregates(aggregateMetrics(parsed))
	usage.DiskID = diskID
	return usage, nil
}

func aggregateMetrics(resp metricsResponse) map[string]aggregate {
	out := make(map[string]aggregate, len(resp.Value))
	for _, metric := range resp.Value {
		var (
			sum   float64
			count int
			agg   aggregate
		)
		for _, series := range metric.Timeseries {
			for _, dp := range series.Data {
				if dp.Average != nil {
					sum += *dp.Average
				}
				count++
				if dp.Maximum != nil && *dp.Maximum > agg.Maximum {
					agg.Maximum = *dp.Maximum
				}
			}
		}
		if count > 0 {
			agg.Average = sum / float64(count)
		}
		out[metric.Name.Value] = agg
	}
	return out
}

func usageFromAggregates(m map[string]aggregate) Usage {
	return Usage{
		PeakThroughputMBps: (m[metricReadBytes].Maximum + m[metricWriteBytes].Maximum) / bytesPerMiB,
		AvgThroughputMBps:  (m[metricReadBytes].Average + m[metricWriteBytes].Average) / bytesPerMiB,
		PeakIOPS:           m[metricReadOps].Maximum + m[metricWriteOps].Maximum,
		AvgIOPS:            m[metricReadOps].Average + m[metricWriteOps].Average,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// CollectUsage fetches the usage of every disk on a worker pool. A disk whose metrics cannot be
// read gets zero usage and a warning. onDone, when set, is called once per disk.
func CollectUsage(ctx context.Context, fetcher MetricsFetcher, disks []Disk, maxWorkers int, onDone func()) map[string]Usage {
	var (
		mu     sync.Mutex
		usages = make(map[string]Usage, len(disks))
	)

	tasks := make([]worker.Task, 0, len(disks))
	for _, d := range disks {
		diskID := d.ID
		tasks = append(tasks, func(ctx context.Context) error {
			if onDone != nil {
				defer onDone()
			}
			usage, err := fetcher.FetchUsage(ctx, diskID)
			if err != nil {
				logging.Warn("Failed to fetch disk metrics, assuming zero usage", map[string]interface{}{
					"disk_id": diskID,
					"error":   err.Error(),
				})
				usage = Usage{DiskID: diskID, Warning: "metrics unavailable: " + err.Error()}
			}
			mu.Lock()
			usages[diskID] = usage
			mu.Unlock()
			return err
		})
	}

	failed, metrics := worker.Run(ctx, maxWorkers, 0, tasks)
	logging.Debug("Metrics collection finished", map[string]interface{}{
		"disks":        len(disks),
		"failed":       failed,
		"peak_workers": metrics.PeakWorkers,
		"avg_ms":       metrics.AverageExecutionMs,
	})

	// Disks whose task never ran because ctx was cancelled
	for _, d := range disks {
		if _, ok := usages[d.ID]; !ok {
			usages[d.ID] = Usage{DiskID: d.ID, Warning: "metrics not collected"}
		}
	}
	return usages
}
