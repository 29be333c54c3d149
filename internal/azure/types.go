package azure

// Subscription is an Azure subscription the credential can read
type Subscription struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Disk is one managed disk as reported by the compute API
type Disk struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	SubscriptionID    string            `json:"subscription_id"`
	ResourceGroup     string            `json:"resource_group"`
	Location          string            `json:"location"`
	ManagedBy         string            `json:"managed_by,omitempty"`
	ManagedByExtended []string          `json:"managed_by_extended,omitempty"`
	DiskState         string            `json:"disk_state"`
	SKU               string            `json:"sku"`
	Tier              string            `json:"tier,omitempty"`
	SizeGiB           int               `json:"size_gib"`
	ProvisionedIOPS   int64             `json:"provisioned_iops"`
	ProvisionedMBps   int64             `json:"provisioned_mbps"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// Usage is the observed load of a disk over the analysis window
type Usage struct {
	DiskID             string  `json:"disk_id"`
	PeakThroughputMBps float64 `json:"peak_throughput_mbps"`
	PeakIOPS           float64 `json:"peak_iops"`
	AvgThroughputMBps  float64 `json:"avg_throughput_mbps"`
	AvgIOPS            float64 `json:"avg_iops"`
	Warning            string  `json:"warning,omitempty"`
}
