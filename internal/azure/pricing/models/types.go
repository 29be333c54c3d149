package models

import (
	"fmt"
	"time"
)

// PriceKey identifies the price of one disk tier in one region
type PriceKey struct {
	Tier       string `json:"tier"`
	Location   string `json:"location"`
	Redundancy string `json:"redundancy"`
	// TransactionBilled is set for families that also bill disk operations
	TransactionBilled bool `json:"transaction_billed"`
}

// String returns the cache key tier:location:redundancy
func (k PriceKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Tier, k.Location, k.Redundancy)
}

// SKUName is the retail skuName of the tier, such as "P10 LRS"
func (k PriceKey) SKUName() string {
	return k.Tier + " " + k.Redundancy
}

// TierPrice is the pay-as-you-go price of a disk tier
type TierPrice struct {
	Key PriceKey `json:"key"`
	// FixedMonthly is the monthly price of the provisioned disk
	FixedMonthly float64 `json:"fixed_monthly"`
	// VariablePer10K is the price of 10,000 disk operations, zero for families without transaction billing
	VariablePer10K float64 `json:"variable_per_10k"`
	Currency       string  `json:"currency"`
	// Missing is set when the retail API had no matching meter
	Missing   bool      `json:"missing,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// RetailItem is one entry of the Azure retail prices API
type RetailItem struct {
	CurrencyCode  string  `json:"currencyCode"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitPrice     float64 `json:"unitPrice"`
	ArmRegionName string  `json:"armRegionName"`
	MeterName     string  `json:"meterName"`
	ProductName   string  `json:"productName"`
	SkuName       string  `json:"skuName"`
	Type          string  `json:"type"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
}

// RetailPage is one page of the Azure retail prices API
type RetailPage struct {
	BillingCurrency string       `json:"BillingCurrency"`
	Items           []RetailItem `json:"Items"`
	NextPageLink    string       `json:"NextPageLink"`
	Count           int          `json:"Count"`
}
