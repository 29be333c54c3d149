package output

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"disksift/internal/analysis"
)

// ErrReportExists is returned when today's report is already present and Force is not set
var ErrReportExists = errors.New("report already exists")

const reportName = "disk_recommendations"

// Format represents the report format
type Format string

const (
	// CSV writes one row per disk
	CSV Format = "csv"
	// JSON writes the gzip-compressed run result
	JSON Format = "json"
)

// Config holds output configuration
type Config struct {
	OutputDir string
	Format    Format
	// Force overwrites a report written earlier the same day
	Force bool
}

// Writer writes analysis results to the local filesystem
type Writer struct {
	config Config
	now    func() time.Time
}

// NewWriter creates a new output writer with default settings
func NewWriter(config Config) *Writer {
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.Format == "" {
		config.Format = CSV
	}
	return &Writer{config: config, now: time.Now}
}

// Path returns output/disk_recommendations_<YYYY-MM-DD>.csv, or .json.gz for JSON
func (w *Writer) Path() string {
	ext := ".csv"
	if w.config.Format == JSON {
		ext = ".json.gz"
	}
	return filepath.Join(w.config.OutputDir, fmt.Sprintf("%s_%s%s", reportName, w.now().Format("2006-01-02"), ext))
}

// Write writes the report and returns its path
func (w *Writer) Write(result *analysis.Result) (string, error) {
	path := w.Path()
	if _, err := os.Stat(path); err == nil && !w.config.Force {
		return path, fmt.Errorf("%w: %s (use --force to overwrite)", ErrReportExists, path)
	}

	var (
		data []byte
		err  error
	)
	switch w.config.Format {
	case CSV:
		data, err = encodeCSV(result.Rows)
	case JSON:
		data, err = encodeJSON(result)
	default:
		return "", fmt.Errorf("unsupported output format: %s", w.config.Format)
	}
	if err != nil {
		return "", err
	}

	return path, writeToFileSystem(path, data)
}

var csvHeader = []string{
	"disk_id", "disk_name", "subscription_id", "resource_group", "location", "disk_state", "managed_by",
	"size_gib", "redundancy",
	"current_sku", "current_tier", "current_iops", "current_throughput_mbps",
	"recommended_sku", "recommended_tier", "recommended_iops", "recommended_throughput_mbps", "changed",
	"peak_iops", "peak_throughput_mbps", "avg_iops", "avg_throughput_mbps",
	"current_fixed_pricing", "estimated_current_variable_pricing",
	"recommended_fixed_pricing", "estimated_recommended_variable_pricing",
	"price_missing", "warning",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvRecord(r analysis.Row) []string {
	return []string{
		r.DiskID, r.DiskName, r.SubscriptionID, r.ResourceGroup, r.Location, r.DiskState, r.ManagedBy,
		strconv.Itoa(r.SizeGiB), r.Redundancy,
		r.CurrentSKU, r.CurrentTier, strconv.Itoa(r.CurrentIOPS), strconv.Itoa(r.CurrentThroughputMBps),
		r.RecommendedSKU, r.RecommendedTier, strconv.Itoa(r.RecommendedIOPS), strconv.Itoa(r.RecommendedThroughputMBps),
		strconv.FormatBool(r.Changed),
		formatFloat(r.PeakIOPS), formatFloat(r.PeakThroughputMBps), formatFloat(r.AvgIOPS), formatFloat(r.AvgThroughputMBps),
		formatFloat(r.CurrentFixed), formatFloat(r.CurrentVariable),
		formatFloat(r.RecommendedFixed), formatFloat(r.RecommendedVariable),
		strconv.FormatBool(r.PriceMissing), r.Warning,
	}
}

func encodeCSV(rows []analysis.Row) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(csvRecord(r)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row for %s: %w", r.DiskID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJSON(result *analysis.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	compressed, err := compressData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to compress data: %w", err)
	}
	return compressed, nil
}

// compressData compresses the input data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to gzip writer: %w", err)
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// writeToFileSystem writes data to the local filesystem
func writeToFileSystem(path string, data []byte) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
