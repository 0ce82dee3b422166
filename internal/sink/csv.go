package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pricepally/demandcast/internal/api"
)

// CSVSink streams forecast records to a CSV file, one row per record.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"run_id", "product_name", "product_uom", "sales_type",
	"year", "month", "week_no", "step", "forecast_qty", "forecast_method",
}

// NewCSVSink creates the output file, and its directory when missing, and
// writes the header.
func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return &CSVSink{file: file, writer: writer}, nil
}

func (c *CSVSink) WriteForecasts(ctx context.Context, runID string, records []api.ForecastRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			runID,
			r.Key.ProductName,
			r.Key.UOM,
			r.Key.SalesType,
			strconv.Itoa(r.Week.Year),
			strconv.Itoa(r.Week.Month),
			strconv.Itoa(r.Week.WeekNo),
			strconv.Itoa(r.Step),
			strconv.FormatFloat(r.Qty, 'f', 1, 64),
			string(r.Method),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", r.Key, err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
