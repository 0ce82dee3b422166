// Package ingest reads the pre-aggregated weekly rows produced by the ETL
// collaborator and groups them into ordered series. No aggregation or
// transformation rules live here: rows arrive deduplicated with the
// quantity already resolved upstream.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pricepally/demandcast/internal/api"
	"github.com/pricepally/demandcast/internal/calendar"
)

var requiredColumns = []string{
	"product_name", "product_uom", "sales_type",
	"year", "month", "week_month", "qty_for_forecast",
}

// ReadFile loads a weekly time-series CSV from disk.
func ReadFile(path string) ([]*api.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return Read(file)
}

// Read parses weekly rows and returns one validated series per
// product/UOM/sales-type key, observations in week order.
func Read(r io.Reader) ([]*api.Series, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	// product_category is optional context for the model's encoder
	categoryCol, hasCategory := cols["product_category"]

	grouped := make(map[api.SeriesKey][]api.Observation)
	categories := make(map[api.SeriesKey]string)
	var order []api.SeriesKey

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		key := api.SeriesKey{
			ProductName: record[cols["product_name"]],
			UOM:         record[cols["product_uom"]],
			SalesType:   record[cols["sales_type"]],
		}

		week, err := parseWeek(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		qty, err := strconv.ParseFloat(record[cols["qty_for_forecast"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid quantity %q", line, record[cols["qty_for_forecast"]])
		}

		if _, seen := grouped[key]; !seen {
			order = append(order, key)
			if hasCategory {
				categories[key] = record[categoryCol]
			}
		}
		grouped[key] = append(grouped[key], api.Observation{Week: week, Qty: qty})
	}

	out := make([]*api.Series, 0, len(order))
	for _, key := range order {
		obs := grouped[key]
		sort.Slice(obs, func(i, j int) bool {
			return obs[i].Week.Before(obs[j].Week)
		})
		s := &api.Series{Key: key, Category: categories[key], Observations: obs}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid series: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return cols, nil
}

func parseWeek(record []string, cols map[string]int) (calendar.Week, error) {
	year, err := strconv.Atoi(record[cols["year"]])
	if err != nil {
		return calendar.Week{}, fmt.Errorf("invalid year %q", record[cols["year"]])
	}
	month, err := strconv.Atoi(record[cols["month"]])
	if err != nil {
		return calendar.Week{}, fmt.Errorf("invalid month %q", record[cols["month"]])
	}
	weekNo, err := strconv.Atoi(record[cols["week_month"]])
	if err != nil {
		return calendar.Week{}, fmt.Errorf("invalid week_month %q", record[cols["week_month"]])
	}

	week := calendar.Week{Year: year, Month: month, WeekNo: weekNo}
	if _, err := week.Date(); err != nil {
		return calendar.Week{}, err
	}
	return week, nil
}
