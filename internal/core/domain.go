package core

import (
	"errors"
	"strings"
)

const (
	Aggregated DatasetKind = "aggregated"
	Mapped     DatasetKind = "mapped"
	TopN       DatasetKind = "top"
)

type (
	// DatasetKind is the granularity of a source table.
	DatasetKind string

	// Dataset describes one of the fixed CSV extracts served by the dashboard.
	Dataset struct {
		ID    string
		Label string
		File  string
		Kind  DatasetKind
	}
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrEmptyDatasetID  = errors.New("empty dataset id")
)

var catalog = []Dataset{
	{ID: "agg-trans", Label: "Aggregated Transactions", File: "agg_trans.csv", Kind: Aggregated},
	{ID: "agg-user", Label: "Aggregated Users", File: "agg_user.csv", Kind: Aggregated},
	{ID: "agg-insurance", Label: "Aggregated Insurance", File: "agg_insurance.csv", Kind: Aggregated},
	{ID: "map-trans", Label: "Mapped Transactions", File: "map_trans.csv", Kind: Mapped},
	{ID: "map-user", Label: "Mapped Users", File: "map_user.csv", Kind: Mapped},
	{ID: "map-insurance", Label: "Mapped Insurance", File: "map_insurance.csv", Kind: Mapped},
	{ID: "top-trans-dist", Label: "Top District Transactions", File: "top_trans_dist.csv", Kind: TopN},
	{ID: "top-trans-pin", Label: "Top Pincode Transactions", File: "top_trans_pin.csv", Kind: TopN},
	{ID: "top-user-dist", Label: "Top District Users", File: "top_user_dist.csv", Kind: TopN},
	{ID: "top-user-pin", Label: "Top Pincode Users", File: "top_user_pin.csv", Kind: TopN},
	{ID: "top-insur-district", Label: "Top Insurance Districts", File: "top_insur_district.csv", Kind: TopN},
	{ID: "top-insur-pincode", Label: "Top Insurance Pincodes", File: "top_insur_pincode.csv", Kind: TopN},
}

// Datasets returns the catalog in display order.
func Datasets() []Dataset {
	return append([]Dataset(nil), catalog...)
}

// Files returns the file name of every dataset in the catalog.
func Files() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.File
	}
	return out
}

// LookupDataset resolves a dataset by id, label or file name (case-insensitive).
func LookupDataset(key string) (Dataset, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Dataset{}, ErrEmptyDatasetID
	}
	for _, d := range catalog {
		if strings.EqualFold(d.ID, key) || strings.EqualFold(d.Label, key) || strings.EqualFold(d.File, key) {
			return d, nil
		}
	}
	return Dataset{}, ErrDatasetNotFound
}

// Name returns the file name without its extension, used as a sheet or table name.
func (d Dataset) Name() string {
	return strings.TrimSuffix(d.File, ".csv")
}
