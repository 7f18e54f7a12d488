package core

import (
	"errors"
	"testing"
)

func TestLookupDataset(t *testing.T) {
	for _, key := range []string{"map-user", "Mapped Users", "map_user.csv", "MAP_USER.CSV"} {
		d, err := LookupDataset(key)
		if err != nil {
			t.Fatalf("lookup %q: %v", key, err)
		}
		if d.File != "map_user.csv" || d.Kind != Mapped {
			t.Fatalf("lookup %q: got %+v", key, d)
		}
	}
	if _, err := LookupDataset("nope"); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("want ErrDatasetNotFound, got %v", err)
	}
	if _, err := LookupDataset("  "); !errors.Is(err, ErrEmptyDatasetID) {
		t.Fatalf("want ErrEmptyDatasetID, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	ds := Datasets()
	if len(ds) != 12 || len(Files()) != 12 {
		t.Fatalf("catalog size: got %d", len(ds))
	}
	ds[0].File = "mutated.csv"
	if Datasets()[0].File != "agg_trans.csv" {
		t.Fatal("Datasets must return a copy")
	}
	if name := Datasets()[6].Name(); name != "top_trans_dist" {
		t.Fatalf("name: got %q", name)
	}
}
