package core

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

const aggUserCSV = `State,Year,Quarter,Brand,UserCount
Kerala,2022,1,Xiaomi,120
Kerala,2022,1,Samsung,80
Goa,2022,2,Vivo,
Goa,2022,2,Xiaomi,40
`

func mustReadCSV(t *testing.T, name, body string) Table {
	t.Helper()
	tbl, err := ReadCSV(name, strings.NewReader(body))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return tbl
}

func TestReadCSV_KeepsCellsVerbatim(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)

	if tbl.Name() != "agg_user.csv" {
		t.Fatalf("name: got %q", tbl.Name())
	}
	if got, want := tbl.Columns(), []string{"State", "Year", "Quarter", "Brand", "UserCount"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("columns: got %v want %v", got, want)
	}
	if tbl.Len() != 4 || tbl.Empty() {
		t.Fatalf("len: got %d", tbl.Len())
	}
	if got := tbl.Strings("Quarter"); !reflect.DeepEqual(got, []string{"1", "1", "2", "2"}) {
		t.Fatalf("quarter cells: got %v", got)
	}
	if rows := tbl.Rows(); len(rows) != 4 || rows[0][3] != "Xiaomi" {
		t.Fatalf("rows: got %v", rows)
	}
	if records := tbl.Records(); len(records) != 5 || records[0][0] != "State" {
		t.Fatalf("records: got %v", records)
	}
}

func TestTable_Numbers(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)

	got := tbl.Numbers("UserCount")
	if len(got) != 4 {
		t.Fatalf("len: got %d", len(got))
	}
	if got[0] != 120 || got[1] != 80 || got[3] != 40 {
		t.Fatalf("numbers: got %v", got)
	}
	if !math.IsNaN(got[2]) {
		t.Fatalf("empty cell should be NaN, got %v", got[2])
	}
	if tbl.Numbers("Missing") != nil {
		t.Fatal("absent column should give nil")
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"42":        42,
		" 3.5 ":     3.5,
		"1,234,567": 1234567,
		"-7":        -7,
	}
	for in, want := range cases {
		if got := ParseNumber(in); got != want {
			t.Errorf("ParseNumber(%q) = %v, want %v", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "NaN?"} {
		if got := ParseNumber(in); !math.IsNaN(got) {
			t.Errorf("ParseNumber(%q) = %v, want NaN", in, got)
		}
	}
}

func TestTable_Unique(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)
	if got := tbl.Unique("Brand"); !reflect.DeepEqual(got, []string{"Xiaomi", "Samsung", "Vivo"}) {
		t.Fatalf("unique brands: got %v", got)
	}
}

func TestTable_Head(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)

	head := tbl.Head(2)
	if head.Len() != 2 {
		t.Fatalf("head len: got %d", head.Len())
	}
	if got := head.Strings("State"); !reflect.DeepEqual(got, []string{"Kerala", "Kerala"}) {
		t.Fatalf("head states: got %v", got)
	}
	if tbl.Head(0).Len() != 4 || tbl.Head(100).Len() != 4 {
		t.Fatal("head outside range should return the whole table")
	}
	if tbl.Len() != 4 {
		t.Fatal("head must not mutate the source table")
	}
}

func TestTable_Require(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)

	if err := tbl.Require("State", "UserCount"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := tbl.Require("State", "App_opens", "Registered_users")
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("want *SchemaError, got %v", err)
	}
	if !reflect.DeepEqual(se.Missing, []string{"App_opens", "Registered_users"}) {
		t.Fatalf("missing: got %v", se.Missing)
	}
	if se.Table != "agg_user.csv" {
		t.Fatalf("table: got %q", se.Table)
	}
	if !IsSchemaError(err) {
		t.Fatal("IsSchemaError should match")
	}
}

func TestFromRecords_PadsShortRows(t *testing.T) {
	tbl, err := FromRecords("map_user.csv", [][]string{
		{"State", "District", "Registered_users", "App_opens"},
		{"Goa", "North Goa", "10"},
		{"Goa", "South Goa", "20", "5"},
	})
	if err != nil {
		t.Fatalf("from records: %v", err)
	}
	if got := tbl.Strings("App_opens"); !reflect.DeepEqual(got, []string{"", "5"}) {
		t.Fatalf("app opens: got %v", got)
	}
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", "State,Year,Quarter,Brand,UserCount\n")

	if !tbl.Empty() || tbl.Len() != 0 {
		t.Fatalf("want zero rows, got %d", tbl.Len())
	}
	if want := []string{"State", "Year", "Quarter", "Brand", "UserCount"}; !reflect.DeepEqual(tbl.Columns(), want) {
		t.Fatalf("columns: got %v", tbl.Columns())
	}
	if err := tbl.Require("State", "UserCount"); err != nil {
		t.Fatalf("require: %v", err)
	}
	if got := tbl.Strings("State"); len(got) != 0 {
		t.Fatalf("strings: got %v", got)
	}
	if got := tbl.Unique("Brand"); len(got) != 0 {
		t.Fatalf("unique: got %v", got)
	}

	var sb strings.Builder
	if err := tbl.WriteCSV(&sb); err != nil {
		t.Fatalf("write: %v", err)
	}
	if sb.String() != "State,Year,Quarter,Brand,UserCount\n" {
		t.Fatalf("csv: got %q", sb.String())
	}
}

func TestFromRecords_HeaderOnly(t *testing.T) {
	tbl, err := FromRecords("map_user.csv", [][]string{{"State", "District"}})
	if err != nil {
		t.Fatalf("from records: %v", err)
	}
	if tbl.Len() != 0 || len(tbl.Records()) != 1 {
		t.Fatalf("want header only, got %v", tbl.Records())
	}
}

func TestFromRecords_NoHeader(t *testing.T) {
	if _, err := FromRecords("x.csv", nil); !errors.Is(err, ErrNoColumns) {
		t.Fatalf("want ErrNoColumns, got %v", err)
	}
}

func TestTable_WriteCSV(t *testing.T) {
	tbl := mustReadCSV(t, "agg_user.csv", aggUserCSV)
	var sb strings.Builder
	if err := tbl.Head(1).WriteCSV(&sb); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "State,Year,Quarter,Brand,UserCount\nKerala,2022,1,Xiaomi,120\n"
	if sb.String() != want {
		t.Fatalf("csv: got %q want %q", sb.String(), want)
	}
}
