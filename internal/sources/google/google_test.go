package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet", CredentialsFile: t.TempDir() + "/nope.json"})
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.ReadTable(context.Background(), "agg_trans.csv"); err == nil {
		t.Fatal("expected error with nil service")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestTabName(t *testing.T) {
	if got := TabName(" top_insur_pincode.csv"); got != "top_insur_pincode" {
		t.Fatalf("got %q", got)
	}
}

func TestValuesToRecords(t *testing.T) {
	values := [][]interface{}{
		{"State", "Year", "Quarter", "Transaction_count", "Transaction_amount"},
		{"andaman-&-nicobar-islands", 2018.0, 1.0, 4200.0, 1845307.4673655091},
		{" goa ", "2018", "2", nil},
		{},
		{"", ""},
	}
	got := valuesToRecords(values)
	want := [][]string{
		{"State", "Year", "Quarter", "Transaction_count", "Transaction_amount"},
		{"andaman-&-nicobar-islands", "2018", "1", "4200", "1845307.4673655091"},
		{"goa", "2018", "2", ""},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records:\n got %q\nwant %q", got, want)
	}
}

func TestIsMissingRange(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&googleapi.Error{Code: http.StatusNotFound}, true},
		{fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusBadRequest, Message: "Unable to parse range: 'x'"}), true},
		{&googleapi.Error{Code: http.StatusBadRequest, Message: "bad"}, false},
		{&googleapi.Error{Code: http.StatusForbidden}, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isMissingRange(tc.err); got != tc.want {
			t.Errorf("isMissingRange(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
