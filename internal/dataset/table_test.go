package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestParse_RaggedRowsAndBOM(t *testing.T) {
	input := "\ufeffpmid,title,year\n1,First,2019\n2,Second\n3,Third,2020,extra\n,,\n"

	table, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if diff := cmp.Diff([]string{"pmid", "title", "year"}, table.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	want := [][]string{
		{"1", "First", "2019"},
		{"2", "Second", ""},
		{"3", "Third", "2020"},
	}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestTable_Require(t *testing.T) {
	table := New([]string{"pmid", "title"})

	if err := table.Require("pmid"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	err := table.Require("pmid", "year", "journal")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "year, journal") {
		t.Errorf("expected missing columns listed, got %v", err)
	}
}

func TestTable_SetAddsColumn(t *testing.T) {
	table := New([]string{"pmid"})
	table.Append([]string{"1"})
	table.Append([]string{"2"})

	table.Set(1, "population", "adults")

	if got := table.Get(0, "population"); got != "" {
		t.Errorf("expected empty padded value, got %q", got)
	}
	if got := table.Get(1, "population"); got != "adults" {
		t.Errorf("expected adults, got %q", got)
	}
	if got := table.Get(5, "population"); got != "" {
		t.Errorf("expected empty for out-of-range row, got %q", got)
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()

	table := New([]string{"pmid", "note"})
	table.Append([]string{"1", "has, comma"})
	table.Append([]string{"2", "has \"quotes\""})

	if err := WriteCSV(fs, "out/tables/t.csv", table); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	got, err := ReadCSV(fs, "out/tables/t.csv")
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if diff := cmp.Diff(table.Rows, got.Rows); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_Deterministic(t *testing.T) {
	table := New([]string{"a", "b"})
	table.Append([]string{"1", "x"})

	var first, second bytes.Buffer
	if err := Write(&first, table); err != nil {
		t.Fatal(err)
	}
	if err := Write(&second, table); err != nil {
		t.Fatal(err)
	}

	if first.String() != "a,b\n1,x\n" {
		t.Errorf("unexpected CSV: %q", first.String())
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("expected identical output")
	}
}
