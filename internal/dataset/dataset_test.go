package dataset

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"imrmap/internal/domain"
)

func testSchema() Schema {
	return Schema{
		CountyColumn: "county",
		NameColumn:   "name",
		Prefixes:     map[Variable]string{Births: "nv", Deaths: "dead", Deprivation: "idx"},
		Periods: []domain.Period{
			{Code: "0408", Ordinal: 2},
			{Code: "9498", Ordinal: 1},
		},
	}
}

func testTable() *Table {
	return &Table{
		Source: "test.xlsx",
		Header: []string{"county", "name", "nv_9498", "dead_9498", "idx_9498", "nv_0408", "dead_0408", "idx_0408"},
		Rows: [][]string{
			{"B", "Beta", "2000", "10", "0.5", "1800", "6", "0.4"},
			{"A", "Alpha", "1000", "5", "1.5", "2000", "8", "1.2"},
		},
	}
}

func TestSchema_Columns(t *testing.T) {
	var got []string
	for _, c := range testSchema().Columns() {
		got = append(got, c.Name)
	}
	want := []string{"county", "name", "nv_9498", "dead_9498", "idx_9498", "nv_0408", "dead_0408", "idx_0408"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestSchema_CheckHeader(t *testing.T) {
	s := testSchema()
	s.IgnoreColumns = []string{"notes"}
	header := []string{"county", "nv_9498", "dead_9498", "idx_9498", "nv_0408", "dead_0408", "extra_0408", "notes", ""}

	res := s.CheckHeader(header)
	if res.OK() {
		t.Fatal("expected mismatch")
	}
	if diff := cmp.Diff([]string{"name", "idx_0408"}, res.Missing); diff != "" {
		t.Errorf("Missing (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"extra_0408"}, res.Unexpected); diff != "" {
		t.Errorf("Unexpected (-want +got):\n%s", diff)
	}
}

func TestSchema_ValidateHeader_Duplicate(t *testing.T) {
	s := testSchema()
	header := append(testTable().Header, "nv_9498")
	err := s.ValidateHeader(header)
	if !domain.IsKind(err, domain.KindDataQuality) {
		t.Fatalf("want data-quality error, got %v", err)
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schema)
	}{
		{"no county column", func(s *Schema) { s.CountyColumn = "" }},
		{"one period", func(s *Schema) { s.Periods = s.Periods[:1] }},
		{"duplicate code", func(s *Schema) { s.Periods[1].Code = s.Periods[0].Code }},
		{"bad ordinal", func(s *Schema) { s.Periods[0].Ordinal = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			tt.mutate(&s)
			if err := s.Validate(); !domain.IsKind(err, domain.KindConfig) {
				t.Errorf("Validate() = %v, want config error", err)
			}
		})
	}
}

func TestParseWide(t *testing.T) {
	rows, err := ParseWide(testTable(), testSchema())
	if err != nil {
		t.Fatalf("ParseWide: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := WideRow{County: "B", Name: "Beta", Values: map[int]Counts{
		1: {Births: 2000, Deaths: 10, Deprivation: 0.5},
		2: {Births: 1800, Deaths: 6, Deprivation: 0.4},
	}}
	if diff := cmp.Diff(want, rows[0]); diff != "" {
		t.Errorf("row 0 (-want +got):\n%s", diff)
	}
}

func TestParseWide_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Table)
	}{
		{"non-numeric", func(tb *Table) { tb.Rows[0][2] = "n/a" }},
		{"NaN births", func(tb *Table) { tb.Rows[0][2] = "NaN" }},
		{"infinite births", func(tb *Table) { tb.Rows[0][2] = "Inf" }},
		{"NaN deaths", func(tb *Table) { tb.Rows[0][3] = "NaN" }},
		{"infinite deprivation", func(tb *Table) { tb.Rows[1][7] = "-Inf" }},
		{"empty cell", func(tb *Table) { tb.Rows[1] = tb.Rows[1][:5] }},
		{"duplicate county", func(tb *Table) { tb.Rows[1][0] = "B" }},
		{"missing county", func(tb *Table) { tb.Rows[1][0] = " " }},
		{"missing column", func(tb *Table) { tb.Header[7] = "idx_2010" }},
		{"no rows", func(tb *Table) { tb.Rows = [][]string{{"", ""}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := testTable()
			tt.mutate(tb)
			_, err := ParseWide(tb, testSchema())
			if !domain.IsKind(err, domain.KindDataQuality) {
				t.Errorf("ParseWide() = %v, want data-quality error", err)
			}
		})
	}
}

func TestReshape_OrderAndRates(t *testing.T) {
	s := testSchema()
	rows, err := ParseWide(testTable(), s)
	if err != nil {
		t.Fatal(err)
	}
	long, err := Reshape(rows, s.Periods)
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if long.Len() != 2*len(rows) {
		t.Fatalf("Len = %d, want %d", long.Len(), 2*len(rows))
	}

	var keys []string
	for _, o := range long.Observations {
		keys = append(keys, o.Key().String())
		if want := 1000 * o.Deaths / o.Births; math.Abs(o.Rate-want) > 1e-12 {
			t.Errorf("%s: rate %g, want %g", o.Key(), o.Rate, want)
		}
	}
	if diff := cmp.Diff([]string{"A/1", "B/1", "A/2", "B/2"}, keys); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	a, ok := long.Lookup(domain.ObservationKey{County: "A", Ordinal: 2})
	if !ok || a.County.Index != 1 || a.County.Name != "Alpha" || a.CompositeIndex(2) != 3 {
		t.Errorf("Lookup(A/2) = %+v, %v", a, ok)
	}
}

func TestReshape_SingleCountyScenario(t *testing.T) {
	rows := []WideRow{{County: "X", Values: map[int]Counts{
		1: {Births: 1000, Deaths: 5},
		2: {Births: 2000, Deaths: 8},
	}}}
	periods := []domain.Period{{Code: "p1", Ordinal: 1}, {Code: "p2", Ordinal: 2}}
	long, err := Reshape(rows, periods)
	if err != nil {
		t.Fatal(err)
	}
	got := []float64{long.Observations[0].Rate, long.Observations[1].Rate}
	if diff := cmp.Diff([]float64{5.0, 4.0}, got); diff != "" {
		t.Errorf("rates (-want +got):\n%s", diff)
	}
	rate, err := GlobalRate(long.Observations)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(rate-1000.0*13/3000) > 1e-12 {
		t.Errorf("global rate = %g, want %g", rate, 1000.0*13/3000)
	}
}

func TestReshape_ZeroBirths(t *testing.T) {
	rows := []WideRow{{County: "X", Values: map[int]Counts{
		1: {Births: 0, Deaths: 0},
		2: {Births: 10, Deaths: 1},
	}}}
	periods := []domain.Period{{Code: "p1", Ordinal: 1}, {Code: "p2", Ordinal: 2}}
	if _, err := Reshape(rows, periods); !domain.IsKind(err, domain.KindDataQuality) {
		t.Fatalf("Reshape() = %v, want data-quality error", err)
	}
}

func TestReshape_NonFiniteCounts(t *testing.T) {
	periods := []domain.Period{{Code: "p1", Ordinal: 1}}
	tests := []struct {
		name   string
		counts Counts
	}{
		{"NaN births", Counts{Births: math.NaN(), Deaths: 1}},
		{"infinite births", Counts{Births: math.Inf(1), Deaths: 1}},
		{"NaN deaths", Counts{Births: 100, Deaths: math.NaN()}},
		{"infinite deaths", Counts{Births: 100, Deaths: math.Inf(1)}},
		{"negative deaths", Counts{Births: 100, Deaths: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []WideRow{{County: "X", Values: map[int]Counts{1: tt.counts}}}
			if _, err := Reshape(rows, periods); !domain.IsKind(err, domain.KindDataQuality) {
				t.Errorf("Reshape() = %v, want data-quality error", err)
			}
		})
	}
}

func TestReshape_NumericCountyOrder(t *testing.T) {
	var rows []WideRow
	for _, id := range []domain.CountyID{"10", "2", "1", "11"} {
		rows = append(rows, WideRow{County: id, Values: map[int]Counts{1: {Births: 100, Deaths: 1}}})
	}
	long, err := Reshape(rows, []domain.Period{{Code: "p1", Ordinal: 1}})
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	var got []domain.CountyID
	for _, c := range long.Counties() {
		got = append(got, c.ID)
	}
	if diff := cmp.Diff([]domain.CountyID{"1", "2", "10", "11"}, got); diff != "" {
		t.Errorf("county order (-want +got):\n%s", diff)
	}
}

func TestCountyLess(t *testing.T) {
	tests := []struct {
		a, b domain.CountyID
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"A", "B", true},
		{"9", "A", true},
		{"007", "7", true},
	}
	for _, tt := range tests {
		if got := CountyLess(tt.a, tt.b); got != tt.want {
			t.Errorf("CountyLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGlobalRate_MatchesWide(t *testing.T) {
	s := testSchema()
	rows, err := ParseWide(testTable(), s)
	if err != nil {
		t.Fatal(err)
	}
	long, err := Reshape(rows, s.Periods)
	if err != nil {
		t.Fatal(err)
	}
	d, err := long.Diagnose()
	if err != nil {
		t.Fatal(err)
	}
	for _, ord := range []int{1, 2} {
		wide, err := WideGlobalRate(rows, ord)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(wide-d.ByPeriod[ord]) > 1e-12 {
			t.Errorf("period %d: long %g, wide %g", ord, d.ByPeriod[ord], wide)
		}
	}
	if d.Counties != 2 || d.Rows != 4 {
		t.Errorf("Diagnostics = %+v", d)
	}
}
