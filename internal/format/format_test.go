package format_test

import (
	"strings"
	"testing"
	"time"

	"imrmap/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("County", "1990-94", "2000-04")
	tb.Row("Alpha", "5.00 (4.10; 6.02)", "4.00 (3.50; 4.61)")
	tb.Row("Beta", "3.12 (2.40; 3.90)", "2.80 (2.11; 3.55)")
	out := tb.String()

	if !strings.Contains(out, "County") || strings.Contains(out, "COUNTY") {
		t.Errorf("expected header 'County' in its written case:\n%s", out)
	}
	if !strings.Contains(out, "5.00 (4.10; 6.02)") {
		t.Errorf("expected interval cell in output:\n%s", out)
	}
	// ASCII uses box-drawing characters from StyleLight
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_BasicTable(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Effect", "Estimate")
	tb.Row("(Intercept)", "-5.000 (-5.200; -4.800)")
	tb.Row("grr", "1.492 (1.221; 1.822)")
	out := tb.String()

	if !strings.Contains(out, "| Effect") {
		t.Errorf("expected markdown header with '| Effect':\n%s", out)
	}
	if !strings.Contains(out, "---") {
		t.Errorf("expected markdown separator '---':\n%s", out)
	}
	if !strings.Contains(out, "grr") {
		t.Errorf("expected 'grr' in output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("County", "Births")
	tb.Row("Alpha", 1000)
	tb.Row("Beta", 2000)
	tb.Footer("TOTAL", 3000)
	out := tb.String()

	if !strings.Contains(out, "TOTAL") {
		t.Errorf("expected footer 'TOTAL' in output:\n%s", out)
	}
	if !strings.Contains(out, "3000") {
		t.Errorf("expected footer value '3000' in output:\n%s", out)
	}
}

func TestLaTeX_CaptionEscaped(t *testing.T) {
	tb := format.NewTable(format.LaTeX)
	tb.Caption("Rate ratio (95% CI)\nby county")
	tb.Header("County", "RR")
	got := tb.String()

	first := strings.SplitN(got, "\n", 2)[0]
	if want := `% Rate ratio (95\% CI) by county`; first != want {
		t.Errorf("caption line = %q, want %q", first, want)
	}
}

func TestLaTeX_Tabular(t *testing.T) {
	tb := format.NewTable(format.LaTeX)
	tb.Caption("Rate ratio by county")
	tb.Header("County", "RR")
	tb.Row("Santa Cruz & Sur", "0.512 (0.401; 0.650)")
	tb.Row("Norte_1", "1.020 (0.880; 1.190)")
	got := tb.String()

	want := `% Rate ratio by county
\begin{tabular}{lr}
\hline
County & RR \\
\hline
Santa Cruz \& Sur & 0.512 (0.401; 0.650) \\
Norte\_1 & 1.020 (0.880; 1.190) \\
\hline
\end{tabular}
`
	if got != want {
		t.Errorf("LaTeX output mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestLaTeX_ColumnAlignAndFooter(t *testing.T) {
	tb := format.NewTable(format.LaTeX)
	tb.Header("A", "B", "C")
	tb.Row("x", 1)
	tb.Footer("total", 1, 2)
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignCenter})
	out := tb.String()

	if !strings.Contains(out, `\begin{tabular}{lcr}`) {
		t.Errorf("expected column spec lcr:\n%s", out)
	}
	if !strings.Contains(out, "x & 1 &  \\\\") {
		t.Errorf("short rows should be padded:\n%s", out)
	}
	if !strings.Contains(out, "total & 1 & 2") {
		t.Errorf("expected footer row:\n%s", out)
	}
}

func TestEscapeLaTeX(t *testing.T) {
	got := format.EscapeLaTeX(`95% of $x_1 & {y}`)
	want := `95\% of \$x\_1 \& \{y\}`
	if got != want {
		t.Errorf("EscapeLaTeX = %q, want %q", got, want)
	}
}

func TestColumns_RightAlign(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("County", "Births")
	tb.Row("Alpha", 12345)
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	out := tb.String()

	if !strings.Contains(out, "12345") {
		t.Errorf("expected '12345' in output:\n%s", out)
	}
}

func TestSameData_AllFormats(t *testing.T) {
	build := func(m format.Mode) string {
		tb := format.NewTable(m)
		tb.Header("A", "B")
		tb.Row("x", "y")
		return tb.String()
	}

	ascii := build(format.ASCII)
	md := build(format.Markdown)
	tex := build(format.LaTeX)

	if ascii == md || md == tex || ascii == tex {
		t.Error("each mode should render differently")
	}
	for _, out := range []string{ascii, md, tex} {
		if !strings.Contains(out, "x") || !strings.Contains(out, "y") {
			t.Errorf("expected data in output:\n%s", out)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    format.Mode
		wantErr bool
	}{
		{"", format.ASCII, false},
		{"ascii", format.ASCII, false},
		{"Markdown", format.Markdown, false},
		{"tex", format.LaTeX, false},
		{"html", format.ASCII, true},
	}
	for _, tc := range tests {
		got, err := format.ParseMode(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// --- Helper tests ---

func TestFmtDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{250 * time.Millisecond, "250ms"},
		{30 * time.Second, "30s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 0s"},
		{90 * time.Second, "1m 30s"},
		{5*time.Minute + 15*time.Second, "5m 15s"},
	}
	for _, tc := range tests {
		got := format.FmtDuration(tc.in)
		if got != tc.want {
			t.Errorf("FmtDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"ab", 3, "ab"},
		{"abcdef", 3, "abc"},
	}
	for _, tc := range tests {
		got := format.Truncate(tc.in, tc.maxLen)
		if got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestTail(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"error: x", 20, "error: x"},
		{"line1\nline2\nfatal", 8, "...fatal"},
		{"abcdef", 2, "ef"},
	}
	for _, tc := range tests {
		got := format.Tail(tc.in, tc.maxLen)
		if got != tc.want {
			t.Errorf("Tail(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}
