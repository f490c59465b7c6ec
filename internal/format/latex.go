package format

import (
	"fmt"
	"strings"
)

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
	`~`, `\textasciitilde{}`,
	`^`, `\textasciicircum{}`,
)

// EscapeLaTeX escapes the characters LaTeX treats specially.
func EscapeLaTeX(s string) string { return latexEscaper.Replace(s) }

// latexTable renders a booktabs-free tabular. Rows are printed exactly as
// given: no row index column is added.
type latexTable struct {
	caption string
	header  []string
	rows    [][]string
	footer  [][]string
	align   map[int]ColumnAlign
}

func (l *latexTable) Header(cols ...string) { l.header = cols }

func (l *latexTable) Row(vals ...any) { l.rows = append(l.rows, cells(vals)) }

func (l *latexTable) Footer(vals ...any) { l.footer = append(l.footer, cells(vals)) }

func (l *latexTable) Caption(s string) { l.caption = s }

func (l *latexTable) Columns(cfgs ...ColumnConfig) {
	if l.align == nil {
		l.align = make(map[int]ColumnAlign)
	}
	for _, c := range cfgs {
		l.align[c.Number] = c.Align
	}
}

func (l *latexTable) width() int {
	n := len(l.header)
	for _, r := range append(append([][]string{}, l.rows...), l.footer...) {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

func (l *latexTable) spec(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		switch l.align[i] {
		case AlignRight:
			b.WriteByte('r')
		case AlignCenter:
			b.WriteByte('c')
		case AlignLeft:
			b.WriteByte('l')
		default:
			if i == 1 {
				b.WriteByte('l')
			} else {
				b.WriteByte('r')
			}
		}
	}
	return b.String()
}

func (l *latexTable) line(b *strings.Builder, r []string, n int) {
	out := make([]string, n)
	for i := range out {
		if i < len(r) {
			out[i] = EscapeLaTeX(r[i])
		}
	}
	b.WriteString(strings.Join(out, " & "))
	b.WriteString(" \\\\\n")
}

func (l *latexTable) String() string {
	n := l.width()
	var b strings.Builder
	if l.caption != "" {
		// Escaped so the comment can be pasted into \caption{} as is.
		fmt.Fprintf(&b, "%% %s\n", EscapeLaTeX(strings.Join(strings.Fields(l.caption), " ")))
	}
	fmt.Fprintf(&b, "\\begin{tabular}{%s}\n\\hline\n", l.spec(n))
	if len(l.header) > 0 {
		l.line(&b, l.header, n)
		b.WriteString("\\hline\n")
	}
	for _, r := range l.rows {
		l.line(&b, r, n)
	}
	if len(l.footer) > 0 {
		b.WriteString("\\hline\n")
		for _, r := range l.footer {
			l.line(&b, r, n)
		}
	}
	b.WriteString("\\hline\n\\end{tabular}\n")
	return b.String()
}

func cells(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprint(v)
	}
	return out
}
