package pipeline

import (
	"context"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"imrmap/internal/config"
	"imrmap/internal/store"
	"imrmap/internal/summarize"
)

var _ = ginkgo.Describe("Run", func() {
	ginkgo.It("fits the example study with the Laplace engine and archives it", func() {
		dir := ginkgo.GinkgoT().TempDir()
		path, err := WriteExample(dir)
		gomega.Expect(err).To(gomega.Succeed())
		cfg, err := config.LoadFromPath(path)
		gomega.Expect(err).To(gomega.Succeed())
		cfg.Report.Figures = []string{config.FigMap}

		in, err := LoadInputs(cfg)
		gomega.Expect(err).To(gomega.Succeed())
		s, err := NewSolver(cfg, nil)
		gomega.Expect(err).To(gomega.Succeed())

		st, err := store.Open(cfg.Archive.Path)
		gomega.Expect(err).To(gomega.Succeed())
		defer st.Close()

		res, err := New(cfg, s, WithStore(st)).Run(context.Background(), in)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(res.Files).To(gomega.ContainElement(filepath.Join(cfg.Report.OutDir, "map.eps")))

		gomega.Expect(res.Tables.Ratios.Rows).To(gomega.HaveLen(4))
		for _, row := range res.Tables.Ratios.Rows {
			c := row.Cells[0]
			gomega.Expect(c.Point).To(gomega.BeNumerically(">", 0))
			gomega.Expect(c.Lower).To(gomega.BeNumerically("<=", c.Point))
			gomega.Expect(c.Upper).To(gomega.BeNumerically(">=", c.Point))
		}
		grr, ok := res.Tables.Fixed.Lookup(summarize.GRR)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(grr.Cells[0].Lower).To(gomega.BeNumerically("<=", grr.Cells[0].Upper))

		run, err := st.GetRun(res.RunID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(run.Status).To(gomega.Equal(store.StatusDone))
		gomega.Expect(run.Solver).To(gomega.Equal("laplace"))

		tables, err := st.ListTables(res.RunID)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(tables).To(gomega.HaveLen(4))
		fitted := tables[2]
		gomega.Expect(fitted.Name).To(gomega.Equal(summarize.FittedTable))
		gomega.Expect(fitted.Rows).To(gomega.HaveLen(4))
	})
})
