package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KDE is a Gaussian kernel density estimate.
type KDE struct {
	data      []float64
	Bandwidth float64
}

// NewKDE estimates the density of xs with Silverman's rule of thumb:
// h = 0.9 * min(sd, IQR/1.34) * n^(-1/5). Degenerate samples fall back to
// a unit-scale bandwidth.
func NewKDE(xs []float64) *KDE {
	data := append([]float64(nil), xs...)
	sort.Float64s(data)
	k := &KDE{data: data}
	n := float64(len(data))
	if n < 2 {
		k.Bandwidth = 1
		return k
	}
	spread := stat.StdDev(data, nil)
	iqr := k.iqr()
	if iqr > 0 && iqr/1.34 < spread {
		spread = iqr / 1.34
	}
	if spread <= 0 {
		spread = 1
	}
	k.Bandwidth = 0.9 * spread * math.Pow(n, -0.2)
	return k
}

// iqr returns the interquartile range of the sorted sample.
func (k *KDE) iqr() float64 {
	return stat.Quantile(0.75, stat.Empirical, k.data, nil) - stat.Quantile(0.25, stat.Empirical, k.data, nil)
}

// At returns the density at x.
func (k *KDE) At(x float64) float64 {
	if len(k.data) == 0 {
		return 0
	}
	kernel := distuv.Normal{Mu: 0, Sigma: k.Bandwidth}
	sum := 0.0
	for _, d := range k.data {
		sum += kernel.Prob(x - d)
	}
	return sum / float64(len(k.data))
}

// Range returns the data range padded by three bandwidths.
func (k *KDE) Range() (lo, hi float64) {
	if len(k.data) == 0 {
		return 0, 1
	}
	return k.data[0] - 3*k.Bandwidth, k.data[len(k.data)-1] + 3*k.Bandwidth
}
