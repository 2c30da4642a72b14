package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Param is a trainable weight matrix with its gradient and Adam moments.
type Param struct {
	Name string
	W    *mat.Dense
	G    *mat.Dense
	m, v *mat.Dense
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name: name,
		W:    mat.NewDense(rows, cols, nil),
		G:    mat.NewDense(rows, cols, nil),
		m:    mat.NewDense(rows, cols, nil),
		v:    mat.NewDense(rows, cols, nil),
	}
}

func (p *Param) data() []float64 { return p.W.RawMatrix().Data }
func (p *Param) grad() []float64 { return p.G.RawMatrix().Data }

// row returns row i of the weights; writes go through to the matrix.
func (p *Param) row(i int) []float64 { return p.W.RawRowView(i) }

func (p *Param) zeroGrad() { p.G.Zero() }

func glorotUniform(p *Param, rng *rand.Rand) {
	r, c := p.W.Dims()
	uniform(p, rng, math.Sqrt(6/float64(r+c)))
}

func uniform(p *Param, rng *rand.Rand, limit float64) {
	d := p.data()
	for i := range d {
		d[i] = (2*rng.Float64() - 1) * limit
	}
}

func fill(p *Param, v float64) {
	d := p.data()
	for i := range d {
		d[i] = v
	}
}

// orthogonal fills p with an orthogonal matrix taken from the QR
// decomposition of a Gaussian matrix.
func orthogonal(p *Param, rng *rand.Rand) {
	r, c := p.W.Dims()
	n := max(r, c)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, rr mat.Dense
	qr.QTo(&q)
	qr.RTo(&rr)
	// Sign correction makes the distribution uniform over orthogonal matrices.
	for j := 0; j < n; j++ {
		if rr.At(j, j) < 0 {
			for i := 0; i < n; i++ {
				q.Set(i, j, -q.At(i, j))
			}
		}
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p.W.Set(i, j, q.At(i, j))
		}
	}
}

// addVecMat computes dst += x·W.
func addVecMat(dst, x []float64, w *mat.Dense) {
	for k, xk := range x {
		if xk != 0 {
			floats.AddScaled(dst, xk, w.RawRowView(k))
		}
	}
}

// addMatVec computes dst += W·dz, the input gradient of x·W.
func addMatVec(dst, dz []float64, w *mat.Dense) {
	for k := range dst {
		dst[k] += floats.Dot(w.RawRowView(k), dz)
	}
}

// addOuter computes G += xᵀ·dz.
func addOuter(g *mat.Dense, x, dz []float64) {
	for k, xk := range x {
		if xk != 0 {
			floats.AddScaled(g.RawRowView(k), xk, dz)
		}
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// softmax replaces v with its softmax.
func softmax(v []float64) {
	lse := floats.LogSumExp(v)
	for i := range v {
		v[i] = math.Exp(v[i] - lse)
	}
}

// matrix allocates rows×cols with one backing array.
func matrix(rows, cols int) [][]float64 {
	buf := make([]float64, rows*cols)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = buf[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}

// dropoutMask returns n inverted-dropout multipliers, or nil when dropout is
// inactive.
func dropoutMask(rng *rand.Rand, n int, rate float64) []float64 {
	if rng == nil || rate <= 0 {
		return nil
	}
	keep := 1 - rate
	mask := make([]float64, n)
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(x, mask []float64) {
	if mask != nil {
		floats.Mul(x, mask)
	}
}
